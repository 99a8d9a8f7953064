package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/pubsub"
	"github.com/harborpay/reconciler/internal/usecase"
	apperrors "github.com/harborpay/reconciler/pkg/errors"
)

type StreamHandler struct {
	status    *usecase.StatusUsecase
	bus       *pubsub.Distributor
	keepAlive time.Duration
	logger    *zap.Logger
}

func NewStreamHandler(status *usecase.StatusUsecase, bus *pubsub.Distributor, keepAlive time.Duration, logger *zap.Logger) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &StreamHandler{
		status:    status,
		bus:       bus,
		keepAlive: keepAlive,
		logger:    logger,
	}
}

// StreamStatus serves live status updates for one order over SSE. The
// current snapshot is pushed first so a client that reconnects after a
// missed event is immediately consistent again.
func (h *StreamHandler) StreamStatus(c echo.Context) error {
	providerName := c.Param("provider")

	requestID, err := parseRequestID(c.QueryParam("request_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "request_id must be a positive integer"})
	}

	// Subscribed before the snapshot read so an event reconciled in
	// between arrives buffered instead of lost.
	events, cancel := h.bus.Subscribe(requestID)
	defer cancel()

	view, err := h.status.GetStatus(c.Request().Context(), providerName, requestID)
	if err != nil {
		var appErr *apperrors.AppError
		if apperrors.As(err, &appErr) && appErr.Code() == apperrors.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		h.logger.Error("Failed to open status stream",
			zap.Int64("request_id", requestID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to open status stream"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	if err := writeSSE(c, "status", view); err != nil {
		return nil
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(c, "status", event); err != nil {
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Response(), ": keep-alive\n\n"); err != nil {
				return nil
			}
			c.Response().Flush()
		}
	}
}

func writeSSE(c echo.Context, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
