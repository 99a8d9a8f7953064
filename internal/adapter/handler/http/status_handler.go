package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/usecase"
	apperrors "github.com/harborpay/reconciler/pkg/errors"
)

type StatusHandler struct {
	status *usecase.StatusUsecase
	logger *zap.Logger
}

func NewStatusHandler(status *usecase.StatusUsecase, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		status: status,
		logger: logger,
	}
}

// GetStatus serves the polling endpoint for one order.
func (h *StatusHandler) GetStatus(c echo.Context) error {
	providerName := c.Param("provider")

	requestID, err := parseRequestID(c.QueryParam("request_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "request_id must be a positive integer"})
	}

	view, err := h.status.GetStatus(c.Request().Context(), providerName, requestID)
	if err != nil {
		var appErr *apperrors.AppError
		if apperrors.As(err, &appErr) && appErr.Code() == apperrors.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		h.logger.Error("Failed to get order status",
			zap.Int64("request_id", requestID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to get order status"})
	}

	return c.JSON(http.StatusOK, view)
}

func parseRequestID(raw string) (int64, error) {
	requestID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || requestID <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest)
	}
	return requestID, nil
}
