package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/repository"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// LedgerHandler exposes the raw event log to operators. Mounted behind
// the internal JWT group only.
type LedgerHandler struct {
	ledgerRepo repository.LedgerRepository
	logger     *zap.Logger
}

func NewLedgerHandler(ledgerRepo repository.LedgerRepository, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

func (h *LedgerHandler) ListRecent(c echo.Context) error {
	limit := defaultLedgerLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		if parsed > maxLedgerLimit {
			parsed = maxLedgerLimit
		}
		limit = parsed
	}

	events, err := h.ledgerRepo.ListRecent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list ledger events", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list ledger events"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"count":  len(events),
	})
}

func (h *LedgerHandler) GetByEventID(c echo.Context) error {
	eventID := c.Param("event_id")

	event, err := h.ledgerRepo.GetByEventID(c.Request().Context(), eventID)
	if err != nil {
		h.logger.Error("Failed to get ledger event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to get ledger event"})
	}
	if event == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}

	return c.JSON(http.StatusOK, event)
}
