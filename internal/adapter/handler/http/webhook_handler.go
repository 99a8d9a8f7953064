package http

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	providerRegistry "github.com/harborpay/reconciler/internal/infrastructure/provider"
	"github.com/harborpay/reconciler/internal/middleware/correlation"
	"github.com/harborpay/reconciler/internal/usecase"
)

// maxWebhookBody caps provider payloads well above anything providers
// actually send.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	registry  *providerRegistry.Registry
	reconcile *usecase.ReconcileUsecase
	logger    *zap.Logger
}

func NewWebhookHandler(registry *providerRegistry.Registry, reconcile *usecase.ReconcileUsecase, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		registry:  registry,
		reconcile: reconcile,
		logger:    logger,
	}
}

// HandleWebhook is the single ingress for every provider route. The
// response contract is strict: unknown route or path-secret mismatch is
// a generic 404, a failed signature is 401, and everything after
// admission is 200 so providers never retry what we already logged.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	providerName := c.Param("provider")
	logger := correlation.Logger(c.Request().Context(), h.logger).
		With(zap.String("provider", providerName))

	entry, ok := h.registry.Get(providerName)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	if entry.PathSecret != "" {
		// Providers differ in where they can put the shared secret, so
		// the trailing path segment, the secret query parameter and the
		// X-Webhook-Secret header are all accepted.
		secret := c.Param("secret")
		if secret == "" {
			secret = c.QueryParam("secret")
		}
		if secret == "" {
			secret = c.Request().Header.Get("X-Webhook-Secret")
		}
		if subtle.ConstantTimeCompare([]byte(secret), []byte(entry.PathSecret)) != 1 {
			logger.Warn("Webhook path secret mismatch")
			return echo.NewHTTPError(http.StatusNotFound)
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		// An aborted upload leaves nothing to verify or retry.
		logger.Warn("Failed to read webhook body", zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	verification, err := entry.Provider.VerifyAdmission(c.Request().Context(), c.Request().Header, body)
	if err != nil {
		logger.Warn("Webhook admission rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "signature verification failed"})
	}

	record, err := entry.Provider.Canonicalize(body, c.Request().Header)
	if err != nil {
		logger.Error("Failed to canonicalize webhook payload", zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	// Detached from the request context so a client disconnect after
	// admission cannot lose an already-verified delivery.
	outcome, err := h.reconcile.Process(
		context.WithoutCancel(c.Request().Context()),
		record,
		verification,
		auditHeaders(c.Request().Header),
	)
	if err != nil {
		logger.Error("Failed to process webhook delivery",
			zap.String("event_id", record.EventID),
			zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	logger.Info("Processed webhook delivery",
		zap.String("event_id", record.EventID),
		zap.String("status", string(record.Status)),
		zap.Bool("duplicate", outcome.Duplicate),
		zap.Bool("order_resolved", outcome.OrderResolved),
		zap.Bool("emitted", outcome.Emitted))

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// auditHeaders flattens the request headers recorded alongside the
// ledger row. Credentials never land in the ledger.
func auditHeaders(header http.Header) map[string]interface{} {
	out := make(map[string]interface{}, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		switch strings.ToLower(key) {
		case "authorization", "cookie":
			continue
		}
		out[key] = values[0]
	}
	return out
}
