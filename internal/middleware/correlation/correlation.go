package correlation

import (
	"context"
	"regexp"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HeaderName is the correlation id header on requests and responses.
const HeaderName = "X-Correlation-ID"

// contextKey is used for storing the correlation id in context
type contextKey struct{}

// safePattern bounds what a caller-supplied id may look like. Anything
// else is replaced with a fresh random id, never an error.
var safePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// Middleware adopts a safe inbound correlation id or mints a new one,
// stores it in the request context, and echoes it on the response.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderName)
			if !safePattern.MatchString(id) {
				id = uuid.NewString()
			}

			ctx := WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(HeaderName, id)

			return next(c)
		}
	}
}

// WithID returns a context carrying the correlation id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the correlation id, or "" when none was set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// Logger returns the base logger enriched with the correlation id.
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if id := FromContext(ctx); id != "" {
		return base.With(zap.String("correlation_id", id))
	}
	return base
}
