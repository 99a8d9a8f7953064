package repository

import (
	"context"

	"github.com/harborpay/reconciler/internal/domain/entity"
)

// StatusCache is a short-lived read-through cache for the polling
// endpoint. A miss returns (nil, nil).
type StatusCache interface {
	Get(ctx context.Context, requestID int64) (*entity.StatusView, error)
	Set(ctx context.Context, view *entity.StatusView) error
	Invalidate(ctx context.Context, requestID int64) error
}
