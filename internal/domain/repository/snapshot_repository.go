package repository

import (
	"context"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/model"
)

// SnapshotRepository owns the per-order latest payment view. All
// mutation goes through single-statement conditional updates so
// concurrent deliveries for the same order serialize in the database.
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *model.OrderSnapshot) error
	GetByRequestID(ctx context.Context, requestID int64) (*model.OrderSnapshot, error)
	GetByCheckoutID(ctx context.Context, providerName, checkoutID string) (*model.OrderSnapshot, error)
	GetByPaymentID(ctx context.Context, providerName, paymentID string) (*model.OrderSnapshot, error)
	// AttachCheckout records the provider checkout id and payment link
	// produced at preference-creation time.
	AttachCheckout(ctx context.Context, requestID int64, checkoutID, paymentLink string) error
	// ApplyEvent folds a canonical event into the snapshot: incoming
	// identifier and customer values win, omitted fields keep their
	// existing values, and status fields overwrite unless the event is
	// older than the applied state.
	ApplyEvent(ctx context.Context, requestID int64, record *canonical.EventRecord) error
}

// OrderLookup maps an order to its product category, used only to
// enrich emitted domain events.
type OrderLookup interface {
	ProductCategory(ctx context.Context, requestID int64) (string, error)
}
