package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/model"
	domainRepo "github.com/harborpay/reconciler/internal/domain/repository"
)

type snapshotRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSnapshotRepository creates the order snapshot repository
func NewSnapshotRepository(db *gorm.DB, logger *zap.Logger) domainRepo.SnapshotRepository {
	return &snapshotRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new order snapshot
func (r *snapshotRepository) Create(ctx context.Context, snapshot *model.OrderSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		r.logger.Error("Failed to create order snapshot",
			zap.String("provider", snapshot.Provider),
			zap.Error(err))
		return fmt.Errorf("failed to create order snapshot: %w", err)
	}
	return nil
}

// GetByRequestID retrieves a snapshot by its order request id
func (r *snapshotRepository) GetByRequestID(ctx context.Context, requestID int64) (*model.OrderSnapshot, error) {
	var snapshot model.OrderSnapshot

	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		First(&snapshot).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get order snapshot",
			zap.Int64("request_id", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get order snapshot: %w", err)
	}

	return &snapshot, nil
}

// GetByCheckoutID retrieves a snapshot by provider checkout id
func (r *snapshotRepository) GetByCheckoutID(ctx context.Context, providerName, checkoutID string) (*model.OrderSnapshot, error) {
	return r.getByProviderKey(ctx, providerName, "checkout_id", checkoutID)
}

// GetByPaymentID retrieves a snapshot by provider payment id
func (r *snapshotRepository) GetByPaymentID(ctx context.Context, providerName, paymentID string) (*model.OrderSnapshot, error) {
	return r.getByProviderKey(ctx, providerName, "provider_payment_id", paymentID)
}

func (r *snapshotRepository) getByProviderKey(ctx context.Context, providerName, column, value string) (*model.OrderSnapshot, error) {
	if value == "" {
		return nil, nil
	}

	var snapshot model.OrderSnapshot

	err := r.db.WithContext(ctx).
		Where("provider = ? AND "+column+" = ?", providerName, value).
		First(&snapshot).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get order snapshot",
			zap.String("provider", providerName),
			zap.String(column, value),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get order snapshot: %w", err)
	}

	return &snapshot, nil
}

// AttachCheckout records the checkout id and payment link produced at
// preference-creation time
func (r *snapshotRepository) AttachCheckout(ctx context.Context, requestID int64, checkoutID, paymentLink string) error {
	updates := map[string]interface{}{
		"checkout_id": checkoutID,
		"updated_at":  gorm.Expr("NOW()"),
	}
	if paymentLink != "" {
		updates["payment_link"] = paymentLink
	}

	result := r.db.WithContext(ctx).
		Model(&model.OrderSnapshot{}).
		Where("request_id = ?", requestID).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to attach checkout to snapshot",
			zap.Int64("request_id", requestID),
			zap.String("checkout_id", checkoutID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to attach checkout: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order snapshot not found: %d", requestID)
	}
	return nil
}

// ApplyEvent folds a canonical event into the snapshot in one UPDATE.
// Incoming identifier, customer and amount values win over whatever
// the snapshot holds; fields the event omits keep their existing
// values, so a retried payment re-pairs the snapshot with the new
// payment id and a corrected email applies. Status fields overwrite
// unless the snapshot already holds a newer status, guarded by
// status_updated_at inside the same statement so concurrent deliveries
// serialize in the database.
func (r *snapshotRepository) ApplyEvent(ctx context.Context, requestID int64, record *canonical.EventRecord) error {
	result := r.db.WithContext(ctx).
		Model(&model.OrderSnapshot{}).
		Where("request_id = ?", requestID).
		Updates(applyEventUpdates(record))

	if result.Error != nil {
		r.logger.Error("Failed to apply event to snapshot",
			zap.Int64("request_id", requestID),
			zap.String("event_id", record.EventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to apply event to snapshot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order snapshot not found: %d", requestID)
	}
	return nil
}

func applyEventUpdates(record *canonical.EventRecord) map[string]interface{} {
	updates := map[string]interface{}{
		"updated_at": gorm.Expr("NOW()"),
	}

	if record.CheckoutID != "" {
		updates["checkout_id"] = gorm.Expr("COALESCE(?, checkout_id)", record.CheckoutID)
	}
	if record.PaymentID != "" {
		updates["provider_payment_id"] = gorm.Expr("COALESCE(?, provider_payment_id)", record.PaymentID)
	}
	if record.PaymentLink != "" {
		updates["payment_link"] = gorm.Expr("COALESCE(?, payment_link)", record.PaymentLink)
	}
	if record.AmountCents > 0 {
		updates["amount_cents"] = gorm.Expr("COALESCE(?, amount_cents)", record.AmountCents)
	}
	if record.Currency != "" {
		updates["currency"] = gorm.Expr("COALESCE(?, currency)", record.Currency)
	}
	if c := record.Customer; c != nil {
		if c.Name != "" {
			updates["customer_name"] = gorm.Expr("COALESCE(?, customer_name)", c.Name)
		}
		if c.Email != "" {
			updates["customer_email"] = gorm.Expr("COALESCE(?, customer_email)", c.Email)
		}
		if c.TaxID != "" {
			updates["customer_tax_id"] = gorm.Expr("COALESCE(?, customer_tax_id)", c.TaxID)
		}
	}

	occurredAt := record.OccurredAt
	if occurredAt != nil {
		guard := "CASE WHEN status_updated_at IS NULL OR status_updated_at <= ? THEN ? ELSE %s END"
		updates["status"] = gorm.Expr(
			fmt.Sprintf(guard, "status"), *occurredAt, record.Status)
		updates["status_updated_at"] = gorm.Expr(
			fmt.Sprintf(guard, "status_updated_at"), *occurredAt, *occurredAt)
		if record.StatusDetail != "" {
			updates["status_detail"] = gorm.Expr(
				fmt.Sprintf(guard, "status_detail"), *occurredAt, record.StatusDetail)
		}
		if record.Status == canonical.StatusPaid {
			updates["authorized_at"] = gorm.Expr(
				"COALESCE(authorized_at, CASE WHEN status_updated_at IS NULL OR status_updated_at <= ? THEN ? END)",
				*occurredAt, *occurredAt)
		}
	} else {
		// No occurred-at on the wire: apply unguarded, last write wins.
		updates["status"] = record.Status
		if record.StatusDetail != "" {
			updates["status_detail"] = record.StatusDetail
		}
	}

	return updates
}
