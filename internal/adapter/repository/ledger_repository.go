package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harborpay/reconciler/internal/domain/model"
	domainRepo "github.com/harborpay/reconciler/internal/domain/repository"
)

type ledgerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLedgerRepository creates the append-only webhook event log
func NewLedgerRepository(db *gorm.DB, logger *zap.Logger) domainRepo.LedgerRepository {
	return &ledgerRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts the event unless its event_id already exists. The
// conditional insert is a single statement, so concurrent duplicate
// deliveries serialize in the database without application locking.
func (r *ledgerRepository) Append(ctx context.Context, event *model.LedgerEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(event)

	if result.Error != nil {
		r.logger.Error("Failed to append ledger event",
			zap.String("event_id", event.EventID),
			zap.String("provider", event.Provider),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to append ledger event: %w", result.Error)
	}

	// Zero rows affected means a duplicate delivery, which is success.
	return result.RowsAffected > 0, nil
}

// RecordAuthenticity merges the out-of-band authenticity outcome into
// the headers already stored for the event
func (r *ledgerRepository) RecordAuthenticity(ctx context.Context, eventID string, authentic bool) error {
	err := r.db.WithContext(ctx).
		Model(&model.LedgerEvent{}).
		Where("event_id = ?", eventID).
		Update("headers", gorm.Expr("COALESCE(headers, '{}'::jsonb) || ?::jsonb",
			fmt.Sprintf(`{"remote_authentic": %t}`, authentic))).Error

	if err != nil {
		r.logger.Error("Failed to record authenticity outcome",
			zap.String("event_id", eventID),
			zap.Error(err))
		return fmt.Errorf("failed to record authenticity outcome: %w", err)
	}
	return nil
}

// GetByEventID retrieves a ledger event by its event id
func (r *ledgerRepository) GetByEventID(ctx context.Context, eventID string) (*model.LedgerEvent, error) {
	var event model.LedgerEvent

	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get ledger event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get ledger event: %w", err)
	}

	return &event, nil
}

// ListRecent retrieves the most recently received ledger events
func (r *ledgerRepository) ListRecent(ctx context.Context, limit int) ([]*model.LedgerEvent, error) {
	var events []*model.LedgerEvent

	query := r.db.WithContext(ctx).Order("received_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		r.logger.Error("Failed to list ledger events", zap.Error(err))
		return nil, fmt.Errorf("failed to list ledger events: %w", err)
	}

	return events, nil
}
