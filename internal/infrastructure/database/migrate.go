package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harborpay/reconciler/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	// Create custom types BEFORE auto-migrate
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.LedgerEvent{},
		&model.OrderSnapshot{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomTypes creates custom PostgreSQL types
func createCustomTypes(db *gorm.DB) error {
	var exists bool
	db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'payment_status')`).Scan(&exists)
	if !exists {
		if err := db.Exec(`CREATE TYPE payment_status AS ENUM (
			'CREATED', 'PENDING', 'PAID', 'REJECTED', 'CANCELED',
			'REFUNDED', 'CHARGED_BACK', 'EXPIRED', 'UPDATED'
		)`).Error; err != nil {
			return err
		}
	}
	return nil
}

// createCustomIndexes creates custom indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// One order per provider checkout; partial so orders without a
	// checkout yet don't collide
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS unique_snapshot_per_checkout ON order_snapshots (provider, checkout_id) WHERE checkout_id IS NOT NULL`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_ledger_events_received_at ON webhook_ledger_events (received_at DESC)`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_ledger_events_reference ON webhook_ledger_events (reference_id) WHERE reference_id IS NOT NULL`).Error; err != nil {
		return err
	}

	return nil
}
