package repository

import (
	"context"

	"github.com/harborpay/reconciler/internal/domain/model"
)

// LedgerRepository is the append-only webhook event log.
type LedgerRepository interface {
	// Append inserts the event if its event_id is unseen and reports
	// whether a row was actually inserted. A duplicate is success.
	Append(ctx context.Context, event *model.LedgerEvent) (bool, error)
	// RecordAuthenticity merges the out-of-band authenticity outcome
	// into the stored event's headers.
	RecordAuthenticity(ctx context.Context, eventID string, authentic bool) error
	GetByEventID(ctx context.Context, eventID string) (*model.LedgerEvent, error)
	ListRecent(ctx context.Context, limit int) ([]*model.LedgerEvent, error)
}
