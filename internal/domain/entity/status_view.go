package entity

import (
	"time"

	"github.com/harborpay/reconciler/internal/domain/canonical"
)

// StatusView is the snapshot projection served to polling clients and
// pushed over live streams.
type StatusView struct {
	RequestID    int64            `json:"request_id"`
	Provider     string           `json:"provider"`
	Status       canonical.Status `json:"status"`
	StatusDetail string           `json:"status_detail,omitempty"`
	AmountCents  int64            `json:"amount_cents,omitempty"`
	Currency     string           `json:"currency,omitempty"`
	PaymentLink  string           `json:"payment_link,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
