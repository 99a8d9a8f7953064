package model

import (
	"time"
)

// LedgerEvent is one row of the append-only webhook event log. The
// unique event_id key is the sole defense against duplicate provider
// deliveries: inserting an existing key is a no-op, not an error.
type LedgerEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string    `gorm:"column:event_id;unique;not null;size:255;index" json:"event_id"`
	Provider    string    `gorm:"not null;size:50;index" json:"provider"`
	Topic       string    `gorm:"size:100" json:"topic,omitempty"`
	ObjectType  string    `gorm:"size:20" json:"object_type"`
	ReferenceID *string   `gorm:"size:120;index" json:"reference_id,omitempty"`
	CheckoutID  *string   `gorm:"size:120" json:"checkout_id,omitempty"`
	PaymentID   *string   `gorm:"size:120" json:"payment_id,omitempty"`
	Headers     JSONB     `gorm:"type:jsonb" json:"headers,omitempty"`
	Payload     JSONB     `gorm:"type:jsonb;not null" json:"payload"`
	ReceivedAt  time.Time `gorm:"not null" json:"received_at"`
	CreatedAt   time.Time `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (LedgerEvent) TableName() string {
	return "webhook_ledger_events"
}
