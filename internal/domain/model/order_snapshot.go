package model

import (
	"time"

	"github.com/harborpay/reconciler/internal/domain/canonical"
)

// OrderSnapshot is the latest known payment view for one order. It is
// created at checkout-preference time with status CREATED, mutated on
// every reconciled webhook, and never deleted here.
type OrderSnapshot struct {
	RequestID       int64            `gorm:"column:request_id;primaryKey;autoIncrement" json:"request_id"`
	Provider        string           `gorm:"not null;size:50;index" json:"provider"`
	ProductCategory *string          `gorm:"size:100" json:"product_category,omitempty"`
	Status          canonical.Status `gorm:"type:payment_status;not null;default:'CREATED';index" json:"status"`
	StatusDetail    *string          `gorm:"size:200" json:"status_detail,omitempty"`
	AmountCents     *int64           `json:"amount_cents,omitempty"`
	Currency        *string          `gorm:"size:3" json:"currency,omitempty"`
	CheckoutID      *string          `gorm:"size:120;index" json:"checkout_id,omitempty"`
	PaymentID       *string          `gorm:"column:provider_payment_id;size:120;index" json:"provider_payment_id,omitempty"`
	PaymentLink     *string          `json:"payment_link,omitempty"`
	CustomerName    *string          `gorm:"size:200" json:"customer_name,omitempty"`
	CustomerEmail   *string          `gorm:"size:200" json:"customer_email,omitempty"`
	CustomerTaxID   *string          `gorm:"size:40" json:"customer_tax_id,omitempty"`
	AuthorizedAt    *time.Time       `json:"authorized_at,omitempty"`
	StatusUpdatedAt *time.Time       `json:"status_updated_at,omitempty"`
	CreatedAt       time.Time        `gorm:"default:now()" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (OrderSnapshot) TableName() string {
	return "order_snapshots"
}
