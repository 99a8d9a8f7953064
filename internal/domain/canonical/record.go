package canonical

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectType classifies the provider object a webhook refers to.
type ObjectType string

const (
	ObjectTypeCharge   ObjectType = "charge"
	ObjectTypeCheckout ObjectType = "checkout"
	ObjectTypePayment  ObjectType = "payment"
	ObjectTypeUnknown  ObjectType = "unknown"
)

// Customer holds the PII-minimized customer fields a provider may send.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	TaxID string `json:"tax_id,omitempty"`
}

// EventRecord is the canonical form of one provider webhook delivery.
// EventID is unique per (provider, object type, provider-native id);
// when no provider id exists it is derived deterministically from the
// stable fields so identical retransmissions collide.
type EventRecord struct {
	EventID      string          `json:"event_id"`
	Provider     string          `json:"provider"`
	Topic        string          `json:"topic,omitempty"`
	ObjectType   ObjectType      `json:"object_type"`
	CheckoutID   string          `json:"checkout_id,omitempty"`
	PaymentID    string          `json:"payment_id,omitempty"`
	ReferenceID  string          `json:"reference_id,omitempty"`
	Status       Status          `json:"status"`
	StatusDetail string          `json:"status_detail,omitempty"`
	Customer     *Customer       `json:"customer,omitempty"`
	AmountCents  int64           `json:"amount_cents,omitempty"`
	Currency     string          `json:"currency,omitempty"`
	PaymentLink  string          `json:"payment_link,omitempty"`
	OccurredAt   *time.Time      `json:"occurred_at,omitempty"`
	RawPayload   json.RawMessage `json:"raw_payload,omitempty"`
}

// DeriveEventID builds a deterministic event id from stable fields.
// Identical retransmissions of the same payload derive the same id.
func DeriveEventID(provider string, objectType ObjectType, parts ...string) string {
	h := sha1.New()
	h.Write([]byte(provider))
	h.Write([]byte("|"))
	h.Write([]byte(objectType))
	for _, p := range parts {
		h.Write([]byte("|"))
		h.Write([]byte(p))
	}
	return provider + "_" + hex.EncodeToString(h.Sum(nil))
}

// EnsureEventID fills EventID from a provider-native id, falling back
// to a deterministic derivation, and as a last resort a random token.
// The random case is the only one where dedup across a genuine
// retransmission is impossible.
func (r *EventRecord) EnsureEventID(nativeID string) {
	if r.EventID != "" {
		return
	}
	if nativeID = strings.TrimSpace(nativeID); nativeID != "" {
		r.EventID = r.Provider + "_" + string(r.ObjectType) + "_" + nativeID
		return
	}
	if r.CheckoutID != "" || r.PaymentID != "" || r.ReferenceID != "" {
		r.EventID = DeriveEventID(r.Provider, r.ObjectType,
			r.CheckoutID, r.PaymentID, r.ReferenceID, string(r.Status))
		return
	}
	r.EventID = r.Provider + "_" + uuid.NewString()
}
