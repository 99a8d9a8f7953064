package canonical_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborpay/reconciler/internal/domain/canonical"
)

func TestEnsureEventID(t *testing.T) {
	t.Run("native id wins", func(t *testing.T) {
		rec := &canonical.EventRecord{Provider: "stripe", ObjectType: canonical.ObjectTypeCheckout}
		rec.EnsureEventID("evt_123")
		assert.Equal(t, "stripe_checkout_evt_123", rec.EventID)
	})

	t.Run("existing id is never replaced", func(t *testing.T) {
		rec := &canonical.EventRecord{EventID: "preset", Provider: "stripe"}
		rec.EnsureEventID("evt_123")
		assert.Equal(t, "preset", rec.EventID)
	})

	t.Run("derivation is deterministic", func(t *testing.T) {
		a := &canonical.EventRecord{
			Provider:   "pagbank",
			ObjectType: canonical.ObjectTypeCharge,
			PaymentID:  "CHAR_1",
			Status:     canonical.StatusPaid,
		}
		b := &canonical.EventRecord{
			Provider:   "pagbank",
			ObjectType: canonical.ObjectTypeCharge,
			PaymentID:  "CHAR_1",
			Status:     canonical.StatusPaid,
		}
		a.EnsureEventID("")
		b.EnsureEventID("")
		assert.Equal(t, a.EventID, b.EventID)
		assert.True(t, strings.HasPrefix(a.EventID, "pagbank_"))
	})

	t.Run("different status derives different id", func(t *testing.T) {
		a := &canonical.EventRecord{Provider: "pagbank", ObjectType: canonical.ObjectTypeCharge, PaymentID: "CHAR_1", Status: canonical.StatusPending}
		b := &canonical.EventRecord{Provider: "pagbank", ObjectType: canonical.ObjectTypeCharge, PaymentID: "CHAR_1", Status: canonical.StatusPaid}
		a.EnsureEventID("")
		b.EnsureEventID("")
		assert.NotEqual(t, a.EventID, b.EventID)
	})

	t.Run("no identifiers at all falls back to random", func(t *testing.T) {
		a := &canonical.EventRecord{Provider: "stripe", ObjectType: canonical.ObjectTypeUnknown}
		b := &canonical.EventRecord{Provider: "stripe", ObjectType: canonical.ObjectTypeUnknown}
		a.EnsureEventID("")
		b.EnsureEventID("")
		assert.NotEmpty(t, a.EventID)
		assert.NotEqual(t, a.EventID, b.EventID)
	})
}

func TestDeriveEventID(t *testing.T) {
	first := canonical.DeriveEventID("mercadopago", canonical.ObjectTypePayment, "123", "PAID")
	second := canonical.DeriveEventID("mercadopago", canonical.ObjectTypePayment, "123", "PAID")
	other := canonical.DeriveEventID("mercadopago", canonical.ObjectTypeCheckout, "123", "PAID")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.True(t, strings.HasPrefix(first, "mercadopago_"))
}
