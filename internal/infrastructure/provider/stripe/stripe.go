package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/provider"
	"github.com/harborpay/reconciler/pkg/errors"
)

const ProviderName = "stripe"

// statusTable maps Stripe payment statuses to the canonical vocabulary.
var statusTable = map[string]canonical.Status{
	"paid":                    canonical.StatusPaid,
	"succeeded":               canonical.StatusPaid,
	"no_payment_required":     canonical.StatusPaid,
	"unpaid":                  canonical.StatusPending,
	"pending":                 canonical.StatusPending,
	"processing":              canonical.StatusPending,
	"requires_action":         canonical.StatusPending,
	"requires_capture":        canonical.StatusPending,
	"requires_confirmation":   canonical.StatusPending,
	"requires_payment_method": canonical.StatusPending,
	"open":                    canonical.StatusPending,
	"failed":                  canonical.StatusRejected,
	"canceled":                canonical.StatusCanceled,
	"refunded":                canonical.StatusRefunded,
	"expired":                 canonical.StatusExpired,
	"complete":                canonical.StatusPaid,
}

// StripeProvider verifies and canonicalizes Stripe webhook deliveries.
type StripeProvider struct {
	webhookSecret string
	logger        *zap.Logger
}

func NewStripeProvider(webhookSecret string, logger *zap.Logger) *StripeProvider {
	return &StripeProvider{
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (s *StripeProvider) Name() string {
	return ProviderName
}

// VerifyAdmission recomputes the signed payload hash over the exact raw
// bytes. Missing or mismatched signatures reject the delivery.
func (s *StripeProvider) VerifyAdmission(ctx context.Context, header http.Header, body []byte) (*provider.VerificationResult, error) {
	sig := header.Get("Stripe-Signature")
	if sig == "" {
		return nil, errors.NewAppError(errors.ErrUnauthenticated, "missing Stripe-Signature header", nil)
	}

	_, err := webhook.ConstructEventWithOptions(body, sig, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.NewAppError(errors.ErrUnauthenticated, "webhook signature verification failed", err)
	}

	return &provider.VerificationResult{
		Strategy: provider.StrategySignature,
		Verified: true,
	}, nil
}

// stripeEnvelope is the subset of the event envelope the canonicalizer
// reads. Verification already happened; this parse is pure.
type stripeEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object map[string]interface{} `json:"object"`
	} `json:"data"`
}

func (s *StripeProvider) Canonicalize(body []byte, header http.Header) (*canonical.EventRecord, error) {
	rec := &canonical.EventRecord{
		Provider:   ProviderName,
		ObjectType: canonical.ObjectTypeUnknown,
		Status:     canonical.StatusUpdated,
		RawPayload: json.RawMessage(body),
	}

	var env stripeEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Data.Object == nil {
		// Malformed payloads are accepted and marked unknown.
		rec.EnsureEventID(env.ID)
		return rec, nil
	}

	obj := env.Data.Object
	rec.Topic = env.Type
	rec.ObjectType = detectObjectType(env.Type, obj)

	// Identifier fallback chains
	switch rec.ObjectType {
	case canonical.ObjectTypeCheckout:
		rec.CheckoutID = stringField(obj, "id")
		rec.PaymentID = stringField(obj, "payment_intent")
	default:
		rec.PaymentID = firstNonEmpty(stringField(obj, "payment_intent"), stringField(obj, "id"))
	}
	rec.ReferenceID = firstNonEmpty(
		stringField(obj, "client_reference_id"),
		metadataField(obj, "reference_id"),
		metadataField(obj, "external_reference"),
	)

	// Status: event-type verbs win over object fields
	rawStatus := statusFromEventType(env.Type)
	if rawStatus == "" {
		rawStatus = firstNonEmpty(stringField(obj, "payment_status"), stringField(obj, "status"))
	}
	switch {
	case rawStatus == "" && rec.ObjectType == canonical.ObjectTypeCheckout:
		rec.Status = canonical.StatusCreated
	case rawStatus != "":
		rec.Status = canonical.MapStatus(rawStatus, statusTable)
		rec.StatusDetail = strings.ToLower(rawStatus)
	}

	// Stripe amounts are already integer minor units
	for _, key := range []string{"amount_total", "amount_received", "amount"} {
		if v, ok := obj[key]; ok {
			if cents, ok := canonical.AmountMinorUnits(v, true); ok {
				rec.AmountCents = cents
				break
			}
		}
	}
	if cur := stringField(obj, "currency"); cur != "" {
		rec.Currency = strings.ToUpper(cur)
	}

	rec.Customer = customerFrom(obj)

	if env.Created > 0 {
		t := time.Unix(env.Created, 0).UTC()
		rec.OccurredAt = &t
	}

	rec.EnsureEventID(env.ID)
	return rec, nil
}

func detectObjectType(eventType string, obj map[string]interface{}) canonical.ObjectType {
	switch {
	case strings.HasPrefix(eventType, "checkout.session"):
		return canonical.ObjectTypeCheckout
	case strings.HasPrefix(eventType, "charge"):
		return canonical.ObjectTypeCharge
	case strings.HasPrefix(eventType, "payment_intent"):
		return canonical.ObjectTypePayment
	}
	// Structural fallback on the object's own tag
	switch stringField(obj, "object") {
	case "checkout.session":
		return canonical.ObjectTypeCheckout
	case "charge":
		return canonical.ObjectTypeCharge
	case "payment_intent":
		return canonical.ObjectTypePayment
	}
	return canonical.ObjectTypeUnknown
}

func statusFromEventType(eventType string) string {
	switch eventType {
	case "checkout.session.expired":
		return "expired"
	case "charge.refunded":
		return "refunded"
	case "charge.dispute.created":
		return "charged_back"
	case "payment_intent.payment_failed":
		return "failed"
	}
	return ""
}

func customerFrom(obj map[string]interface{}) *canonical.Customer {
	details, ok := obj["customer_details"].(map[string]interface{})
	if !ok {
		details, ok = obj["billing_details"].(map[string]interface{})
	}
	if !ok {
		return nil
	}

	c := &canonical.Customer{
		Name:  stringField(details, "name"),
		Email: stringField(details, "email"),
	}
	if taxIDs, ok := details["tax_ids"].([]interface{}); ok && len(taxIDs) > 0 {
		if first, ok := taxIDs[0].(map[string]interface{}); ok {
			c.TaxID = stringField(first, "value")
		}
	}
	if c.Name == "" && c.Email == "" && c.TaxID == "" {
		return nil
	}
	return c
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func metadataField(m map[string]interface{}, key string) string {
	meta, ok := m["metadata"].(map[string]interface{})
	if !ok {
		return ""
	}
	return stringField(meta, key)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
