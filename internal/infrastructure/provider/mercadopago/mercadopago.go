package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/provider"
	"github.com/harborpay/reconciler/pkg/errors"
)

const ProviderName = "mercadopago"

// statusTable maps Mercado Pago payment statuses to the canonical
// vocabulary.
var statusTable = map[string]canonical.Status{
	"approved":     canonical.StatusPaid,
	"accredited":   canonical.StatusPaid,
	"pending":      canonical.StatusPending,
	"in_process":   canonical.StatusPending,
	"in_mediation": canonical.StatusPending,
	"authorized":   canonical.StatusPending,
	"rejected":     canonical.StatusRejected,
	"cancelled":    canonical.StatusCanceled,
	"refunded":     canonical.StatusRefunded,
	"charged_back": canonical.StatusChargedBack,
	"expired":      canonical.StatusExpired,
	"opened":       canonical.StatusCreated,
	"closed":       canonical.StatusPaid,
}

// MercadoPagoProvider verifies the x-signature manifest and
// canonicalizes Mercado Pago notifications.
type MercadoPagoProvider struct {
	webhookSecret string
	logger        *zap.Logger
}

func NewMercadoPagoProvider(webhookSecret string, logger *zap.Logger) *MercadoPagoProvider {
	return &MercadoPagoProvider{
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (m *MercadoPagoProvider) Name() string {
	return ProviderName
}

// VerifyAdmission recomputes the HMAC-SHA256 manifest Mercado Pago
// signs: "id:<data.id>;request-id:<x-request-id>;ts:<ts>;" with parts
// omitted when their value is absent. Runs before payload parsing.
func (m *MercadoPagoProvider) VerifyAdmission(ctx context.Context, header http.Header, body []byte) (*provider.VerificationResult, error) {
	sig := header.Get("x-signature")
	if sig == "" {
		return nil, errors.NewAppError(errors.ErrUnauthenticated, "missing x-signature header", nil)
	}

	ts, v1 := parseSignature(sig)
	if ts == "" || v1 == "" {
		return nil, errors.NewAppError(errors.ErrUnauthenticated, "malformed x-signature header", nil)
	}

	manifest := buildManifest(dataID(body), header.Get("x-request-id"), ts)

	mac := hmac.New(sha256.New, []byte(m.webhookSecret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		m.logger.Warn("Mercado Pago signature mismatch",
			zap.String("manifest", manifest))
		return nil, errors.NewAppError(errors.ErrUnauthenticated, "webhook signature verification failed", nil)
	}

	return &provider.VerificationResult{
		Strategy: provider.StrategySignature,
		Verified: true,
	}, nil
}

// parseSignature splits "ts=...,v1=..." into its parts.
func parseSignature(sig string) (ts, v1 string) {
	for _, part := range strings.Split(sig, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	return ts, v1
}

func buildManifest(id, requestID, ts string) string {
	var b strings.Builder
	if id != "" {
		fmt.Fprintf(&b, "id:%s;", strings.ToLower(id))
	}
	if requestID != "" {
		fmt.Fprintf(&b, "request-id:%s;", requestID)
	}
	fmt.Fprintf(&b, "ts:%s;", ts)
	return b.String()
}

// dataID extracts the notification's data.id without committing to a
// payload shape.
func dataID(body []byte) string {
	var env struct {
		Data struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Data.ID.String()
}

func (m *MercadoPagoProvider) Canonicalize(body []byte, header http.Header) (*canonical.EventRecord, error) {
	rec := &canonical.EventRecord{
		Provider:   ProviderName,
		ObjectType: canonical.ObjectTypeUnknown,
		Status:     canonical.StatusUpdated,
		RawPayload: json.RawMessage(body),
	}

	root, err := decodeObject(body)
	if err != nil {
		rec.EnsureEventID("")
		return rec, nil
	}

	// Thin notifications wrap the object id in a data envelope; full
	// object payloads are the object itself.
	inner := root
	thin := false
	if data, ok := root["data"].(map[string]interface{}); ok {
		inner = data
		thin = true
	}

	rec.Topic = firstNonEmpty(
		stringField(root, "action"),
		stringField(root, "type"),
		stringField(root, "topic"),
	)
	rec.ObjectType = detectObjectType(rec.Topic, inner)

	switch rec.ObjectType {
	case canonical.ObjectTypeCheckout:
		rec.CheckoutID = firstNonEmpty(
			stringField(inner, "preference_id"),
			numberField(inner, "id"),
		)
	default:
		rec.PaymentID = numberField(inner, "id")
		rec.CheckoutID = stringField(inner, "preference_id")
	}
	rec.ReferenceID = firstNonEmpty(
		stringField(inner, "external_reference"),
		stringField(root, "external_reference"),
	)

	rawStatus := stringField(inner, "status")
	switch {
	case rawStatus == "" && rec.ObjectType == canonical.ObjectTypeCheckout:
		// Checkout-only notifications signal the start of the flow.
		rec.Status = canonical.StatusCreated
	case rawStatus != "":
		rec.Status = canonical.MapStatus(rawStatus, statusTable)
	}
	rec.StatusDetail = stringField(inner, "status_detail")

	// transaction_amount is a decimal in major units
	if v, ok := inner["transaction_amount"]; ok {
		if cents, ok := canonical.AmountMinorUnits(v, false); ok {
			rec.AmountCents = cents
		}
	}
	if cur := stringField(inner, "currency_id"); cur != "" {
		rec.Currency = strings.ToUpper(cur)
	}

	rec.Customer = customerFrom(inner)

	for _, key := range []string{"date_last_updated", "date_approved", "date_created"} {
		if raw := firstNonEmpty(stringField(inner, key), stringField(root, key)); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				utc := t.UTC()
				rec.OccurredAt = &utc
				break
			}
		}
	}

	// Thin notifications carry a notification-scoped id at the root;
	// full object payloads only have the object id, so the event id is
	// derived from the object id plus its status.
	if thin {
		rec.EnsureEventID(numberField(root, "id"))
	} else if objID := numberField(inner, "id"); objID != "" {
		rec.EnsureEventID(objID + "_" + strings.ToLower(string(rec.Status)))
	} else {
		rec.EnsureEventID("")
	}

	return rec, nil
}

func decodeObject(body []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func detectObjectType(topic string, inner map[string]interface{}) canonical.ObjectType {
	lower := strings.ToLower(topic)
	switch {
	case strings.Contains(lower, "payment"):
		return canonical.ObjectTypePayment
	case strings.Contains(lower, "merchant_order"),
		strings.Contains(lower, "preference"),
		strings.Contains(lower, "checkout"):
		return canonical.ObjectTypeCheckout
	case strings.Contains(lower, "chargeback"), strings.Contains(lower, "charge"):
		return canonical.ObjectTypeCharge
	}
	// Structural heuristics for topic-less payloads
	if _, ok := inner["preference_id"]; ok {
		return canonical.ObjectTypeCheckout
	}
	if _, ok := inner["transaction_amount"]; ok {
		return canonical.ObjectTypePayment
	}
	if _, ok := inner["status_detail"]; ok {
		return canonical.ObjectTypePayment
	}
	return canonical.ObjectTypeUnknown
}

func customerFrom(inner map[string]interface{}) *canonical.Customer {
	payer, ok := inner["payer"].(map[string]interface{})
	if !ok {
		return nil
	}

	c := &canonical.Customer{
		Email: stringField(payer, "email"),
	}
	name := strings.TrimSpace(stringField(payer, "first_name") + " " + stringField(payer, "last_name"))
	c.Name = name
	if ident, ok := payer["identification"].(map[string]interface{}); ok {
		c.TaxID = stringField(ident, "number")
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

// numberField reads a field that may arrive as a JSON number or string.
func numberField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
