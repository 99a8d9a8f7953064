package pagbank

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/provider"
)

const ProviderName = "pagbank"

// statusTable maps PagBank charge/checkout statuses to the canonical
// vocabulary.
var statusTable = map[string]canonical.Status{
	"paid":        canonical.StatusPaid,
	"available":   canonical.StatusPaid,
	"authorized":  canonical.StatusPending,
	"waiting":     canonical.StatusPending,
	"in_analysis": canonical.StatusPending,
	"active":      canonical.StatusCreated,
	"declined":    canonical.StatusRejected,
	"canceled":    canonical.StatusCanceled,
	"expired":     canonical.StatusExpired,
	"refunded":    canonical.StatusRefunded,
	"chargeback":  canonical.StatusChargedBack,
}

// PagBankProvider uses soft verification: signature headers are
// recorded as flags but never gate admission, because true
// verification happens out of band via the provider API.
type PagBankProvider struct {
	logger *zap.Logger
}

func NewPagBankProvider(logger *zap.Logger) *PagBankProvider {
	return &PagBankProvider{logger: logger}
}

func (p *PagBankProvider) Name() string {
	return ProviderName
}

// VerifyAdmission never blocks a delivery. Providers retry failed
// deliveries, and retry storms cost more than processing a few
// unverified-but-harmless events.
func (p *PagBankProvider) VerifyAdmission(ctx context.Context, header http.Header, body []byte) (*provider.VerificationResult, error) {
	flags := map[string]string{
		"x_authenticity_token_present": boolFlag(header.Get("x-authenticity-token") != ""),
		"x_pagbank_signature_present":  boolFlag(header.Get("x-pagbank-signature") != ""),
	}

	return &provider.VerificationResult{
		Strategy: provider.StrategySoft,
		Verified: false,
		Flags:    flags,
	}, nil
}

func boolFlag(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (p *PagBankProvider) Canonicalize(body []byte, header http.Header) (*canonical.EventRecord, error) {
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

	// Unwrap one envelope level if present
	inner := root
	if data, ok := root["data"].(map[string]interface{}); ok {
		inner = data
	}

	nativeID := stringField(inner, "id")
	rec.Topic = stringField(root, "event")
	rec.ObjectType = detectObjectType(nativeID, inner)

	switch rec.ObjectType {
	case canonical.ObjectTypeCheckout:
		rec.CheckoutID = nativeID
	default:
		rec.PaymentID = nativeID
		rec.CheckoutID = stringField(inner, "checkout_id")
	}
	rec.ReferenceID = stringField(inner, "reference_id")

	rawStatus := stringField(inner, "status")
	switch {
	case rawStatus == "" && rec.ObjectType == canonical.ObjectTypeCheckout:
		rec.Status = canonical.StatusCreated
	case rawStatus != "":
		rec.Status = canonical.MapStatus(rawStatus, statusTable)
	}
	if pr, ok := inner["payment_response"].(map[string]interface{}); ok {
		rec.StatusDetail = stringField(pr, "message")
	}

	// amount.value is already integer minor units
	if amount, ok := inner["amount"].(map[string]interface{}); ok {
		if cents, ok := canonical.AmountMinorUnits(amount["value"], true); ok {
			rec.AmountCents = cents
		}
		if cur := stringField(amount, "currency"); cur != "" {
			rec.Currency = strings.ToUpper(cur)
		}
	}

	if customer, ok := inner["customer"].(map[string]interface{}); ok {
		c := &canonical.Customer{
			Name:  stringField(customer, "name"),
			Email: stringField(customer, "email"),
			TaxID: stringField(customer, "tax_id"),
		}
		if c.Name != "" || c.Email != "" || c.TaxID != "" {
			rec.Customer = c
		}
	}

	if link := payLink(inner); link != "" {
		rec.PaymentLink = link
	}

	for _, key := range []string{"paid_at", "updated_at", "created_at"} {
		if raw := stringField(inner, key); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				utc := t.UTC()
				rec.OccurredAt = &utc
				break
			}
		}
	}

	// PagBank has no notification-scoped id, so the event id derives
	// from the object id plus its status: a genuine retransmission
	// collides while a later status change does not.
	if nativeID != "" {
		rec.EnsureEventID(nativeID + "_" + strings.ToLower(string(rec.Status)))
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

func detectObjectType(id string, inner map[string]interface{}) canonical.ObjectType {
	switch {
	case strings.HasPrefix(id, "CHAR_"):
		return canonical.ObjectTypeCharge
	case strings.HasPrefix(id, "CHECK_"):
		return canonical.ObjectTypeCheckout
	case strings.HasPrefix(id, "PAY_"):
		return canonical.ObjectTypePayment
	}
	// Structural heuristics
	if _, ok := inner["charges"]; ok {
		return canonical.ObjectTypeCheckout
	}
	if _, ok := inner["payment_response"]; ok {
		return canonical.ObjectTypeCharge
	}
	if _, ok := inner["payment_method"]; ok {
		return canonical.ObjectTypeCharge
	}
	return canonical.ObjectTypeUnknown
}

func payLink(inner map[string]interface{}) string {
	links, ok := inner["links"].([]interface{})
	if !ok {
		return ""
	}
	for _, raw := range links {
		link, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if strings.EqualFold(stringField(link, "rel"), "PAY") {
			return stringField(link, "href")
		}
	}
	return ""
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}
