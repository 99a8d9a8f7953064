package provider

import (
	"context"
	"net/http"

	"github.com/harborpay/reconciler/internal/domain/canonical"
)

// VerificationStrategy names the authenticity strategy a provider uses.
type VerificationStrategy string

const (
	StrategySignature VerificationStrategy = "signature"
	StrategySoft      VerificationStrategy = "soft"
)

// VerificationResult carries the outcome of admission control plus any
// non-blocking signals recorded for audit.
type VerificationResult struct {
	Strategy VerificationStrategy `json:"strategy"`
	Verified bool                 `json:"verified"`
	// Flags records provider-specific signature header presence for
	// soft-verification providers. Never used for admission control.
	Flags map[string]string `json:"flags,omitempty"`
}

// Verifier confirms a webhook genuinely originates from the claimed
// provider. Signature strategies reject on mismatch; soft strategies
// only record flags and never block a delivery.
type Verifier interface {
	VerifyAdmission(ctx context.Context, header http.Header, body []byte) (*VerificationResult, error)
}

// Canonicalizer maps a provider-native payload into the canonical
// event record. It is a pure function: same input, same record. It
// must tolerate thin and malformed payloads; structural anomalies
// yield an unknown-typed record, not an error.
type Canonicalizer interface {
	Canonicalize(body []byte, header http.Header) (*canonical.EventRecord, error)
}

// Provider bundles the per-provider strategies selected once per
// request by the route registry.
type Provider interface {
	Name() string
	Verifier
	Canonicalizer
}

// RemoteVerifier performs the out-of-band authenticity call for
// soft-verification providers. Its result is attached to the event
// metadata for auditing only.
type RemoteVerifier interface {
	VerifyAuthenticity(ctx context.Context, body []byte) (bool, error)
}

// CheckoutRequest is the provider-agnostic preference-creation request.
type CheckoutRequest struct {
	ReferenceID   string `json:"reference_id"`
	Title         string `json:"title"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	ReturnURL     string `json:"return_url,omitempty"`
}

// CheckoutSession is the minimal result of creating a checkout
// preference with a provider.
type CheckoutSession struct {
	CheckoutID  string `json:"checkout_id"`
	PaymentLink string `json:"payment_link"`
}

// PreferenceCreator creates the provider-side checkout preference. The
// reconciliation core consumes it only through this interface.
type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
}

// ProviderError is the error type for provider API operations
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
