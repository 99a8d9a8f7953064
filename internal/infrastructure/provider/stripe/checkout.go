package stripe

import (
	"context"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/provider"
)

// CheckoutClient creates Stripe Checkout Sessions as this provider's
// checkout-preference collaborator.
type CheckoutClient struct {
	logger *zap.Logger
}

func NewCheckoutClient(secretKey string, logger *zap.Logger) *CheckoutClient {
	stripeapi.Key = secretKey
	return &CheckoutClient{logger: logger}
}

func (c *CheckoutClient) CreatePreference(ctx context.Context, req *provider.CheckoutRequest) (*provider.CheckoutSession, error) {
	params := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		ClientReferenceID: stripeapi.String(req.ReferenceID),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				Quantity: stripeapi.Int64(1),
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripeapi.String(strings.ToLower(req.Currency)),
					UnitAmount: stripeapi.Int64(req.AmountCents),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(req.Title),
					},
				},
			},
		},
	}
	params.Context = ctx
	if req.ReturnURL != "" {
		params.SuccessURL = stripeapi.String(req.ReturnURL)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}

	sess, err := session.New(params)
	if err != nil {
		c.logger.Error("Failed to create Stripe checkout session",
			zap.String("reference_id", req.ReferenceID),
			zap.Error(err))
		return nil, &provider.ProviderError{
			Code:    "CHECKOUT_SESSION_ERROR",
			Message: "failed to create checkout session",
			Details: err.Error(),
		}
	}

	return &provider.CheckoutSession{
		CheckoutID:  sess.ID,
		PaymentLink: sess.URL,
	}, nil
}
