package usecase

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/model"
	"github.com/harborpay/reconciler/internal/domain/provider"
	"github.com/harborpay/reconciler/internal/domain/repository"
	apperrors "github.com/harborpay/reconciler/pkg/errors"
)

// CheckoutInput is the order-creation request from the public API.
type CheckoutInput struct {
	Provider        string `json:"provider" validate:"required"`
	Title           string `json:"title" validate:"required,max=200"`
	AmountCents     int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency        string `json:"currency" validate:"required,len=3"`
	ProductCategory string `json:"product_category,omitempty" validate:"max=100"`
	CustomerName    string `json:"customer_name,omitempty" validate:"max=200"`
	CustomerEmail   string `json:"customer_email,omitempty" validate:"omitempty,email"`
	ReturnURL       string `json:"return_url,omitempty" validate:"omitempty,url"`
}

// CheckoutResult is what the client needs to send the payer onward.
type CheckoutResult struct {
	RequestID   int64  `json:"request_id"`
	Provider    string `json:"provider"`
	CheckoutID  string `json:"checkout_id"`
	PaymentLink string `json:"payment_link,omitempty"`
}

type CheckoutUsecase struct {
	snapshotRepo repository.SnapshotRepository
	preferences  map[string]provider.PreferenceCreator
	logger       *zap.Logger
}

func NewCheckoutUsecase(
	snapshotRepo repository.SnapshotRepository,
	preferences map[string]provider.PreferenceCreator,
	logger *zap.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		snapshotRepo: snapshotRepo,
		preferences:  preferences,
		logger:       logger,
	}
}

// CreateCheckout creates the order snapshot first so the generated
// request id can travel to the provider as the external reference, then
// creates the provider preference and attaches its checkout id. A
// failed preference call leaves the snapshot in CREATED for retry.
func (u *CheckoutUsecase) CreateCheckout(ctx context.Context, input *CheckoutInput) (*CheckoutResult, error) {
	creator, ok := u.preferences[input.Provider]
	if !ok {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidArgument,
			"checkout is not supported for provider "+input.Provider, nil)
	}

	snapshot := &model.OrderSnapshot{
		Provider:    input.Provider,
		Status:      canonical.StatusCreated,
		AmountCents: &input.AmountCents,
		Currency:    &input.Currency,
	}
	if input.ProductCategory != "" {
		snapshot.ProductCategory = &input.ProductCategory
	}
	if input.CustomerName != "" {
		snapshot.CustomerName = &input.CustomerName
	}
	if input.CustomerEmail != "" {
		snapshot.CustomerEmail = &input.CustomerEmail
	}

	if err := u.snapshotRepo.Create(ctx, snapshot); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInternal, "failed to create order", err)
	}

	session, err := creator.CreatePreference(ctx, &provider.CheckoutRequest{
		ReferenceID:   strconv.FormatInt(snapshot.RequestID, 10),
		Title:         input.Title,
		AmountCents:   input.AmountCents,
		Currency:      input.Currency,
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		ReturnURL:     input.ReturnURL,
	})
	if err != nil {
		u.logger.Error("Failed to create provider checkout preference",
			zap.Int64("request_id", snapshot.RequestID),
			zap.String("provider", input.Provider),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrInternal, "failed to create checkout preference", err)
	}

	if err := u.snapshotRepo.AttachCheckout(ctx, snapshot.RequestID, session.CheckoutID, session.PaymentLink); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInternal, "failed to attach checkout", err)
	}

	u.logger.Info("Created checkout",
		zap.Int64("request_id", snapshot.RequestID),
		zap.String("provider", input.Provider),
		zap.String("checkout_id", session.CheckoutID))

	return &CheckoutResult{
		RequestID:   snapshot.RequestID,
		Provider:    input.Provider,
		CheckoutID:  session.CheckoutID,
		PaymentLink: session.PaymentLink,
	}, nil
}
