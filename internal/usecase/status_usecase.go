package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/entity"
	"github.com/harborpay/reconciler/internal/domain/model"
	"github.com/harborpay/reconciler/internal/domain/repository"
	apperrors "github.com/harborpay/reconciler/pkg/errors"
)

type StatusUsecase struct {
	snapshotRepo repository.SnapshotRepository
	statusCache  repository.StatusCache
	logger       *zap.Logger
}

func NewStatusUsecase(
	snapshotRepo repository.SnapshotRepository,
	statusCache repository.StatusCache,
	logger *zap.Logger,
) *StatusUsecase {
	return &StatusUsecase{
		snapshotRepo: snapshotRepo,
		statusCache:  statusCache,
		logger:       logger,
	}
}

// GetStatus serves the polling endpoint through the cache. The cache
// holds views keyed by request id only, so a provider mismatch still
// returns not found without hitting the database twice.
func (u *StatusUsecase) GetStatus(ctx context.Context, providerName string, requestID int64) (*entity.StatusView, error) {
	view, err := u.statusCache.Get(ctx, requestID)
	if err != nil {
		u.logger.Warn("Status cache read failed",
			zap.Int64("request_id", requestID),
			zap.Error(err))
	}
	if view != nil {
		if view.Provider != providerName {
			return nil, apperrors.NewAppError(apperrors.ErrNotFound, "order not found", nil)
		}
		return view, nil
	}

	snapshot, err := u.snapshotRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInternal, "failed to load order status", err)
	}
	if snapshot == nil || snapshot.Provider != providerName {
		return nil, apperrors.NewAppError(apperrors.ErrNotFound, "order not found", nil)
	}

	view = ViewFromSnapshot(snapshot)

	if err := u.statusCache.Set(ctx, view); err != nil {
		u.logger.Warn("Status cache write failed",
			zap.Int64("request_id", requestID),
			zap.Error(err))
	}
	return view, nil
}

// ViewFromSnapshot projects a snapshot row into the client-facing view.
func ViewFromSnapshot(snapshot *model.OrderSnapshot) *entity.StatusView {
	view := &entity.StatusView{
		RequestID: snapshot.RequestID,
		Provider:  snapshot.Provider,
		Status:    snapshot.Status,
		UpdatedAt: snapshot.UpdatedAt,
	}
	if snapshot.StatusDetail != nil {
		view.StatusDetail = *snapshot.StatusDetail
	}
	if snapshot.AmountCents != nil {
		view.AmountCents = *snapshot.AmountCents
	}
	if snapshot.Currency != nil {
		view.Currency = *snapshot.Currency
	}
	if snapshot.PaymentLink != nil {
		view.PaymentLink = *snapshot.PaymentLink
	}
	return view
}
