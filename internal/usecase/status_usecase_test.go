package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/entity"
	"github.com/harborpay/reconciler/internal/domain/model"
	"github.com/harborpay/reconciler/internal/usecase"
	apperrors "github.com/harborpay/reconciler/pkg/errors"
)

func TestStatusUsecase_GetStatus(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("cache hit skips the database", func(t *testing.T) {
		snapshots := new(MockSnapshotRepository)
		cache := new(MockStatusCache)

		cached := &entity.StatusView{RequestID: 42, Provider: "stripe", Status: canonical.StatusPaid}
		cache.On("Get", ctx, int64(42)).Return(cached, nil)

		u := usecase.NewStatusUsecase(snapshots, cache, logger)
		view, err := u.GetStatus(ctx, "stripe", 42)

		assert.NoError(t, err)
		assert.Equal(t, cached, view)
		snapshots.AssertNotCalled(t, "GetByRequestID", mock.Anything, mock.Anything)
	})

	t.Run("cache miss reads through and populates", func(t *testing.T) {
		snapshots := new(MockSnapshotRepository)
		cache := new(MockStatusCache)

		detail := "accredited"
		amount := int64(14990)
		snapshot := &model.OrderSnapshot{
			RequestID:    42,
			Provider:     "mercadopago",
			Status:       canonical.StatusPaid,
			StatusDetail: &detail,
			AmountCents:  &amount,
			UpdatedAt:    time.Now(),
		}

		cache.On("Get", ctx, int64(42)).Return(nil, nil)
		snapshots.On("GetByRequestID", ctx, int64(42)).Return(snapshot, nil)
		cache.On("Set", ctx, mock.AnythingOfType("*entity.StatusView")).Return(nil)

		u := usecase.NewStatusUsecase(snapshots, cache, logger)
		view, err := u.GetStatus(ctx, "mercadopago", 42)

		assert.NoError(t, err)
		assert.Equal(t, canonical.StatusPaid, view.Status)
		assert.Equal(t, "accredited", view.StatusDetail)
		assert.Equal(t, int64(14990), view.AmountCents)
		cache.AssertExpectations(t)
	})

	t.Run("provider mismatch is not found", func(t *testing.T) {
		snapshots := new(MockSnapshotRepository)
		cache := new(MockStatusCache)

		cache.On("Get", ctx, int64(42)).Return(nil, nil)
		snapshots.On("GetByRequestID", ctx, int64(42)).
			Return(&model.OrderSnapshot{RequestID: 42, Provider: "stripe"}, nil)

		u := usecase.NewStatusUsecase(snapshots, cache, logger)
		view, err := u.GetStatus(ctx, "pagbank", 42)

		assert.Nil(t, view)
		var appErr *apperrors.AppError
		assert.True(t, apperrors.As(err, &appErr))
		assert.Equal(t, apperrors.ErrNotFound, appErr.Code())
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		snapshots := new(MockSnapshotRepository)
		cache := new(MockStatusCache)

		cache.On("Get", ctx, int64(99)).Return(nil, nil)
		snapshots.On("GetByRequestID", ctx, int64(99)).Return(nil, nil)

		u := usecase.NewStatusUsecase(snapshots, cache, logger)
		_, err := u.GetStatus(ctx, "stripe", 99)

		var appErr *apperrors.AppError
		assert.True(t, apperrors.As(err, &appErr))
		assert.Equal(t, apperrors.ErrNotFound, appErr.Code())
	})
}
