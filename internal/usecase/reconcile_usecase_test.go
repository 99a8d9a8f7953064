package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/entity"
	"github.com/harborpay/reconciler/internal/domain/model"
	"github.com/harborpay/reconciler/internal/domain/provider"
	"github.com/harborpay/reconciler/internal/pubsub"
	"github.com/harborpay/reconciler/internal/usecase"
)

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Append(ctx context.Context, event *model.LedgerEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) RecordAuthenticity(ctx context.Context, eventID string, authentic bool) error {
	args := m.Called(ctx, eventID, authentic)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByEventID(ctx context.Context, eventID string) (*model.LedgerEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEvent), args.Error(1)
}

func (m *MockLedgerRepository) ListRecent(ctx context.Context, limit int) ([]*model.LedgerEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LedgerEvent), args.Error(1)
}

// MockSnapshotRepository is a mock implementation of SnapshotRepository
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Create(ctx context.Context, snapshot *model.OrderSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockSnapshotRepository) GetByRequestID(ctx context.Context, requestID int64) (*model.OrderSnapshot, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) GetByCheckoutID(ctx context.Context, providerName, checkoutID string) (*model.OrderSnapshot, error) {
	args := m.Called(ctx, providerName, checkoutID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) GetByPaymentID(ctx context.Context, providerName, paymentID string) (*model.OrderSnapshot, error) {
	args := m.Called(ctx, providerName, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) AttachCheckout(ctx context.Context, requestID int64, checkoutID, paymentLink string) error {
	args := m.Called(ctx, requestID, checkoutID, paymentLink)
	return args.Error(0)
}

func (m *MockSnapshotRepository) ApplyEvent(ctx context.Context, requestID int64, record *canonical.EventRecord) error {
	args := m.Called(ctx, requestID, record)
	return args.Error(0)
}

// MockStatusCache is a mock implementation of StatusCache
type MockStatusCache struct {
	mock.Mock
}

func (m *MockStatusCache) Get(ctx context.Context, requestID int64) (*entity.StatusView, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.StatusView), args.Error(1)
}

func (m *MockStatusCache) Set(ctx context.Context, view *entity.StatusView) error {
	args := m.Called(ctx, view)
	return args.Error(0)
}

func (m *MockStatusCache) Invalidate(ctx context.Context, requestID int64) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

// MockOrderLookup is a mock implementation of OrderLookup
type MockOrderLookup struct {
	mock.Mock
}

func (m *MockOrderLookup) ProductCategory(ctx context.Context, requestID int64) (string, error) {
	args := m.Called(ctx, requestID)
	return args.String(0), args.Error(1)
}

// recordingBus captures published status events
type recordingBus struct {
	events []pubsub.StatusEvent
}

func (b *recordingBus) Publish(event pubsub.StatusEvent) {
	b.events = append(b.events, event)
}

func paidRecord(occurredAt time.Time) *canonical.EventRecord {
	return &canonical.EventRecord{
		EventID:     "stripe_checkout_evt_1",
		Provider:    "stripe",
		ObjectType:  canonical.ObjectTypeCheckout,
		CheckoutID:  "cs_1",
		ReferenceID: "42",
		Status:      canonical.StatusPaid,
		AmountCents: 14990,
		Currency:    "BRL",
		OccurredAt:  &occurredAt,
		RawPayload:  []byte(`{"id":"evt_1"}`),
	}
}

func signatureResult() *provider.VerificationResult {
	return &provider.VerificationResult{Strategy: provider.StrategySignature, Verified: true}
}

func TestReconcileUsecase_Process(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("successful delivery emits one event", func(t *testing.T) {
		ledger := new(MockLedgerRepository)
		snapshots := new(MockSnapshotRepository)
		cache := new(MockStatusCache)
		lookup := new(MockOrderLookup)
		bus := &recordingBus{}

		snapshot := &model.OrderSnapshot{RequestID: 42, Provider: "stripe", Status: canonical.StatusPending}

		ledger.On("Append", ctx, mock.AnythingOfType("*model.LedgerEvent")).Return(true, nil)
		snapshots.On("GetByRequestID", ctx, int64(42)).Return(snapshot, nil)
		snapshots.On("ApplyEvent", ctx, int64(42), mock.Anything).Return(nil)
		cache.On("Invalidate", ctx, int64(42)).Return(nil)
		lookup.On("ProductCategory", ctx, int64(42)).Return("subscription", nil)

		u := usecase.NewReconcileUsecase(ledger, snapshots, cache, lookup, bus, nil, logger)
		outcome, err := u.Process(ctx, paidRecord(now), signatureResult(), map[string]interface{}{"User-Agent": "Stripe/1.0"})

		assert.NoError(t, err)
		assert.True(t, outcome.OrderResolved)
		assert.True(t, outcome.Emitted)
		assert.False(t, outcome.Duplicate)
		assert.Len(t, bus.events, 1)
		assert.Equal(t, int64(42), bus.events[0].RequestID)
		assert.Equal(t, canonical.StatusPaid, bus.events[0].Status)
		assert.Equal(t, "subscription", bus.events[0].ProductCategory)
		ledger.AssertExpectations(t)
		snapshots.AssertExpectations(t)
	})

	t.Run("duplicate delivery stops after ledger", func(t *testing.T) {
		ledger := new(MockLedgerRepository)
		snapshots := new(MockSnapshotRepository)
		cache := new(MockStatusCache)
		lookup := new(MockOrderLookup)
		bus := &recordingBus{}

		ledger.On("Append", ctx, mock.Anything).Return(false, nil)

		u := usecase.NewReconcileUsecase(ledger, snapshots, cache, lookup, bus, nil, logger)
		outcome, err := u.Process(ctx, paidRecord(now), signatureResult(), nil)

		assert.NoError(t, err)
		assert.True(t, outcome.Duplicate)
		assert.Empty(t, bus.events)
		snapshots.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown order is logged and skipped", func(t *testing.T) {
		ledger := new(MockLedgerRepository)
		snapshots := new(MockSnapshotRepository)
		cache := new(MockStatusCache)
		lookup := new(MockOrderLookup)
		bus := &recordingBus{}

		ledger.On("Append", ctx, mock.Anything).Return(true, nil)
		snapshots.On("GetByRequestID", ctx, int64(42)).Return(nil, nil)
		snapshots.On("GetByCheckoutID", ctx, "stripe", "cs_1").Return(nil, nil)

		u := usecase.NewReconcileUsecase(ledger, snapshots, cache, lookup, bus, nil, logger)
		outcome, err := u.Process(ctx, paidRecord(now), signatureResult(), nil)

		assert.NoError(t, err)
		assert.False(t, outcome.OrderResolved)
		assert.Empty(t, bus.events)
		snapshots.AssertNotCalled(t, "ApplyEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale delivery updates snapshot but emits nothing", func(t *testing.T) {
		ledger := new(MockLedgerRepository)
		snapshots := new(MockSnapshotRepository)
		cache := new(MockStatusCache)
		lookup := new(MockOrderLookup)
		bus := &recordingBus{}

		newer := now.Add(time.Hour)
		snapshot := &model.OrderSnapshot{RequestID: 42, Provider: "stripe", Status: canonical.StatusPaid, StatusUpdatedAt: &newer}

		ledger.On("Append", ctx, mock.Anything).Return(true, nil)
		snapshots.On("GetByRequestID", ctx, int64(42)).Return(snapshot, nil)
		snapshots.On("ApplyEvent", ctx, int64(42), mock.Anything).Return(nil)
		cache.On("Invalidate", ctx, int64(42)).Return(nil)

		u := usecase.NewReconcileUsecase(ledger, snapshots, cache, lookup, bus, nil, logger)
		outcome, err := u.Process(ctx, paidRecord(now), signatureResult(), nil)

		assert.NoError(t, err)
		assert.True(t, outcome.Stale)
		assert.False(t, outcome.Emitted)
		assert.Empty(t, bus.events)
		snapshots.AssertExpectations(t)
	})

	t.Run("ledger failure propagates", func(t *testing.T) {
		ledger := new(MockLedgerRepository)
		bus := &recordingBus{}

		ledger.On("Append", ctx, mock.Anything).Return(false, errors.New("connection refused"))

		u := usecase.NewReconcileUsecase(ledger, new(MockSnapshotRepository), new(MockStatusCache), new(MockOrderLookup), bus, nil, logger)
		outcome, err := u.Process(ctx, paidRecord(now), signatureResult(), nil)

		assert.Error(t, err)
		assert.Nil(t, outcome)
		assert.Empty(t, bus.events)
	})

	t.Run("cache invalidation failure does not block emission", func(t *testing.T) {
		ledger := new(MockLedgerRepository)
		snapshots := new(MockSnapshotRepository)
		cache := new(MockStatusCache)
		lookup := new(MockOrderLookup)
		bus := &recordingBus{}

		snapshot := &model.OrderSnapshot{RequestID: 42, Provider: "stripe"}

		ledger.On("Append", ctx, mock.Anything).Return(true, nil)
		snapshots.On("GetByRequestID", ctx, int64(42)).Return(snapshot, nil)
		snapshots.On("ApplyEvent", ctx, int64(42), mock.Anything).Return(nil)
		cache.On("Invalidate", ctx, int64(42)).Return(errors.New("redis down"))
		lookup.On("ProductCategory", ctx, int64(42)).Return("", nil)

		u := usecase.NewReconcileUsecase(ledger, snapshots, cache, lookup, bus, nil, logger)
		outcome, err := u.Process(ctx, paidRecord(now), signatureResult(), nil)

		assert.NoError(t, err)
		assert.True(t, outcome.Emitted)
		assert.Len(t, bus.events, 1)
	})

	t.Run("verification outcome lands in ledger headers", func(t *testing.T) {
		ledger := new(MockLedgerRepository)
		bus := &recordingBus{}

		var captured *model.LedgerEvent
		ledger.On("Append", ctx, mock.Anything).Run(func(args mock.Arguments) {
			captured = args.Get(1).(*model.LedgerEvent)
		}).Return(false, nil)

		result := &provider.VerificationResult{
			Strategy: provider.StrategySoft,
			Verified: false,
			Flags:    map[string]string{"x_authenticity_token_present": "true"},
		}

		u := usecase.NewReconcileUsecase(ledger, new(MockSnapshotRepository), new(MockStatusCache), new(MockOrderLookup), bus, nil, logger)
		_, err := u.Process(ctx, paidRecord(now), result, nil)

		assert.NoError(t, err)
		assert.Equal(t, "soft", captured.Headers["verification_strategy"])
		assert.Equal(t, false, captured.Headers["verification_verified"])
		assert.Equal(t, "true", captured.Headers["x_authenticity_token_present"])
	})
}

// MockRemoteVerifier is a mock implementation of RemoteVerifier
type MockRemoteVerifier struct {
	mock.Mock
}

func (m *MockRemoteVerifier) VerifyAuthenticity(ctx context.Context, body []byte) (bool, error) {
	args := m.Called(ctx, body)
	return args.Bool(0), args.Error(1)
}

func TestReconcileUsecase_RemoteAuthenticityOutcomeRecorded(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	now := time.Now().UTC()

	ledger := new(MockLedgerRepository)
	snapshots := new(MockSnapshotRepository)
	cache := new(MockStatusCache)
	lookup := new(MockOrderLookup)
	bus := &recordingBus{}
	remote := new(MockRemoteVerifier)

	record := paidRecord(now)
	record.Provider = "pagbank"

	snapshot := &model.OrderSnapshot{RequestID: 42, Provider: "pagbank"}

	ledger.On("Append", ctx, mock.Anything).Return(true, nil)
	remote.On("VerifyAuthenticity", ctx, mock.Anything).Return(false, nil)
	ledger.On("RecordAuthenticity", ctx, record.EventID, false).Return(nil)
	snapshots.On("GetByRequestID", ctx, int64(42)).Return(snapshot, nil)
	snapshots.On("ApplyEvent", ctx, int64(42), mock.Anything).Return(nil)
	cache.On("Invalidate", ctx, int64(42)).Return(nil)
	lookup.On("ProductCategory", ctx, int64(42)).Return("", nil)

	u := usecase.NewReconcileUsecase(ledger, snapshots, cache, lookup, bus,
		map[string]provider.RemoteVerifier{"pagbank": remote}, logger)
	outcome, err := u.Process(ctx, record, &provider.VerificationResult{Strategy: provider.StrategySoft}, nil)

	assert.NoError(t, err)
	assert.True(t, outcome.Emitted)
	if assert.Len(t, bus.events, 1) && assert.NotNil(t, bus.events[0].RemoteAuthentic) {
		assert.False(t, *bus.events[0].RemoteAuthentic)
	}
	ledger.AssertExpectations(t)
	remote.AssertExpectations(t)
}

func TestReconcileUsecase_RemoteAuthenticityIsAuditOnly(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	now := time.Now().UTC()

	ledger := new(MockLedgerRepository)
	snapshots := new(MockSnapshotRepository)
	cache := new(MockStatusCache)
	lookup := new(MockOrderLookup)
	bus := &recordingBus{}
	remote := new(MockRemoteVerifier)

	record := paidRecord(now)
	record.Provider = "pagbank"
	record.ReferenceID = "42"

	snapshot := &model.OrderSnapshot{RequestID: 42, Provider: "pagbank"}

	ledger.On("Append", ctx, mock.Anything).Return(true, nil)
	remote.On("VerifyAuthenticity", ctx, mock.Anything).Return(false, errors.New("api unreachable"))
	snapshots.On("GetByRequestID", ctx, int64(42)).Return(snapshot, nil)
	snapshots.On("ApplyEvent", ctx, int64(42), mock.Anything).Return(nil)
	cache.On("Invalidate", ctx, int64(42)).Return(nil)
	lookup.On("ProductCategory", ctx, int64(42)).Return("", nil)

	u := usecase.NewReconcileUsecase(ledger, snapshots, cache, lookup, bus,
		map[string]provider.RemoteVerifier{"pagbank": remote}, logger)
	outcome, err := u.Process(ctx, record, &provider.VerificationResult{Strategy: provider.StrategySoft}, nil)

	assert.NoError(t, err)
	assert.True(t, outcome.Emitted)
	if assert.Len(t, bus.events, 1) {
		assert.Nil(t, bus.events[0].RemoteAuthentic)
	}
	remote.AssertExpectations(t)
}
