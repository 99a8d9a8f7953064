package usecase

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/model"
	"github.com/harborpay/reconciler/internal/domain/provider"
	"github.com/harborpay/reconciler/internal/domain/repository"
	"github.com/harborpay/reconciler/internal/pubsub"
)

// EventBus is the fan-out the usecase publishes reconciled status
// changes to.
type EventBus interface {
	Publish(event pubsub.StatusEvent)
}

// Outcome reports what one delivery did: whether it was a duplicate,
// whether an order could be resolved, and whether a status event was
// emitted. At most one event is emitted per delivery.
type Outcome struct {
	Duplicate     bool  `json:"duplicate"`
	OrderResolved bool  `json:"order_resolved"`
	Stale         bool  `json:"stale"`
	Emitted       bool  `json:"emitted"`
	RequestID     int64 `json:"request_id,omitempty"`
}

type ReconcileUsecase struct {
	ledgerRepo   repository.LedgerRepository
	snapshotRepo repository.SnapshotRepository
	statusCache  repository.StatusCache
	orderLookup  repository.OrderLookup
	bus          EventBus
	remotes      map[string]provider.RemoteVerifier
	logger       *zap.Logger
}

func NewReconcileUsecase(
	ledgerRepo repository.LedgerRepository,
	snapshotRepo repository.SnapshotRepository,
	statusCache repository.StatusCache,
	orderLookup repository.OrderLookup,
	bus EventBus,
	remotes map[string]provider.RemoteVerifier,
	logger *zap.Logger,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		ledgerRepo:   ledgerRepo,
		snapshotRepo: snapshotRepo,
		statusCache:  statusCache,
		orderLookup:  orderLookup,
		bus:          bus,
		remotes:      remotes,
		logger:       logger,
	}
}

// Process records one admitted delivery in the ledger and folds it into
// the order snapshot. Every return path after the ledger insert is
// success from the provider's point of view: unknown orders and stale
// events are logged and skipped, never retried by erroring out.
func (u *ReconcileUsecase) Process(
	ctx context.Context,
	record *canonical.EventRecord,
	verification *provider.VerificationResult,
	headers map[string]interface{},
) (*Outcome, error) {
	event := u.buildLedgerEvent(record, verification, headers)

	inserted, err := u.ledgerRepo.Append(ctx, event)
	if err != nil {
		return nil, err
	}
	if !inserted {
		u.logger.Info("Skipping duplicate webhook delivery",
			zap.String("event_id", record.EventID),
			zap.String("provider", record.Provider))
		return &Outcome{Duplicate: true}, nil
	}

	remoteAuthentic := u.auditRemoteAuthenticity(ctx, record)

	snapshot, err := u.resolveOrder(ctx, record)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		u.logger.Warn("Webhook references no known order",
			zap.String("event_id", record.EventID),
			zap.String("provider", record.Provider),
			zap.String("reference_id", record.ReferenceID),
			zap.String("checkout_id", record.CheckoutID),
			zap.String("payment_id", record.PaymentID))
		return &Outcome{OrderResolved: false}, nil
	}

	stale := isStale(snapshot, record)

	// Applied even when stale: identifier and customer fields still
	// land, and the statement's own guard protects status fields.
	if err := u.snapshotRepo.ApplyEvent(ctx, snapshot.RequestID, record); err != nil {
		return nil, err
	}

	if err := u.statusCache.Invalidate(ctx, snapshot.RequestID); err != nil {
		u.logger.Warn("Failed to invalidate status cache",
			zap.Int64("request_id", snapshot.RequestID),
			zap.Error(err))
	}

	if stale {
		u.logger.Info("Skipping event emission for stale delivery",
			zap.String("event_id", record.EventID),
			zap.Int64("request_id", snapshot.RequestID))
		return &Outcome{OrderResolved: true, Stale: true, RequestID: snapshot.RequestID}, nil
	}

	category, err := u.orderLookup.ProductCategory(ctx, snapshot.RequestID)
	if err != nil {
		u.logger.Warn("Failed to look up product category",
			zap.Int64("request_id", snapshot.RequestID),
			zap.Error(err))
	}

	occurredAt := time.Now()
	if record.OccurredAt != nil {
		occurredAt = *record.OccurredAt
	}

	u.bus.Publish(pubsub.StatusEvent{
		RequestID:       snapshot.RequestID,
		Provider:        record.Provider,
		Status:          record.Status,
		StatusDetail:    record.StatusDetail,
		ProductCategory: category,
		AmountCents:     record.AmountCents,
		Currency:        record.Currency,
		RemoteAuthentic: remoteAuthentic,
		OccurredAt:      occurredAt,
	})

	return &Outcome{OrderResolved: true, Emitted: true, RequestID: snapshot.RequestID}, nil
}

func (u *ReconcileUsecase) buildLedgerEvent(
	record *canonical.EventRecord,
	verification *provider.VerificationResult,
	headers map[string]interface{},
) *model.LedgerEvent {
	if headers == nil {
		headers = make(map[string]interface{})
	}
	if verification != nil {
		headers["verification_strategy"] = string(verification.Strategy)
		headers["verification_verified"] = verification.Verified
		for k, v := range verification.Flags {
			headers[k] = v
		}
	}

	var payload model.JSONB
	if len(record.RawPayload) > 0 {
		if err := json.Unmarshal(record.RawPayload, &payload); err != nil {
			payload = model.JSONB{"raw": string(record.RawPayload)}
		}
	}

	event := &model.LedgerEvent{
		EventID:    record.EventID,
		Provider:   record.Provider,
		Topic:      record.Topic,
		ObjectType: string(record.ObjectType),
		Headers:    model.JSONB(headers),
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
	if record.ReferenceID != "" {
		event.ReferenceID = &record.ReferenceID
	}
	if record.CheckoutID != "" {
		event.CheckoutID = &record.CheckoutID
	}
	if record.PaymentID != "" {
		event.PaymentID = &record.PaymentID
	}
	return event
}

// auditRemoteAuthenticity runs the out-of-band authenticity check for
// providers without verifiable signatures. The outcome is merged into
// the ledger row's headers and returned so the emitted event carries
// it; soft verification never blocks processing.
func (u *ReconcileUsecase) auditRemoteAuthenticity(ctx context.Context, record *canonical.EventRecord) *bool {
	remote, ok := u.remotes[record.Provider]
	if !ok {
		return nil
	}

	authentic, err := remote.VerifyAuthenticity(ctx, record.RawPayload)
	if err != nil {
		u.logger.Warn("Remote authenticity check failed",
			zap.String("event_id", record.EventID),
			zap.String("provider", record.Provider),
			zap.Error(err))
		return nil
	}
	if !authentic {
		u.logger.Warn("Remote authenticity check flagged delivery",
			zap.String("event_id", record.EventID),
			zap.String("provider", record.Provider))
	}

	if err := u.ledgerRepo.RecordAuthenticity(ctx, record.EventID, authentic); err != nil {
		u.logger.Warn("Failed to record authenticity outcome",
			zap.String("event_id", record.EventID),
			zap.Error(err))
	}
	return &authentic
}

func (u *ReconcileUsecase) resolveOrder(ctx context.Context, record *canonical.EventRecord) (*model.OrderSnapshot, error) {
	if record.ReferenceID != "" {
		if requestID, err := strconv.ParseInt(record.ReferenceID, 10, 64); err == nil {
			snapshot, err := u.snapshotRepo.GetByRequestID(ctx, requestID)
			if err != nil {
				return nil, err
			}
			if snapshot != nil {
				return snapshot, nil
			}
		}
	}

	if record.CheckoutID != "" {
		snapshot, err := u.snapshotRepo.GetByCheckoutID(ctx, record.Provider, record.CheckoutID)
		if err != nil {
			return nil, err
		}
		if snapshot != nil {
			return snapshot, nil
		}
	}

	if record.PaymentID != "" {
		snapshot, err := u.snapshotRepo.GetByPaymentID(ctx, record.Provider, record.PaymentID)
		if err != nil {
			return nil, err
		}
		if snapshot != nil {
			return snapshot, nil
		}
	}

	return nil, nil
}

// isStale reports whether the delivery is older than the status the
// snapshot already holds. Events without a timestamp are never stale.
func isStale(snapshot *model.OrderSnapshot, record *canonical.EventRecord) bool {
	if snapshot.StatusUpdatedAt == nil || record.OccurredAt == nil {
		return false
	}
	return record.OccurredAt.Before(*snapshot.StatusUpdatedAt)
}
