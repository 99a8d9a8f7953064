package pubsub

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/canonical"
)

// StatusEvent is one reconciled status change fanned out to live
// subscribers of an order.
type StatusEvent struct {
	RequestID       int64            `json:"request_id"`
	Provider        string           `json:"provider"`
	Status          canonical.Status `json:"status"`
	StatusDetail    string           `json:"status_detail,omitempty"`
	ProductCategory string           `json:"product_category,omitempty"`
	AmountCents     int64            `json:"amount_cents,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	// RemoteAuthentic carries the out-of-band authenticity outcome for
	// soft-verified providers; nil when no check ran.
	RemoteAuthentic *bool     `json:"remote_authentic,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

const subscriberBuffer = 8

// Distributor is an in-process fan-out of status events keyed by order
// request id. Publishing never blocks: a subscriber whose buffer is
// full misses that event and must rely on the polling endpoint.
type Distributor struct {
	mu     sync.Mutex
	nextID int
	subs   map[int64]map[int]chan StatusEvent
	logger *zap.Logger
}

// NewDistributor creates an empty distributor
func NewDistributor(logger *zap.Logger) *Distributor {
	return &Distributor{
		subs:   make(map[int64]map[int]chan StatusEvent),
		logger: logger,
	}
}

// Subscribe registers a listener for one order. The returned cancel
// function is idempotent and closes the channel.
func (d *Distributor) Subscribe(requestID int64) (<-chan StatusEvent, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	ch := make(chan StatusEvent, subscriberBuffer)

	if d.subs[requestID] == nil {
		d.subs[requestID] = make(map[int]chan StatusEvent)
	}
	d.subs[requestID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			if set, ok := d.subs[requestID]; ok {
				if _, ok := set[id]; ok {
					delete(set, id)
					close(ch)
				}
				if len(set) == 0 {
					delete(d.subs, requestID)
				}
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to every current subscriber of its order.
func (d *Distributor) Publish(event StatusEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, ch := range d.subs[event.RequestID] {
		select {
		case ch <- event:
		default:
			d.logger.Warn("Dropping status event for slow subscriber",
				zap.Int64("request_id", event.RequestID),
				zap.Int("subscriber", id))
		}
	}
}

// SubscriberCount reports the live subscribers for one order.
func (d *Distributor) SubscriberCount(requestID int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs[requestID])
}

// Close tears down every subscription.
func (d *Distributor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for requestID, set := range d.subs {
		for _, ch := range set {
			close(ch)
		}
		delete(d.subs, requestID)
	}
}
