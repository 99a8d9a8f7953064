package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/canonical"
	"github.com/harborpay/reconciler/internal/domain/model"
	"github.com/harborpay/reconciler/internal/pubsub"
	"github.com/harborpay/reconciler/internal/usecase"
)

func TestStatusHandlerGetStatus(t *testing.T) {
	logger := zap.NewNop()

	newEcho := func(snapshots *fakeSnapshots) *echo.Echo {
		statusUsecase := usecase.NewStatusUsecase(snapshots, fakeCache{}, logger)
		h := NewStatusHandler(statusUsecase, logger)
		e := echo.New()
		e.GET("/:provider/status", h.GetStatus)
		return e
	}

	t.Run("existing order", func(t *testing.T) {
		e := newEcho(&fakeSnapshots{snapshot: &model.OrderSnapshot{
			RequestID: 42,
			Provider:  "stripe",
			Status:    canonical.StatusPaid,
		}})

		req := httptest.NewRequest(http.MethodGet, "/stripe/status?request_id=42", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"PAID"`)
	})

	t.Run("unknown order", func(t *testing.T) {
		e := newEcho(&fakeSnapshots{})

		req := httptest.NewRequest(http.MethodGet, "/stripe/status?request_id=42", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid request id", func(t *testing.T) {
		e := newEcho(&fakeSnapshots{})

		req := httptest.NewRequest(http.MethodGet, "/stripe/status?request_id=abc", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStreamHandlerStreamStatus(t *testing.T) {
	logger := zap.NewNop()
	bus := pubsub.NewDistributor(logger)
	defer bus.Close()

	snapshots := &fakeSnapshots{snapshot: &model.OrderSnapshot{
		RequestID: 42,
		Provider:  "pagbank",
		Status:    canonical.StatusPending,
	}}
	statusUsecase := usecase.NewStatusUsecase(snapshots, fakeCache{}, logger)
	h := NewStreamHandler(statusUsecase, bus, time.Second, logger)

	e := echo.New()
	e.GET("/:provider/stream", h.StreamStatus)

	t.Run("pushes snapshot then live events until disconnect", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/pagbank/stream?request_id=42", nil).WithContext(ctx)
		rec := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			e.ServeHTTP(rec, req)
			close(done)
		}()

		// Wait for the subscription before publishing.
		deadline := time.Now().Add(time.Second)
		for bus.SubscriberCount(42) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		assert.Equal(t, 1, bus.SubscriberCount(42))

		bus.Publish(pubsub.StatusEvent{RequestID: 42, Status: canonical.StatusPaid})
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("stream did not tear down on disconnect")
		}

		body := rec.Body.String()
		assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
		assert.Contains(t, body, `"PENDING"`)
		assert.Contains(t, body, `"PAID"`)
		assert.Equal(t, 0, bus.SubscriberCount(42))
	})

	t.Run("event reconciled during the snapshot read is delivered", func(t *testing.T) {
		snaps := &fakeSnapshots{snapshot: &model.OrderSnapshot{
			RequestID: 7,
			Provider:  "pagbank",
			Status:    canonical.StatusPending,
		}}
		snaps.onGet = func() {
			bus.Publish(pubsub.StatusEvent{RequestID: 7, Status: canonical.StatusPaid})
		}
		handler := NewStreamHandler(usecase.NewStatusUsecase(snaps, fakeCache{}, logger), bus, time.Second, logger)
		e2 := echo.New()
		e2.GET("/:provider/stream", handler.StreamStatus)

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/pagbank/stream?request_id=7", nil).WithContext(ctx)
		rec := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			e2.ServeHTTP(rec, req)
			close(done)
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("stream did not tear down on disconnect")
		}

		body := rec.Body.String()
		assert.Contains(t, body, `"PENDING"`)
		assert.Contains(t, body, `"PAID"`)
	})

	t.Run("unknown order rejects the stream", func(t *testing.T) {
		empty := usecase.NewStatusUsecase(&fakeSnapshots{}, fakeCache{}, logger)
		handler := NewStreamHandler(empty, bus, time.Second, logger)
		e2 := echo.New()
		e2.GET("/:provider/stream", handler.StreamStatus)

		req := httptest.NewRequest(http.MethodGet, "/pagbank/stream?request_id=9", nil)
		rec := httptest.NewRecorder()
		e2.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
