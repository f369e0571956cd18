package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "LeakageCase", uuid.New(), time.Now()),
	}
}

type testHandler struct {
	eventTypes []string
	mu         sync.Mutex
	handled    []shared.DomainEvent
	err        error
	panicMsg   string
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	ctx := context.Background()

	opened := newTestHandler("CaseOpened")
	all := newTestHandler()
	bus.Subscribe(opened)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(ctx, newTestEvent("CaseOpened"), newTestEvent("CaseStatusChanged")))

	assert.Equal(t, 1, opened.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_FailingHandlersDoNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	ctx := context.Background()

	failing := newTestHandler("CaseOpened")
	failing.err = errors.New("boom")
	panicking := newTestHandler("CaseOpened")
	panicking.panicMsg = "unexpected"
	healthy := newTestHandler("CaseOpened")

	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(ctx, newTestEvent("CaseOpened")))
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, panicking.count())
	assert.Equal(t, 1, healthy.count())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := newTestHandler("CaseOpened")
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("CaseOpened")))
	assert.Equal(t, 0, h.count())
}

func TestInMemoryEventBus_AsyncQueue(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t), WithAsyncQueue(16))
	h := newTestHandler("CaseRecovered")
	bus.Subscribe(h)

	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(ctx, newTestEvent("CaseRecovered")))
	}
	require.NoError(t, bus.Stop(ctx))
	assert.Equal(t, 10, h.count())

	// stopped bus falls back to synchronous delivery
	require.NoError(t, bus.Publish(ctx, newTestEvent("CaseRecovered")))
	assert.Equal(t, 11, h.count())
}

func TestInMemoryEventBus_StartStopIdempotent(t *testing.T) {
	bus := NewInMemoryEventBus(nil, WithAsyncQueue(1))
	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Stop(ctx))
	require.NoError(t, bus.Stop(ctx))
}
