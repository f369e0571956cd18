package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/spendaudit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NamedHandler is implemented by handlers that want a stable name in logs
type NamedHandler interface {
	Name() string
}

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithAsyncQueue delivers events from a background worker once the bus is
// started. Publishing blocks when size events are already queued.
func WithAsyncQueue(size int) BusOption {
	return func(b *InMemoryEventBus) {
		if size > 0 {
			b.queueSize = size
		}
	}
}

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus implements EventBus with in-process pub/sub. Without an
// async queue, or while stopped, events are delivered synchronously.
type InMemoryEventBus struct {
	registry  *HandlerRegistry
	logger    *zap.Logger
	queueSize int

	mu      sync.RWMutex
	running bool
	queue   chan envelope
	done    chan struct{}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event_bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers events to every registered handler. Handler failures are
// logged and do not stop delivery to the remaining handlers.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, event := range events {
		if event == nil {
			continue
		}
		if !b.running || b.queue == nil {
			b.deliver(ctx, event)
			continue
		}
		select {
		case b.queue <- envelope{ctx: context.WithoutCancel(ctx), event: event}:
		case <-ctx.Done():
			return fmt.Errorf("publish %s: %w", event.EventType(), ctx.Err())
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types.
// Without explicit types the handler's own EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.String("handler", handlerName(handler)),
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed", zap.String("handler", handlerName(handler)))
}

// Start starts background delivery when an async queue is configured
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	b.running = true
	if b.queueSize > 0 {
		b.queue = make(chan envelope, b.queueSize)
		b.done = make(chan struct{})
		go b.run(b.queue, b.done)
	}
	b.logger.Info("event bus started", zap.Bool("async", b.queueSize > 0))
	return nil
}

// Stop drains queued events and returns to synchronous delivery
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	queue, done := b.queue, b.done
	b.queue, b.done = nil, nil
	b.mu.Unlock()

	if queue != nil {
		close(queue)
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("stop event bus: %w", ctx.Err())
		}
	}
	b.logger.Info("event bus stopped")
	return nil
}

func (b *InMemoryEventBus) run(queue <-chan envelope, done chan<- struct{}) {
	defer close(done)
	for env := range queue {
		b.deliver(env.ctx, env.event)
	}
}

func (b *InMemoryEventBus) deliver(ctx context.Context, event shared.DomainEvent) {
	for _, handler := range b.registry.GetHandlers(event.EventType()) {
		if err := b.dispatchToHandler(ctx, handler, event); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("handler", handlerName(handler)),
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err),
			)
		}
	}
}

// dispatchToHandler safely dispatches an event to a handler
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

func handlerName(h shared.EventHandler) string {
	if n, ok := h.(NamedHandler); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
