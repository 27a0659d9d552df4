// Package worker moves notification delivery off the ticket workflows.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
)

// NotificationWorker is an events.Dispatcher that queues published events
// and hands them to the wrapped dispatcher from background goroutines, so
// slow direct messages never hold up an interaction response.
type NotificationWorker struct {
	inner  events.Dispatcher
	logger *zap.Logger

	mu     sync.RWMutex
	queue  chan queuedEvent
	closed bool
	wg     sync.WaitGroup
}

type queuedEvent struct {
	ctx   context.Context
	event events.Event
}

// NewNotificationWorker wraps inner with a queue of the given capacity.
func NewNotificationWorker(inner events.Dispatcher, capacity int, logger *zap.Logger) *NotificationWorker {
	if capacity <= 0 {
		capacity = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{inner: inner, logger: logger, queue: make(chan queuedEvent, capacity)}
}

// Start launches n delivery goroutines.
func (w *NotificationWorker) Start(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()
	for q := range w.queue {
		w.deliver(q.ctx, q.event)
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) {
	if err := w.inner.Publish(ctx, event); err != nil {
		w.logger.Debug("notification delivery reported errors",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// Publish enqueues the event. When the queue is full or the worker is
// stopped the event is delivered inline. Delivery outlives ctx's
// cancellation but keeps its values.
func (w *NotificationWorker) Publish(ctx context.Context, event events.Event) error {
	ctx = context.WithoutCancel(ctx)

	w.mu.RLock()
	if !w.closed {
		select {
		case w.queue <- queuedEvent{ctx: ctx, event: event}:
			w.mu.RUnlock()
			return nil
		default:
		}
	}
	w.mu.RUnlock()

	w.logger.Warn("notification queue unavailable; delivering inline", zap.String("event_type", string(event.Type)))
	w.deliver(ctx, event)
	return nil
}

// Subscribe registers handler on the wrapped dispatcher.
func (w *NotificationWorker) Subscribe(eventType events.EventType, handler events.EventHandler) {
	w.inner.Subscribe(eventType, handler)
}

// Stop drains queued events and waits for the goroutines to exit.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
