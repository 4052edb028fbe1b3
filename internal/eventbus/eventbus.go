// Package eventbus is the synchronous in-process pub/sub of spec.md §4.7.
// QueueController is the sole publisher; subscribers include UI cache
// invalidation, status toasts, and analytics. Delivery order equals
// emission order and handlers never block or panic the publisher.
package eventbus

import (
	"runtime/debug"
	"sync"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/models"
)

// Handler receives a QueueEvent. It must not block; EventBus calls handlers
// synchronously and in emission order on the publisher's goroutine.
type Handler func(models.QueueEvent)

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

// Bus is a synchronous, panic-safe, in-process event bus. Events are not
// persisted — subscribers that need history must read JobStore directly.
type Bus struct {
	mu       sync.Mutex
	handlers map[models.QueueEventType][]*subscription
	seq      int
	logger   *common.Logger
}

type subscription struct {
	id int
	fn Handler
}

// New builds an empty Bus.
func New(logger *common.Logger) *Bus {
	return &Bus{
		handlers: make(map[models.QueueEventType][]*subscription),
		logger:   logger,
	}
}

// On registers fn for event. The returned Unsubscribe removes it; calling
// Unsubscribe more than once is a no-op.
func (b *Bus) On(event models.QueueEventType, fn Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	sub := &subscription{id: b.seq, fn: fn}
	b.handlers[event] = append(b.handlers[event], sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[event]
		for i, s := range subs {
			if s.id == sub.id {
				b.handlers[event] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers evt to every handler registered for evt.Type, in
// registration order. A handler that panics is recovered and logged; it
// does not prevent delivery to the remaining handlers.
func (b *Bus) Emit(evt models.QueueEvent) {
	b.mu.Lock()
	subs := make([]*subscription, len(b.handlers[evt.Type]))
	copy(subs, b.handlers[evt.Type])
	b.mu.Unlock()

	for _, sub := range subs {
		b.dispatch(sub, evt)
	}
}

func (b *Bus) dispatch(sub *subscription, evt models.QueueEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_type", string(evt.Type)).
				Str("panic", safeFormat(r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in event bus handler")
		}
	}()
	sub.fn(evt)
}

func safeFormat(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "non-error panic value"
}
