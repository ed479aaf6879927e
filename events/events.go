package events

import (
	"sync"
)

// EventHandler defines a function type where its input type is the generic type. A handler may return an error to
// signal the publisher that the event could not be processed.
type EventHandler[T any] func(T) error

// EventEmitter describes a provider which can subscribe EventHandler methods for callback when the event type (generic)
// is published. It additionally provides methods for publishing events.
type EventEmitter[T any] struct {
	// subscriptions defines the EventHandler methods which should be invoked when a new event is published to this
	// emitter.
	subscriptions []EventHandler[T]

	// subscriptionsLock guards subscriptions.
	subscriptionsLock sync.Mutex
}

// Publish emits the provided event by calling every EventHandler subscribed, in subscription order. Every handler is
// invoked even if an earlier one fails; the first error encountered is returned.
func (e *EventEmitter[T]) Publish(event T) error {
	// Take a snapshot so handlers can subscribe further handlers without deadlocking.
	e.subscriptionsLock.Lock()
	subscriptions := make([]EventHandler[T], len(e.subscriptions))
	copy(subscriptions, e.subscriptions)
	e.subscriptionsLock.Unlock()

	var firstErr error
	for _, subscription := range subscriptions {
		if err := subscription(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe adds an EventHandler to the list of subscribed EventHandler objects for this emitter. When an event is
// published, the callback will be triggered with the event data.
func (e *EventEmitter[T]) Subscribe(callback EventHandler[T]) {
	e.subscriptionsLock.Lock()
	defer e.subscriptionsLock.Unlock()
	e.subscriptions = append(e.subscriptions, callback)
}

// Reset removes every subscription from this emitter.
func (e *EventEmitter[T]) Reset() {
	e.subscriptionsLock.Lock()
	defer e.subscriptionsLock.Unlock()
	e.subscriptions = nil
}

// SubscriptionCount returns the number of handlers currently subscribed to this emitter.
func (e *EventEmitter[T]) SubscriptionCount() int {
	e.subscriptionsLock.Lock()
	defer e.subscriptionsLock.Unlock()
	return len(e.subscriptions)
}
