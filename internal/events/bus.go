package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/logger"
)

// Bus delivers events synchronously to matching subscribers. Handlers must not
// block; long running consumers should hand events off to their own goroutine.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	logger        hclog.Logger
}

// NewBus creates an empty event bus
func NewBus(log hclog.Logger) *Bus {
	return &Bus{
		subscriptions: make(map[string]*Subscription),
		logger:        logger.OrNull(log),
	}
}

// Subscribe registers handler for events matching filter
func (b *Bus) Subscribe(subscriber string, filter EventFilter, handler EventHandler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("nil event handler")
	}

	sub := &Subscription{
		ID:         uuid.New().String(),
		Filter:     filter,
		Subscriber: subscriber,
		Created:    time.Now(),
		handler:    handler,
	}

	b.mu.Lock()
	b.subscriptions[sub.ID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscription added", "id", sub.ID, "subscriber", subscriber)
	return sub, nil
}

// Unsubscribe removes a subscription
func (b *Bus) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscriptions[subscriptionID]; !ok {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(b.subscriptions, subscriptionID)
	return nil
}

// Publish stamps the event and hands it to every matching subscriber. A
// panicking handler is logged and does not affect other subscribers.
func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if sub.Filter.Matches(event) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		atomic.AddInt64(&sub.TriggerCount, 1)
		b.dispatch(sub, event)
	}
}

func (b *Bus) dispatch(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "subscriber", sub.Subscriber, "type", event.Type, "panic", r)
		}
	}()
	sub.handler(event)
}

// SubscriptionCount returns the number of active subscriptions
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

var (
	globalBus     *Bus
	globalBusLock sync.RWMutex
)

// SetGlobalEventBus sets the global event bus instance
func SetGlobalEventBus(bus *Bus) {
	globalBusLock.Lock()
	defer globalBusLock.Unlock()
	globalBus = bus
}

// GetGlobalEventBus returns the global event bus instance, which may be nil
func GetGlobalEventBus() *Bus {
	globalBusLock.RLock()
	defer globalBusLock.RUnlock()
	return globalBus
}
