package service

import "sync"

// Resource names what changed.
type Resource string

const (
	ResourceAtlas    Resource = "atlas"
	ResourceViewport Resource = "viewport"
)

// Action names how it changed.
type Action string

const (
	ActionReloaded Action = "reloaded"
	ActionBase     Action = "base"
	ActionOverlay  Action = "overlay"
	// ActionResync is delivered instead of the next event to a subscriber
	// whose buffer overflowed. The subscriber must redraw from the snapshot.
	ActionResync Action = "resync"
)

// Event describes a change to the atlas or the layer switcher. ID is the run
// ID for atlas events and the layer key for viewport events.
type Event struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
	ID       string   `json:"id"`
}

const subscriberBuffer = 16

// Subscription receives events until Close.
type Subscription struct {
	bus    *EventBus
	ch     chan Event
	missed bool
	once   sync.Once
}

// Events is the receive side of the subscription.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription and closes its channel. It is safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// EventBus fans atlas change events out to the open sidebars. Publishing
// never blocks: a slow subscriber loses events and gets a resync instead.
type EventBus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*Subscription]struct{})}
}

// Publish delivers e to every subscriber.
func (b *EventBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		ev := e
		if s.missed {
			ev = Event{Resource: ResourceAtlas, Action: ActionResync, ID: e.ID}
		}
		select {
		case s.ch <- ev:
			s.missed = false
		default:
			s.missed = true
		}
	}
}

// Subscribe opens a buffered subscription.
func (b *EventBus) Subscribe() *Subscription {
	s := &Subscription{bus: b, ch: make(chan Event, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Len returns the number of open subscriptions.
func (b *EventBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
