// Package bus carries the public events the story engine emits to
// presentation subscribers.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Kind names a public event.
type Kind string

const (
	KindGameStarted         Kind = "game:started"
	KindChoiceProcessed     Kind = "choice:processed"
	KindStoryGenerated      Kind = "story:generated"
	KindStoryFallback       Kind = "story:fallback"
	KindGuestSignupRedirect Kind = "guest:signup-redirect"
	KindGuestRestart        Kind = "guest:restart"
	KindEngineError         Kind = "engine:error"
	KindGameSaved           Kind = "game:saved"
)

// Event is one published notification.
type Event struct {
	Kind        Kind
	CharacterID string
	Payload     map[string]any
	Timestamp   time.Time
}

const (
	publishTimeout    = 100 * time.Millisecond
	defaultBufferSize = 100
)

// EventBus fans events out to every subscriber. A subscriber that stays
// full for longer than the publish timeout misses the event and the drop
// is counted.
type EventBus struct {
	subs    map[uint64]*Subscription
	nextID  uint64
	closed  bool
	dropped atomic.Uint64
	mu      sync.RWMutex
}

// Subscription receives events on C until cancelled or the bus closes.
type Subscription struct {
	C     <-chan Event
	ch    chan Event
	kinds map[Kind]struct{}
	id    uint64
	bus   *EventBus
	once  sync.Once
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a subscriber for the given kinds, or for every kind
// when none are given.
func (eb *EventBus) Subscribe(buffer int, kinds ...Kind) *Subscription {
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, bus: eb}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		close(ch)
		return sub
	}
	eb.nextID++
	sub.id = eb.nextID
	eb.subs[sub.id] = sub
	return sub
}

func (s *Subscription) wants(k Kind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Next blocks for the next event. It returns false once the subscription
// is closed or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return Event{}, false
		}
		return ev, true
	case <-ctx.Done():
		return Event{}, false
	}
}

// Cancel unregisters the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s.id]; !ok {
		return
	}
	delete(s.bus.subs, s.id)
	s.once.Do(func() { close(s.ch) })
}

// Publish delivers ev to every interested subscriber.
func (eb *EventBus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}

	for _, sub := range eb.subs {
		if !sub.wants(ev.Kind) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			timer := time.NewTimer(publishTimeout)
			select {
			case sub.ch <- ev:
			case <-timer.C:
				eb.dropped.Add(1)
			}
			timer.Stop()
		}
	}
}

// Emit is shorthand for publishing an event with a payload.
func (eb *EventBus) Emit(kind Kind, characterID string, payload map[string]any) {
	eb.Publish(Event{Kind: kind, CharacterID: characterID, Payload: payload})
}

func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	for id, sub := range eb.subs {
		delete(eb.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Dropped reports how many deliveries timed out.
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}
