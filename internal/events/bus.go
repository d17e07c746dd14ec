// Package events provides the in-process fan-out used by the session
// pipeline. Each signal type gets its own Bus so the tick path stays typed
// and testable without any rendering layer attached.
package events

import "sync"

// Bus is a non-blocking publish/subscribe fan-out for one value type.
// Publishing never blocks: a subscriber whose channel is full misses the
// value, which matches the engine's drop-to-latest overload rule.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]chan<- T
	nextID uint64

	replayLast bool
	last       *T
}

// NewBus creates a Bus. When replayLast is set, a new subscriber immediately
// receives the most recently published value, so late-attaching consumers
// (the coaching UI reconnecting mid-set) start from current state.
func NewBus[T any](replayLast bool) *Bus[T] {
	return &Bus[T]{
		subs:       make(map[uint64]chan<- T),
		replayLast: replayLast,
	}
}

// Subscribe registers ch to receive published values and returns an
// unsubscribe function.
func (b *Bus[T]) Subscribe(ch chan<- T) func() {
	if ch == nil {
		panic("events: nil channel")
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	var replay *T
	if b.replayLast && b.last != nil {
		v := *b.last
		replay = &v
	}
	b.mu.Unlock()

	if replay != nil {
		select {
		case ch <- *replay:
		default:
		}
	}

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers v to every subscriber whose channel has room.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	if b.replayLast {
		last := v
		b.last = &last
	}
	targets := make([]chan<- T, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- v:
		default:
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
