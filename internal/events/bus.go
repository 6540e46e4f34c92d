// Package events carries the wake signals that tell the driver new work may
// be available before its next scheduled tick.
package events

import (
	"sync"
	"time"
)

// Kind identifies what woke the loop.
type Kind string

const (
	// KindBarrierSatisfied fires when the monitor flips a barrier to satisfied.
	KindBarrierSatisfied Kind = "barrier_satisfied"
	// KindInputReceived fires when the state watcher sees the input queue change.
	KindInputReceived Kind = "input_received"
	// KindAlertAppended fires when a new alert record lands in the event log.
	KindAlertAppended Kind = "alert_appended"
)

// Signal is one wake notification. ID names the barrier, input, or alert
// that triggered it.
type Signal struct {
	Kind      Kind
	ID        string
	Timestamp time.Time
	Detail    string
}

// Subscriber receives signals for one kind.
type Subscriber func(Signal)

// Bus is a non-blocking publish/subscribe fan-out. Delivery is asynchronous
// through buffered channels; a full subscriber channel drops the signal, so
// a stuck driver can never stall the barrier monitor. Subscribers must treat
// a signal as a hint to rescan state, never as the state itself.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]chan Signal
	bufferSize  int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[Kind][]chan Signal),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for signals of the given kind and returns an
// unsubscribe function. fn runs on its own goroutine; panics inside it are
// swallowed so one bad subscriber cannot take down the bus.
func (b *Bus) Subscribe(kind Kind, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Signal, b.bufferSize)
	b.subscribers[kind] = append(b.subscribers[kind], ch)

	go func() {
		for sig := range ch {
			func() {
				defer func() {
					_ = recover()
				}()
				fn(sig)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[kind]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[kind] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish delivers a signal to every subscriber of its kind without
// blocking; full channels drop it.
func (b *Bus) Publish(kind Kind, id, detail string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sig := Signal{
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}

	for _, ch := range b.subscribers[kind] {
		select {
		case ch <- sig:
		default:
		}
	}
}

// Close closes all subscriber channels and clears subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for kind, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, kind)
	}
}
