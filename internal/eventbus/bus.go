// Package eventbus is an in-process fanout for lifecycle signals.
//
// Publish never blocks. Subscribers get buffered channels and a slow
// subscriber drops events instead of stalling publishers.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the scheduler, delivery fanout and control server.
const (
	NotificationScheduled = "notification.scheduled"
	NotificationPhase     = "notification.phase"
	NotificationArchived  = "notification.archived"
	NotificationCancelled = "notification.cancelled"
	DeliveryAttempted     = "delivery.attempted"
	RequestHandled        = "ipc.request"
)

type Event struct {
	Type string
	Time time.Time
	Data any
}

// Scheduled is the payload of NotificationScheduled.
type Scheduled struct {
	ID     uint16
	Queued bool
}

// Phase is the payload of NotificationPhase.
type Phase struct {
	ID    uint16
	Phase string
}

// Archived is the payload of NotificationArchived. Reason is "completed" or "deleted".
type Archived struct {
	ID     uint16
	Reason string
}

// Delivery is the payload of DeliveryAttempted.
type Delivery struct {
	Channel string
	OK      bool
	Reason  string
}

// Request is the payload of RequestHandled.
type Request struct {
	Kind   string
	Source string
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Sends happen under the read lock, so unsubscribe (write lock) can
	// never close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Nop discards everything. Components default to it when no bus is wired.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}
