package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	// Payload 为 FilePayload
	EventFileOrganized   EventType = "file_organized"
	EventFileQuarantined EventType = "file_quarantined"
	// 一个批次处理结束, Payload 为 BatchPayload
	EventBatchDone EventType = "batch_done"
)

type Event struct {
	Type    EventType
	At      time.Time
	Payload any
}

// FilePayload describes one transferred file. Quarantined files only carry
// Source and Destination.
type FilePayload struct {
	Source         string
	Destination    string
	Title          string
	Year           int
	Season         int
	Episode        int
	CatalogID      int
	Classification string
}

type BatchPayload struct {
	ID          string
	Files       int
	Organized   int
	Quarantined int
}

type Handler func(e Event)

// Bus is the post-processing fan-out used by the organizer.
type Bus interface {
	Subscribe(topic EventType, handler Handler) string // 返回订阅 ID
	Unsubscribe(topic EventType, subID string)
	Publish(topic EventType, payload any)
}

type subscription struct {
	id      string
	handler Handler
}

// InMemoryBus runs every handler on its own goroutine so a slow hook never
// blocks the organizer. A panicking handler is contained and reported to OnPanic.
type InMemoryBus struct {
	mu   sync.RWMutex
	subs map[EventType][]subscription
	wg   sync.WaitGroup

	OnPanic func(e Event, recovered any)
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[EventType][]subscription)}
}

func (b *InMemoryBus) Subscribe(topic EventType, handler Handler) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()
	return id
}

func (b *InMemoryBus) Unsubscribe(topic EventType, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	kept := subs[:0:0]
	for _, s := range subs {
		if s.id != subID {
			kept = append(kept, s)
		}
	}
	b.subs[topic] = kept
}

func (b *InMemoryBus) Publish(topic EventType, payload any) {
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()

	e := Event{Type: topic, At: time.Now(), Payload: payload}
	for _, s := range subs {
		b.wg.Add(1)
		go b.dispatch(s.handler, e)
	}
}

func (b *InMemoryBus) dispatch(h Handler, e Event) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil && b.OnPanic != nil {
			b.OnPanic(e, r)
		}
	}()
	h(e)
}

// Drain waits for running handlers, or until ctx is done. It reports whether
// every handler finished.
func (b *InMemoryBus) Drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
