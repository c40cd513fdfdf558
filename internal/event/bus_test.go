package event

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewInMemoryBus()
	var organized, quarantined int32

	id := bus.Subscribe(EventFileOrganized, func(e Event) {
		if p, ok := e.Payload.(FilePayload); ok && p.Title == "黄雀" {
			atomic.AddInt32(&organized, 1)
		}
	})
	bus.Subscribe(EventFileQuarantined, func(Event) { atomic.AddInt32(&quarantined, 1) })

	bus.Publish(EventFileOrganized, FilePayload{Title: "黄雀"})
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&organized) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&quarantined))

	bus.Unsubscribe(EventFileOrganized, id)
	bus.Publish(EventFileOrganized, FilePayload{Title: "黄雀"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&organized))
}

func TestInMemoryBus_DrainAndPanic(t *testing.T) {
	bus := NewInMemoryBus()
	var panics int32
	bus.OnPanic = func(e Event, r any) {
		assert.Equal(t, EventBatchDone, e.Type)
		atomic.AddInt32(&panics, 1)
	}

	release := make(chan struct{})
	var finished int32
	bus.Subscribe(EventFileOrganized, func(Event) {
		<-release
		atomic.AddInt32(&finished, 1)
	})
	bus.Subscribe(EventBatchDone, func(Event) { panic("boom") })

	bus.Publish(EventFileOrganized, FilePayload{})
	bus.Publish(EventBatchDone, BatchPayload{ID: "x"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, bus.Drain(ctx))

	close(release)
	assert.True(t, bus.Drain(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
	assert.Equal(t, int32(1), atomic.LoadInt32(&panics))
}
