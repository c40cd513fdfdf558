package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pokerjest/mediasorter/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingScanner struct {
	calls   int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingScanner) Scan(context.Context) []service.Result {
	if atomic.AddInt32(&b.calls, 1) == 1 && b.entered != nil {
		close(b.entered)
		<-b.release
	}
	return []service.Result{{Source: "/dl/a.mkv", Outcome: service.OutcomeOrganized}}
}

func TestNewManager_InvalidSchedule(t *testing.T) {
	_, err := NewManager("every now and then", &blockingScanner{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	s := &blockingScanner{entered: make(chan struct{}), release: make(chan struct{})}
	m, err := NewManager("@every 30m", s, zerolog.Nop())
	require.NoError(t, err)

	done := make(chan bool)
	go func() { done <- m.RunOnce(context.Background()) }()
	<-s.entered

	assert.False(t, m.RunOnce(context.Background()))
	close(s.release)
	assert.True(t, <-done)
	assert.True(t, m.RunOnce(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&s.calls))
}

func TestStartStop(t *testing.T) {
	m, err := NewManager("*/5 * * * *", &blockingScanner{}, zerolog.Nop())
	require.NoError(t, err)
	m.Start(context.Background())
	assert.Len(t, m.cron.Entries(), 1)
	m.Stop()
}

func TestTrigger_RunsInBackground(t *testing.T) {
	s := &blockingScanner{entered: make(chan struct{}), release: make(chan struct{})}
	m, err := NewManager("@every 30m", s, zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, m.Trigger(context.Background()))
	<-s.entered
	assert.False(t, m.Trigger(context.Background()))
	assert.False(t, m.RunOnce(context.Background()))
	close(s.release)

	assert.Eventually(t, func() bool { return !m.running.Load() }, time.Second, 10*time.Millisecond)
	assert.True(t, m.Trigger(context.Background()))
}
