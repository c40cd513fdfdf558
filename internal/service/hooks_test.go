package service

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pokerjest/mediasorter/internal/event"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingRefresher struct{ n int32 }

func (c *countingRefresher) RefreshLibrary(context.Context) error {
	atomic.AddInt32(&c.n, 1)
	return nil
}

func TestRegisterHooks_RefreshOncePerOrganizingBatch(t *testing.T) {
	bus := event.NewInMemoryBus()
	ref := &countingRefresher{}
	RegisterHooks(bus, ref, "", zerolog.Nop())

	bus.Publish(event.EventBatchDone, event.BatchPayload{ID: "a", Files: 2, Quarantined: 2})
	bus.Publish(event.EventBatchDone, event.BatchPayload{ID: "b", Files: 3, Organized: 3})

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&ref.n) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ref.n))
}

func TestRegisterHooks_CommandGetsEnvironment(t *testing.T) {
	out := filepath.Join(t.TempDir(), "hook.txt")
	bus := event.NewInMemoryBus()
	RegisterHooks(bus, nil, `printf '%s|%s|%s' "$MEDIASORTER_EVENT" "$MEDIASORTER_TITLE" "$MEDIASORTER_SEASON" > "`+out+`"`, zerolog.Nop())

	bus.Publish(event.EventFileOrganized, event.FilePayload{Title: "黄雀", Season: 1, Destination: "/lib/x.mkv"})

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(out)
		return err == nil && string(data) == "file_organized|黄雀|1"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHookEnv(t *testing.T) {
	env := hookEnv(event.EventFileQuarantined, event.FilePayload{Source: "/dl/05.mp4", Destination: "/un/dl/05.mp4"})
	assert.Contains(t, env, "MEDIASORTER_EVENT=file_quarantined")
	assert.Contains(t, env, "MEDIASORTER_SOURCE=/dl/05.mp4")
	assert.Contains(t, env, "MEDIASORTER_CATALOG_ID=0")
}
