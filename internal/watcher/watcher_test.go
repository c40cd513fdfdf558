package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pokerjest/mediasorter/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu      sync.Mutex
	pending []string
	batches [][]string
}

func (f *fakeProcessor) Eligible(path string) bool {
	if !strings.HasSuffix(path, ".mkv") {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (f *fakeProcessor) Pending() []string { return f.pending }

func (f *fakeProcessor) ProcessBatch(_ context.Context, paths []string) []service.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, paths)
	return nil
}

func (f *fakeProcessor) all() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.batches...)
}

func TestWatcher_StartupScanAndEvents(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.mkv")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))

	proc := &fakeProcessor{pending: []string{existing}}
	w := New([]string{root}, proc, 200*time.Millisecond, clock.New(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		b := proc.all()
		return len(b) == 1 && b[0][0] == existing
	}, 2*time.Second, 10*time.Millisecond)

	// a burst inside a new sub directory becomes one batch
	show := filepath.Join(root, "黄雀 (2024)")
	require.NoError(t, os.Mkdir(show, 0755))
	time.Sleep(50 * time.Millisecond)
	for _, name := range []string{"黄雀 - S01E01.mkv", "黄雀 - S01E02.mkv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(show, name), []byte("x"), 0644))
	}

	assert.Eventually(t, func() bool { return len(proc.all()) == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{
		filepath.Join(show, "黄雀 - S01E01.mkv"),
		filepath.Join(show, "黄雀 - S01E02.mkv"),
	}, proc.all()[1])
	assert.Eventually(t, func() bool { return w.States()[root] == "idle" }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRootOf(t *testing.T) {
	w := New([]string{"/downloads/tv", "/downloads/movies"}, &fakeProcessor{}, time.Second, nil, zerolog.Nop())
	assert.Equal(t, "/downloads/tv", w.rootOf("/downloads/tv/show/a.mkv"))
	assert.Equal(t, "/downloads/movies", w.rootOf("/downloads/movies/a.mkv"))
	assert.Equal(t, "", w.rootOf("/downloads/tvshows/a.mkv"))
	assert.Equal(t, "", w.rootOf("/library/a.mkv"))
}
