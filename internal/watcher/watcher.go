package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"
	"github.com/pokerjest/mediasorter/internal/service"
	"github.com/rs/zerolog"
)

// Processor is implemented by *service.Organizer.
type Processor interface {
	Eligible(path string) bool
	Pending() []string
	ProcessBatch(ctx context.Context, paths []string) []service.Result
}

// Watcher monitors the source roots and feeds debounced batches to a Processor.
// Batches are processed one at a time.
type Watcher struct {
	roots  []string
	proc   Processor
	clock  clock.Clock
	wait   time.Duration
	logger zerolog.Logger

	fw      *fsnotify.Watcher
	ctx     context.Context
	bounce  map[string]*Debouncer // root -> debouncer, fixed after New
	batches chan []string
}

func New(roots []string, proc Processor, wait time.Duration, clk clock.Clock, logger zerolog.Logger) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	w := &Watcher{
		roots:   roots,
		proc:    proc,
		clock:   clk,
		wait:    wait,
		logger:  logger.With().Str("component", "watcher").Logger(),
		ctx:     context.Background(),
		bounce:  make(map[string]*Debouncer),
		batches: make(chan []string, 16),
	}
	for _, root := range roots {
		w.bounce[root] = NewDebouncer(clk, wait, w.enqueue)
	}
	return w
}

// Run watches until ctx is cancelled. Files present at startup are processed
// once before any event arrives.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()
	w.fw = fw
	w.ctx = ctx

	for _, root := range w.roots {
		if err := os.MkdirAll(root, 0755); err != nil {
			return fmt.Errorf("create source dir %s: %w", root, err)
		}
		w.addRecursive(root)
	}
	w.logger.Info().Strs("roots", w.roots).Dur("debounce", w.wait).Msg("watching")

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.processLoop(ctx)
	}()

	if pending := w.proc.Pending(); len(pending) > 0 {
		w.logger.Info().Int("files", len(pending)).Msg("startup scan")
		w.enqueue(pending)
	}

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("fsnotify error")
		case <-ctx.Done():
			for _, d := range w.bounce {
				d.Cancel()
			}
			<-done
			return nil
		}
	}
}

// States reports the debouncer state of every root.
func (w *Watcher) States() map[string]string {
	out := make(map[string]string, len(w.bounce))
	for root, d := range w.bounce {
		out[root] = d.State().String()
	}
	return out
}

func (w *Watcher) processLoop(ctx context.Context) {
	for {
		select {
		case paths := <-w.batches:
			w.proc.ProcessBatch(ctx, paths)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) enqueue(paths []string) {
	// 文件可能在等待期间被删除或改名
	ready := paths[:0:0]
	for _, p := range paths {
		if w.proc.Eligible(p) {
			ready = append(ready, p)
		}
	}
	if len(ready) == 0 {
		return
	}
	select {
	case w.batches <- ready:
	case <-w.ctx.Done():
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		// rename 事件对应旧文件名, 新文件名会再来一个 create
		return
	}
	root := w.rootOf(ev.Name)
	if root == "" {
		return
	}
	d := w.bounce[root]

	if info.IsDir() {
		// 整个目录被移进来
		w.addRecursive(ev.Name)
		_ = filepath.WalkDir(ev.Name, func(p string, e fs.DirEntry, err error) error {
			if err == nil && !e.IsDir() && w.proc.Eligible(p) {
				d.Add(p)
			}
			return nil
		})
		return
	}
	if w.proc.Eligible(ev.Name) {
		d.Add(ev.Name)
	}
}

func (w *Watcher) addRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("dir", path).Msg("watch failed")
		}
		return nil
	})
}

func (w *Watcher) rootOf(path string) string {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}
