package service

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// Ledger is the append-only list of processed file names, one per line.
// Appends are serialised in-process by mu and across processes by a flock on <path>.lock.
type Ledger struct {
	path string
	lock *flock.Flock

	mu    sync.RWMutex
	names map[string]struct{}
}

// OpenLedger loads the ledger at path, creating its directory if needed.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	l := &Ledger{
		path:  path,
		lock:  flock.New(path + ".lock"),
		names: make(map[string]struct{}),
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load() error {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			l.names[name] = struct{}{}
		}
	}
	return sc.Err()
}

// Contains reports whether the base name of path was processed before.
func (l *Ledger) Contains(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.names[filepath.Base(path)]
	return ok
}

// Add records the base name of path. Adding a known name is a no-op.
func (l *Ledger) Add(path string) error {
	name := filepath.Base(path)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.names[name]; ok {
		return nil
	}

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	defer l.lock.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := f.WriteString(name + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	l.names[name] = struct{}{}
	return nil
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.names)
}
