package service

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/pokerjest/mediasorter/internal/metrics"
)

// InFlight is the set of absolute paths currently being handled.
type InFlight struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{paths: make(map[string]struct{})}
}

// TryAcquire atomically claims path. It returns false if another handler holds it.
func (s *InFlight) TryAcquire(path string) bool {
	path = absPath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[path]; ok {
		return false
	}
	s.paths[path] = struct{}{}
	metrics.InFlight.Inc()
	return true
}

func (s *InFlight) Release(path string) {
	path = absPath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[path]; ok {
		delete(s.paths, path)
		metrics.InFlight.Dec()
	}
}

// Snapshot returns the held paths, sorted.
func (s *InFlight) Snapshot() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
