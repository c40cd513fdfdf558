package service

import "sync"

// DefaultQuarantineThreshold 多文件目录连续失败多少次后隔离
const DefaultQuarantineThreshold = 3

// QuarantinePolicy counts consecutive unrecognised rounds per source folder.
type QuarantinePolicy struct {
	threshold int

	mu     sync.Mutex
	counts map[string]int
}

func NewQuarantinePolicy(threshold int) *QuarantinePolicy {
	if threshold <= 0 {
		threshold = DefaultQuarantineThreshold
	}
	return &QuarantinePolicy{threshold: threshold, counts: make(map[string]int)}
}

// ShouldQuarantine records one failure for folder. A standalone file (no other
// unprocessed video in its folder) is quarantined at once; otherwise only when
// the counter reaches the threshold.
func (q *QuarantinePolicy) ShouldQuarantine(folder string, standalone bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.counts[folder]++
	if standalone {
		return true
	}
	return q.counts[folder] >= q.threshold
}

// Reset forgets the failures of folder, after a success or a quarantine.
func (q *QuarantinePolicy) Reset(folder string) {
	q.mu.Lock()
	delete(q.counts, folder)
	q.mu.Unlock()
}

func (q *QuarantinePolicy) Count(folder string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[folder]
}

// Snapshot copies the current counters.
func (q *QuarantinePolicy) Snapshot() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int, len(q.counts))
	for k, v := range q.counts {
		out[k] = v
	}
	return out
}
