package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pokerjest/mediasorter/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scanner is implemented by *service.Organizer.
type Scanner interface {
	Scan(ctx context.Context) []service.Result
}

// Manager periodically rescans the source directories, which is how files left
// in place (unrecognised or failed transfers) get their next attempt.
type Manager struct {
	cron    *cron.Cron
	spec    string
	scanner Scanner
	logger  zerolog.Logger

	ctx     context.Context
	running atomic.Bool
}

func NewManager(spec string, scanner Scanner, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{
		cron:    cron.New(),
		spec:    spec,
		scanner: scanner,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		ctx:     context.Background(),
	}
	if _, err := m.cron.AddFunc(spec, func() { m.RunOnce(m.ctx) }); err != nil {
		return nil, fmt.Errorf("invalid rescan schedule %q: %w", spec, err)
	}
	return m, nil
}

func (m *Manager) Start(ctx context.Context) {
	m.ctx = ctx
	m.cron.Start()
	m.logger.Info().Str("schedule", m.spec).Msg("scheduler started")
}

func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
	m.logger.Info().Msg("scheduler stopped")
}

// RunOnce scans unless a scan is already running; it reports whether it ran.
func (m *Manager) RunOnce(ctx context.Context) bool {
	if !m.running.CompareAndSwap(false, true) {
		m.logger.Debug().Msg("scan still running, skipped")
		return false
	}
	m.scan(ctx)
	return true
}

// Trigger is RunOnce in the background, for the status API.
func (m *Manager) Trigger(ctx context.Context) bool {
	if !m.running.CompareAndSwap(false, true) {
		return false
	}
	go m.scan(ctx)
	return true
}

func (m *Manager) scan(ctx context.Context) {
	defer m.running.Store(false)
	results := m.scanner.Scan(ctx)
	m.logger.Info().Int("files", len(results)).Msg("rescan finished")
}
