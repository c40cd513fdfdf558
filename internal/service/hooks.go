package service

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/pokerjest/mediasorter/internal/event"
	"github.com/rs/zerolog"
)

const hookTimeout = 2 * time.Minute

// LibraryRefresher is implemented by *jellyfin.Client.
type LibraryRefresher interface {
	RefreshLibrary(ctx context.Context) error
}

// RegisterHooks subscribes the post-transfer hooks. Failures are only logged.
//   - refresher: one library refresh per batch that organized something
//   - command: run through "sh -c" for every organized or quarantined file
func RegisterHooks(bus event.Bus, refresher LibraryRefresher, command string, logger zerolog.Logger) {
	logger = logger.With().Str("component", "hooks").Logger()

	if refresher != nil {
		bus.Subscribe(event.EventBatchDone, func(e event.Event) {
			p, ok := e.Payload.(event.BatchPayload)
			if !ok || p.Organized == 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
			defer cancel()
			if err := refresher.RefreshLibrary(ctx); err != nil {
				logger.Warn().Err(err).Str("batch", p.ID).Msg("library refresh failed")
				return
			}
			logger.Info().Str("batch", p.ID).Int("organized", p.Organized).Msg("library refresh triggered")
		})
	}

	if command != "" {
		run := func(e event.Event) {
			p, ok := e.Payload.(event.FilePayload)
			if !ok {
				return
			}
			if err := runHook(command, e.Type, p); err != nil {
				logger.Warn().Err(err).Str("event", string(e.Type)).Str("file", p.Destination).Msg("hook command failed")
			}
		}
		bus.Subscribe(event.EventFileOrganized, run)
		bus.Subscribe(event.EventFileQuarantined, run)
	}
}

func runHook(command string, typ event.EventType, p event.FilePayload) error {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = append(os.Environ(), hookEnv(typ, p)...)
	return cmd.Run()
}

func hookEnv(typ event.EventType, p event.FilePayload) []string {
	return []string{
		"MEDIASORTER_EVENT=" + string(typ),
		"MEDIASORTER_SOURCE=" + p.Source,
		"MEDIASORTER_DESTINATION=" + p.Destination,
		"MEDIASORTER_TITLE=" + p.Title,
		"MEDIASORTER_YEAR=" + strconv.Itoa(p.Year),
		"MEDIASORTER_SEASON=" + strconv.Itoa(p.Season),
		"MEDIASORTER_EPISODE=" + strconv.Itoa(p.Episode),
		"MEDIASORTER_CATALOG_ID=" + strconv.Itoa(p.CatalogID),
		"MEDIASORTER_CLASSIFICATION=" + p.Classification,
	}
}
