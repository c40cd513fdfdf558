package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"
	"github.com/pokerjest/mediasorter/internal/api"
	"github.com/pokerjest/mediasorter/internal/logging"
	"github.com/pokerjest/mediasorter/internal/parser"
	"github.com/pokerjest/mediasorter/internal/scheduler"
	"github.com/pokerjest/mediasorter/internal/watcher"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var noAPI bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the source directories and organize new files (daemon)",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.engine()
			if err != nil {
				return err
			}
			if err := eng.settings.Validate(); err != nil {
				return err
			}

			// 同一个 ledger 只允许一个守护进程
			lock := flock.New(filepath.Join(filepath.Dir(ctx.cfg.Ledger.Path), "mediasorter.pid.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire daemon lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another mediasorter daemon is running (lock %s)", lock.Path())
			}
			defer lock.Unlock()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := logging.Component(ctx.logger, "daemon")
			eng.probe(runCtx, logger)
			w := watcher.New(eng.settings.SourceDirs, eng.organizer, eng.settings.Debounce, nil, ctx.logger)

			sched, err := scheduler.NewManager(eng.settings.RescanCron, eng.organizer, ctx.logger)
			if err != nil {
				return err
			}
			sched.Start(runCtx)
			defer sched.Stop()

			g, gctx := errgroup.WithContext(runCtx)
			g.Go(func() error { return w.Run(gctx) })

			if !noAPI {
				gin.SetMode(ctx.cfg.Server.Mode)
				router := api.NewRouter(api.Deps{
					Organizer:     eng.organizer,
					Parser:        parser.New(parser.NewGuesser(eng.settings.Guesser), parser.NewCleaner(eng.settings.Denylist)),
					Scan:          func() bool { return sched.Trigger(gctx) },
					WatcherStates: w.States,
				}, ctx.logger)
				srv := &http.Server{
					Addr:              fmt.Sprintf(":%d", ctx.cfg.Server.Port),
					Handler:           router,
					ReadHeaderTimeout: 10 * time.Second,
				}
				g.Go(func() error {
					logger.Info().Str("addr", srv.Addr).Msg("status api listening")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			err = g.Wait()
			eng.drainHooks(logger)
			logger.Info().Msg("mediasorter stopped")
			return err
		},
	}

	cmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not start the status API")
	return cmd
}
