package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cardfs/internal/identity"
	"github.com/roach88/cardfs/internal/metrics"
	"github.com/roach88/cardfs/internal/vfs"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	MetricsAddr string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Keep the local cache in sync with the remote",
		Long: `Run a synced session until interrupted. Remote changes are applied to the
local cache as they arrive; each change is logged.

Example:
  cardfs sync --user alice --config cardfs.yaml
  cardfs sync --metrics-addr :9090 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default from config)")
	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return withLongSession(ctx, opts.RootOptions, func(s *session) error {
		if s.remote == nil {
			return NewExitError(ExitCommandError, "no remote configured (set remote.kind)")
		}
		if s.userKey == identity.Anonymous {
			return NewExitError(ExitCommandError, "sync needs a user (--user, user or token)")
		}

		addr := opts.MetricsAddr
		if addr == "" {
			addr = s.cfg.MetricsAddr
		}
		if addr != "" {
			srv := &http.Server{Addr: addr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("metrics server failed", "addr", addr, "error", err)
				}
			}()
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer done()
				_ = srv.Shutdown(shutdownCtx)
			}()
			slog.Info("serving metrics", "addr", addr)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Syncing %s. Press Ctrl-C to stop.\n", s.userKey)
		watchViews(ctx, s.engine, s.logger)
		slog.Info("sync stopped")
		return nil
	})
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// watchViews logs every published view until ctx is done.
func watchViews(ctx context.Context, eng *vfs.Engine, logger *slog.Logger) {
	for v := range eng.Watch(ctx) {
		logger.Info("tree updated",
			"seq", v.Seq,
			"state", v.State,
			"nodes", v.Tree.Len(),
		)
	}
}
