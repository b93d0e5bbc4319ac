package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shelftrack/internal/api"
	"github.com/roach88/shelftrack/internal/config"
	"github.com/roach88/shelftrack/internal/engine"
	"github.com/roach88/shelftrack/internal/store"
	"github.com/roach88/shelftrack/internal/topology"
)

// ServeOptions holds flags for the serve command. Flags override the
// corresponding environment variables.
type ServeOptions struct {
	Addr     string
	DBPath   string
	Topology string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracking server",
		Long: `Run the HTTP API server with the reconciliation engine and expiry sweeper.

Configuration comes from SHELFTRACK_* environment variables; flags take
precedence. When a topology file is given, its readers are seeded into the
registry and its sweep settings override the engine defaults.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (default from SHELFTRACK_ADDR)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path (default from SHELFTRACK_DB)")
	cmd.Flags().StringVar(&opts.Topology, "topology", "", "CUE topology file (default from SHELFTRACK_TOPOLOGY)")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *ServeOptions) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading configuration", err)
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.Topology != "" {
		cfg.TopologyPath = opts.Topology
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer s.Close()

	engineOpts := []engine.Option{}
	if cfg.TopologyPath != "" {
		topo, err := topology.Load(cfg.TopologyPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "loading topology", err)
		}
		if err := topo.Seed(ctx, s); err != nil {
			return WrapExitError(ExitCommandError, "seeding readers", err)
		}
		engineOpts = append(engineOpts,
			engine.WithSweepInterval(topo.SweepInterval),
			engine.WithPresenceTimeout(topo.PresenceTimeout),
		)
		slog.Info("topology loaded", "path", cfg.TopologyPath, "readers", len(topo.Readers))
	}

	e := engine.New(s, s, engineOpts...)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.RunSweeper(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("sweeper stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(e).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr, "db", cfg.DBPath)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return WrapExitError(ExitCommandError, "shutting down server", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return WrapExitError(ExitCommandError, "server failed", err)
	}
}
