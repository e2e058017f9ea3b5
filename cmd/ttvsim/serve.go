package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tchin/transit-timing-variation/internal/api"
	"github.com/tchin/transit-timing-variation/internal/cache"
	"github.com/tchin/transit-timing-variation/internal/sink"
	"github.com/tchin/transit-timing-variation/internal/store"
	"github.com/tchin/transit-timing-variation/internal/stream"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve simulations over HTTP",
		Long: `Serve the simulation API: synchronous runs, run history, rendered plots and
a server-sent event stream of transits as they are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (env TTVSIM_HTTP_ADDR, default :8080)")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("addr") {
			a.v.Set("http.addr", cmd.Flags().Lookup("addr").Value.String())
		}
	}
	return cmd
}

func (a *app) serve(parent context.Context) error {
	logger := a.logger

	authCfg, err := loadAuthConfig(logger, a.v)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		return err
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	systems, fetcher, catalogCfg, err := a.loadSystems(ctx)
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		return err
	}

	reports, err := cache.NewReportCache(loadCacheConfig(logger, a.v), logger)
	if err != nil {
		return err
	}

	runs, err := store.Open(loadStorePath(logger, a.v), logger)
	if err != nil {
		logger.Error("failed to open run history", "error", err)
		return err
	}
	defer runs.Close()

	var reportSink api.ReportSink
	if cfg, ok := loadSinkConfig(logger, a.v); ok {
		influx, err := sink.NewInflux(cfg, logger)
		if err != nil {
			return err
		}
		defer influx.Close()
		if err := influx.Ping(ctx); err != nil {
			logger.Warn("influx not reachable at startup, exports may fail", "error", err)
		}
		reportSink = influx
	}

	base := loadRunConfig(logger, a.v)
	serverCfg := loadServerConfig(logger, a.v, authCfg)
	recorder := api.NewRecorder(reports, runs, reportSink, logger)
	streamHandler := stream.NewHandler(systems, base, loadStreamConfig(logger, a.v, serverCfg.MaxTransits), recorder.OnReport, logger)

	srv := api.NewServer(serverCfg, api.Deps{
		Systems:  systems,
		Reports:  reports,
		Runs:     runs,
		Recorder: recorder,
		Stream:   streamHandler,
		Base:     base,
	}, logger)

	if fetcher != nil && catalogCfg.Refresh > 0 {
		go a.refreshCatalog(ctx, fetcher, systems, catalogCfg.Refresh)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", serverCfg.Addr, "auth_enabled", authCfg.Enabled, "catalog", catalogCfg.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server listen error", "error", err)
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
