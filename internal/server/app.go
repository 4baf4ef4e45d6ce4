// Package server wires the numeria auth server together: storage, services,
// the gRPC transport, the metrics endpoint and the expired-token sweeper. It
// also handles graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server/config"
	"github.com/dmitrijs2005/numeria/internal/server/metrics"

	gs "github.com/dmitrijs2005/numeria/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	storage    *Storage
	metrics    *metrics.Metrics
	components *Components
}

// NewLogger builds the logger selected by c.
func NewLogger(c *config.Config) (logging.Logger, error) {
	return logging.New(os.Stdout, logging.Options{Backend: c.LogBackend, Format: c.LogFormat, Level: c.LogLevel})
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := NewLogger(c)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	st, err := OpenStorage(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	comps, err := NewComponents(c, st, logger, m)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{config: c, logger: logger, storage: st, metrics: m, components: comps}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.components.Auth)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "metrics server failed", "error", err)
		cancelFunc()
	}
}

// runSweeper deletes expired tokens and sessions every SweepInterval until
// ctx is cancelled.
func (app *App) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.components.Tokens.SweepExpired(ctx)
			if err != nil {
				app.logger.Error(ctx, "sweep failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired rows removed", "count", n)
			}
		}
	}
}

// Run serves until ctx is cancelled or a signal arrives, then waits for
// in-flight work and closes storage.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", storageKind(app.config.DatabaseDSN))

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	if app.config.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.runSweeper(ctx)
		}()
	}

	wg.Wait()

	app.components.Auth.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return app.storage.Close()
}

func storageKind(dsn string) string {
	if dsn == MemoryDSN {
		return "memory"
	}
	return "postgres"
}
