package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"corp_finance/pkg/api/waterfall"
	"corp_finance/pkg/core/logger"
	"corp_finance/pkg/core/metrics"
	"corp_finance/pkg/core/service"
	"corp_finance/pkg/core/settings"
	"corp_finance/pkg/core/store"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "TOML config file (defaults and CLO_* env when empty)")
	flag.Parse()

	// Load environment variables
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, *configPath)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled. Deferred cleanup runs before
// main decides the exit code.
func run(ctx context.Context, configPath string) error {
	cfg, err := settings.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	log := logger.Get()

	runs, closeStore, err := store.Open(ctx, cfg.Store.DatabaseURL, cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("run store unavailable: %w", err)
	}
	defer closeStore()

	var m *metrics.Metrics
	mux := http.NewServeMux()
	if cfg.Metrics.Enabled {
		m = metrics.New("api")
		if err := m.Register(nil); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}

	svc := service.New(runs, m, log)
	waterfall.NewHandler(svc, cfg.HTTP.AllowOrigin).Register(mux)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("[API] shutdown failed", "error", err)
		}
	}()

	log.Info("[API] server starting",
		"addr", srv.Addr,
		"env", cfg.Environment,
		"routes", []string{
			"POST /api/waterfall/run",
			"POST /api/waterfall/scenarios",
			"GET  /api/waterfall/runs",
			"GET  /api/waterfall/runs/{id}",
			"GET  /api/waterfall/report/{id}",
			"POST /api/valuation/lbo",
		},
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	<-shutdownDone
	log.Info("[API] server stopped")
	return nil
}
