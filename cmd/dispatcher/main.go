package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mailroute/internal/config"
	"mailroute/internal/dispatch"
	"mailroute/internal/domain"
	"mailroute/internal/httpserver"
	"mailroute/internal/logging"
	"mailroute/internal/observability"
	"mailroute/internal/schedule"
	"mailroute/internal/store/pg"
	"mailroute/internal/transport"
)

func main() {
	cfg := config.LoadDispatcher()
	logging.Init("dispatcher", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{})
	if err != nil {
		slog.Error("dispatcher db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	store := pg.New(db)
	orch := &dispatch.Orchestrator{
		Store:        store,
		NewTransport: transport.New,

		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.DispatchConcurrency,
		SendTimeout: time.Duration(cfg.SendTimeoutSec) * time.Second,
		StaleAfter:  time.Duration(cfg.ClaimStaleAfterSec) * time.Second,

		ProviderRPS:   cfg.ProviderRPS,
		ProviderBurst: cfg.ProviderBurst,
	}

	ctrl := &schedule.Controller{
		Store: store,
		Run: func(ctx context.Context) (domain.BatchSummary, error) {
			return orch.RunBatch(ctx, "schedule")
		},
		Tick: time.Duration(cfg.ScheduleTickSec) * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("schedule loop exited", "err", err)
		}
	}()

	s := httpserver.New(observability.APIRequests)
	runAPI := &httpserver.DispatchAPI{
		Run: func(ctx context.Context) (domain.BatchSummary, error) {
			return orch.RunBatch(ctx, "manual")
		},
	}
	runAPI.Register(s.Mux)

	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s.Mux,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("dispatcher shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("dispatcher listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("dispatcher server failed", "err", err)
		os.Exit(1)
	}

	// Let an in-flight scheduled batch finish before exiting.
	wg.Wait()
}
