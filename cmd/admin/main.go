package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mailroute/internal/config"
	"mailroute/internal/httpserver"
	"mailroute/internal/logging"
	"mailroute/internal/observability"
	"mailroute/internal/service"
	"mailroute/internal/store/pg"
	"mailroute/internal/util"
)

func main() {
	cfg := config.LoadAdmin()
	logging.Init("admin", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{})
	if err != nil {
		slog.Error("admin db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	observability.Register(prometheus.DefaultRegisterer)

	svc := &service.Service{
		Store: pg.New(db),
		IDGen: util.NewID,
		Now:   util.NowUTC,
	}

	s := httpserver.New(observability.APIRequests)
	api := &httpserver.API{Svc: svc}
	api.Register(s.Mux)

	if cfg.DispatcherURL != "" {
		proxy := &httpserver.RunProxy{DispatcherURL: cfg.DispatcherURL}
		proxy.Register(s.Mux)
	}

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
		slog.Info("admin shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("admin listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("admin server failed", "err", err)
		os.Exit(1)
	}
}
