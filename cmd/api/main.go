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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campaigner/internal/campaign"
	"campaigner/internal/config"
	"campaigner/internal/httpserver"
	"campaigner/internal/logging"
	"campaigner/internal/observability"
	"campaigner/internal/providers"
	"campaigner/internal/store/pg"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, cfg.Pool)
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	observability.Register(prometheus.DefaultRegisterer)

	gateway, err := providers.NewGateway(cfg.Carrier)
	if err != nil {
		slog.Error("carrier init failed", "err", err)
		os.Exit(1)
	}

	st := pg.New(db)
	api := &httpserver.API{
		Campaigns: &campaign.Service{Store: st, Region: cfg.DefaultRegion},
		Store:     st,
		Gateway:   gateway,
	}

	s := httpserver.New()
	authed := s.Mux.PathPrefix("/v1").Subrouter()
	authed.Use(httpserver.BearerAuth(cfg.APIToken))
	api.Register(authed)

	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(c context.Context) error {
		return db.Ping(c)
	}))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: httpserver.Logging(s.Mux)}

	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api metrics server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
