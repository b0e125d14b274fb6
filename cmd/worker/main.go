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
	"github.com/robfig/cron/v3"

	"campaigner/internal/campaign"
	"campaigner/internal/config"
	"campaigner/internal/dispatch"
	"campaigner/internal/httpserver"
	"campaigner/internal/logging"
	"campaigner/internal/observability"
	"campaigner/internal/providers"
	"campaigner/internal/store/pg"
	"campaigner/internal/sweep"
	"campaigner/internal/util"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, cfg.Pool)
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
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

	gateway, err := providers.NewGateway(cfg.Carrier)
	if err != nil {
		slog.Error("carrier init failed", "err", err)
		os.Exit(1)
	}

	st := pg.New(db)
	campaigns := &campaign.Service{Store: st, Region: cfg.DefaultRegion}
	dispatcher := &dispatch.Dispatcher{
		Store:       st,
		Gateway:     gateway,
		BatchSize:   cfg.BatchSize(),
		MaxAttempts: cfg.MaxSendAttempts,
		CallbackURL: cfg.CallbackURL,
		IDGen:       util.NewMessageID,
	}
	sweeper := &sweep.Sweeper{Store: st, Launcher: campaigns}

	interval, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil || interval <= 0 {
		slog.Warn("invalid SWEEP_INTERVAL, falling back to 60s", "value", cfg.SweepInterval)
		interval = time.Minute
	}

	c := cron.New()
	err = sweep.Schedule(c, interval, []sweep.Job{
		{Name: "launch-due", Run: sweeper.LaunchDue},
		{Name: "dispatch", Run: dispatcher.RunOnce},
		{Name: "resurrect-failed", Run: sweeper.Resurrect},
		{Name: "auto-complete", Run: sweeper.AutoComplete},
	})
	if err != nil {
		slog.Error("scheduling sweeps failed", "err", err)
		os.Exit(1)
	}
	c.Start()
	slog.Info("worker sweeps scheduled", "interval", interval, "batch_size", dispatcher.BatchSize)

	// liveness/readiness
	s := httpserver.New()
	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(c context.Context) error {
		return db.Ping(c)
	}))
	healthSrv := &http.Server{Addr: ":" + cfg.Port, Handler: httpserver.Logging(s.Mux)}
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
		}
	}()

	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("worker shutdown", "signal", sig.String())

	cancel()
	stopCtx := c.Stop() // waits for running jobs
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		slog.Info("worker shutdown timeout waiting for running sweeps")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
