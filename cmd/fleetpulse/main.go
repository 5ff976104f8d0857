package main

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

	"github.com/fleetpulse/internal/alertstore"
	"github.com/fleetpulse/internal/api"
	"github.com/fleetpulse/internal/config"
	"github.com/fleetpulse/internal/database"
	"github.com/fleetpulse/internal/hub"
	"github.com/fleetpulse/internal/metrics"
	"github.com/fleetpulse/internal/projects"
	"github.com/fleetpulse/internal/rules"
	"github.com/fleetpulse/internal/scheduler"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := database.Initialize(cfg.Database.Path); err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	db := database.GetDB()
	if err := database.SeedTenants(db); err != nil {
		slog.Warn("failed to seed tenants", "error", err)
	}

	engine, err := rules.NewEngine(cfg.Rules)
	if err != nil {
		slog.Error("failed to load rule set", "error", err)
		os.Exit(1)
	}

	store := alertstore.New(db)
	reader := metrics.NewReader(db)
	projectManager := projects.NewManager(db)

	sched := scheduler.New(db, reader, engine, store, nil, scheduler.Options{
		Interval:     cfg.Scheduler.Interval,
		WorkerLimit:  cfg.Scheduler.WorkerLimit,
		FetchTimeout: cfg.Scheduler.FetchTimeout,
	})

	pushHub := hub.New(func() interface{} {
		return api.DashboardState(sched, store)
	}, cfg.Hub.ClientQueueDepth)

	// The hub exists before the scheduler needs it, but the scheduler is
	// part of the hub's sync closure, so wire the publisher afterwards.
	sched.SetPublisher(pushHub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pushHub.Run(ctx)
	sched.Start()

	server := api.NewServer(store, sched, projectManager, pushHub)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	go func() {
		slog.Info("api server listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Drain the current tick before anything else so reconcile results are
	// not lost, then close client connections and the listener.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
}
