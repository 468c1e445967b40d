package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"thesearch/internal/adapter/httpapi"
	"thesearch/internal/adapter/mcpserver"
	"thesearch/internal/adapter/store"
	"thesearch/internal/infra/config"
	"thesearch/internal/infra/logger"
	"thesearch/internal/infra/tracer"
	"thesearch/internal/usecase/scheduling"
)

const drainTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	// 1. Config
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.WithoutCancel(ctx))

	// 3. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Search, LLM, store, engine
	metrics := httpapi.NewMetrics(prometheus.NewRegistry())
	a, err := newApp(ctx, cfg, true, metrics, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close error", "error", err)
		}
	}()

	// 5. Housekeeping
	scheduler, err := newScheduler(cfg, a, log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if o := a.ollama(); o != nil {
		go func() {
			if err := o.Warmup(ctx); err != nil {
				log.Warn("ollama warmup failed", "model", o.Model(), "error", err)
			}
		}()
	}

	// 6. HTTP
	deps := httpapi.Deps{
		Engine:   a.engine,
		Store:    a.store,
		StoreTTL: cfg.Store.TTL,
		Metrics:  metrics,
		Client:   cfg.LLM.Client,
		Logger:   log,
	}
	if cfg.Server.MCP.Enabled {
		deps.MCP = mcpserver.New(a.engine, version, log).Handler(cfg.Server.MCP.Path)
	}
	srv := httpapi.NewServer(cfg.Server, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return scheduler.Stop()
	})
	err = g.Wait()

	// Related-question tasks outlive their requests; let them finish so
	// their answers are not cut off mid-write.
	drainCtx, drainCancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer drainCancel()
	if derr := a.engine.Drain(drainCtx); derr != nil {
		log.Warn("background tasks did not drain", "error", derr)
	}
	log.Info("shutdown complete")
	return err
}

// newScheduler registers the purge job for stores that need one.
func newScheduler(cfg *config.Config, a *app, log *slog.Logger) (*scheduling.Scheduler, error) {
	scheduler := scheduling.NewScheduler(log)

	p, ok := a.store.(store.Purger)
	if !ok || cfg.Store.SQLite.PurgeSchedule == "" {
		return scheduler, nil
	}
	scheduler.RegisterAction(scheduling.ActionStorePurge, func(ctx context.Context) error {
		n, err := p.Purge(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("expired answers purged", "count", n)
		}
		return nil
	})
	err := scheduler.AddTask(scheduling.ScheduledTask{
		Name:     "result-store-purge",
		Schedule: cfg.Store.SQLite.PurgeSchedule,
		Action:   scheduling.ActionStorePurge,
	})
	return scheduler, err
}
