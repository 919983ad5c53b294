package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"azure-cost-alerts/internal/config"
	"azure-cost-alerts/internal/metrics"
	"azure-cost-alerts/internal/scheduler"
)

const metricsNamespace = "azcostalert"

// Watch runs the analysis on the configured schedule and serves metrics until interrupted.
func (a *App) Watch(ctx context.Context, opts AnalyzeOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	opts.Date = ""

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := a.Config()
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	watching, err := config.Watch(a.ConfigPath, a.Logger, a.SetConfig)
	if err != nil {
		return err
	}
	if !watching {
		a.Logger.Debug().Msg("no configuration file to watch")
	}

	sched, err := scheduler.New(scheduler.Options{
		Schedule:   cfg.Watch.Schedule,
		Location:   loc,
		RunOnStart: cfg.Watch.RunOnStart,
	}, a.Logger)
	if err != nil {
		return err
	}

	rec := metrics.NewRecorder(metricsNamespace)
	tick := func(ctx context.Context, at time.Time) error {
		_, err := a.analyze(ctx, a.Config(), opts, rec, at)
		if errors.Is(err, ErrSubscriptionsFailed) {
			return nil
		}
		return err
	}

	a.Logger.Info().Str("schedule", cfg.Watch.Schedule).Str("prefix", opts.Prefix).Msg("starting watch mode")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.Watch.MetricsAddr, rec, a.Logger)
	})
	g.Go(func() error {
		return sched.Run(gctx, tick)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch terminated with error")
		return err
	}
	a.Logger.Info().Msg("watch mode stopped")
	return nil
}
