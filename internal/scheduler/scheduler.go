package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled activation.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Schedule is a standard five-field cron expression.
	Schedule   string
	Location   *time.Location
	RunOnStart bool
}

// Scheduler drives cron-scheduled analysis runs.
type Scheduler struct {
	opts     Options
	schedule cron.Schedule
	logger   zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	schedule, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", opts.Schedule, err)
	}
	return &Scheduler{
		opts:     opts,
		schedule: schedule,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Next returns the first activation strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.opts.Location))
}

// Run blocks, invoking tick on every activation until ctx is cancelled.
// Overlapping activations are skipped while a tick is still running.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	run := func() {
		at := time.Now().In(s.opts.Location)
		s.logger.Info().Time("at", at).Msg("executing scheduled tick")
		if err := tick(ctx, at); err != nil {
			s.logger.Error().Err(err).Time("at", at).Msg("tick execution failed")
		}
		s.logger.Debug().Time("next", s.Next(time.Now())).Msg("waiting for next activation")
	}

	if s.opts.RunOnStart {
		run()
	}

	c.Schedule(s.schedule, cron.FuncJob(run))
	c.Start()
	s.logger.Info().Str("schedule", s.opts.Schedule).Time("next", s.Next(time.Now())).Msg("scheduler started")

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return ctx.Err()
}
