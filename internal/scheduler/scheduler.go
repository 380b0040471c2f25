package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled run.
type TickFunc func(ctx context.Context, runAt time.Time) error

// Options tune scheduler behaviour. When DailyAt is set the scheduler fires
// once per day at that wall-clock time (UTC) and Interval is ignored.
type Options struct {
	DailyAt      string
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives the recurring price update cycle.
type Scheduler struct {
	opts    Options
	dailyAt *time.Time
	logger  zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
	if opts.DailyAt != "" {
		at, err := time.Parse("15:04", opts.DailyAt)
		if err != nil {
			return nil, fmt.Errorf("parse daily_at %q: %w", opts.DailyAt, err)
		}
		s.dailyAt = &at
	} else if opts.Interval <= 0 {
		return nil, fmt.Errorf("scheduler needs daily_at or a positive interval")
	}
	return s, nil
}

// Run blocks, invoking the tick function on schedule until ctx is cancelled.
// Tick errors are logged; the loop keeps going.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.NextRun(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.NextRun(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_run", next).Msg("waiting for next run")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		s.logger.Info().Time("run_at", next).Msg("executing scheduled update")

		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("run_at", next).Msg("scheduled update failed")
		}

		next = s.NextRun(time.Now().UTC())
	}
}

// NextRun returns the first scheduled instant strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	if s.dailyAt != nil {
		candidate := time.Date(now.Year(), now.Month(), now.Day(),
			s.dailyAt.Hour(), s.dailyAt.Minute(), 0, 0, time.UTC)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate
	}
	return now.Add(s.opts.Interval)
}
