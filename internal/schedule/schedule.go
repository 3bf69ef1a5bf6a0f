// Package schedule runs backups on a cron expression. It wraps robfig/cron
// scheduling without the cron job registry, because there is exactly one job
// and it must never overlap itself.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks a cron expression. Standard five-field expressions and
// descriptors such as @daily or @every 6h are accepted.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Next returns the first activation of the expression after the given time.
func Next(expr string, after time.Time) (time.Time, error) {
	parsed, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return parsed.Next(after), nil
}

// Scheduler triggers a job on a cron schedule until its context is
// cancelled. Runs are strictly sequential; when a run outlasts its next
// activation the following run starts at the activation after it finishes.
type Scheduler struct {
	schedule cron.Schedule
	expr     string
	now      func() time.Time
}

// New creates a scheduler for the given cron expression.
func New(expr string) (*Scheduler, error) {
	parsed, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	return &Scheduler{
		schedule: parsed,
		expr:     expr,
		now:      time.Now,
	}, nil
}

// Expression returns the cron expression the scheduler was built from.
func (s *Scheduler) Expression() string {
	return s.expr
}

// NextRun returns the next activation after now.
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(s.now())
}

// Run blocks, invoking job at every activation, until ctx is cancelled.
// It returns nil when cancelled while waiting between runs, or the error
// of the final job invocation when cancelled during one.
func (s *Scheduler) Run(ctx context.Context, job func(context.Context) error) error {
	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		err := job(ctx)
		if ctx.Err() != nil {
			return err
		}
	}
}
