// Package schedule runs a sweep cycle on a cron expression.
package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner invokes a job on a standard five-field cron schedule. Overlapping
// fires are skipped: a sweep cycle can outlast its interval, and two
// concurrent runs would fight over the run lock anyway.
type Runner struct {
	cron *cron.Cron
	log  *logrus.Entry

	mu      sync.Mutex
	running bool
	ctx     context.Context
}

// New validates the expression and registers the job. Each fire receives the
// context passed to Run, so canceling the runner cancels the cycle in flight.
func New(expr string, logger *logrus.Logger, job func(context.Context) error) (*Runner, error) {
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	r := &Runner{
		cron: cron.New(),
		log:  logger.WithField("component", "schedule"),
		ctx:  context.Background(),
	}
	_, err := r.cron.AddFunc(expr, func() {
		r.mu.Lock()
		if r.running {
			r.mu.Unlock()
			r.log.Warn("previous cycle still running; skipping this fire")
			return
		}
		r.running = true
		ctx := r.ctx
		r.mu.Unlock()

		defer func() {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
		}()

		if err := job(ctx); err != nil {
			r.log.WithError(err).Error("scheduled cycle failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("registering schedule: %w", err)
	}
	return r, nil
}

// Run starts the scheduler and blocks until ctx is canceled. Cancellation
// reaches the cycle in flight, which stops at its next batch boundary; Run
// then waits for it to finish.
func (r *Runner) Run(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	r.cron.Start()
	r.log.Info("scheduler started")
	<-ctx.Done()
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.log.Info("scheduler stopped")
}
