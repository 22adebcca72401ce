// Package sched drives daemon mode: it fires tick callbacks on cron
// schedules. Expressions are handed to the cron library verbatim; this tool
// does not interpret or enforce the window itself. Overlap protection is not
// done here either; the tick's marker guard already serializes invocations.
package sched

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron *cron.Cron
}

// New builds an empty scheduler. Standard five-field cron expressions and
// descriptors like "@every 20m" are accepted.
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Add registers job to run on expr.
func (s *Scheduler) Add(expr string, job func()) error {
	if _, err := s.cron.AddFunc(expr, job); err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}
	return nil
}

// Start launches the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels future firings. The returned context is done once any running
// jobs have finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
