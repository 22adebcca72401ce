// Package history keeps a local record of tick outcomes so an operator can
// ask "what happened last night" without scraping the heartbeat log.
package history

import (
	"context"
	"time"
)

// Record is one tick outcome.
type Record struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	Skipped     bool
	BlockingPID int // pid that blocked a skipped tick, 0 otherwise
	ExitCode    int // agent exit status; meaningless when Skipped
}

// Store persists tick records. Implementations must tolerate concurrent
// writers only to the extent the guard already serializes ticks.
type Store interface {
	EnsureSchema(ctx context.Context) error
	RecordTick(ctx context.Context, rec Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
