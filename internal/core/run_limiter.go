package core

// run_limiter.go serializes pipeline runs inside one process.
//
// Flags are checked and set without any storage-level locking, so two runs
// over the same artifacts could both pass a Has check before either calls
// Set. Every run that mutates flags holds the limiter's single slot. Runs in
// other processes are not covered.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrRunInProgress is returned when another pipeline run holds the slot
// past the wait timeout.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// DefaultRunWait is how long a run waits for the slot before giving up.
const DefaultRunWait = 30 * time.Second

// RunLimiter admits one pipeline run at a time.
type RunLimiter struct {
	slot    chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

// NewRunLimiter creates a limiter whose Acquire waits at most maxWait.
func NewRunLimiter(maxWait time.Duration) *RunLimiter {
	if maxWait <= 0 {
		maxWait = DefaultRunWait
	}
	return &RunLimiter{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the run slot. The caller must call Release when done.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slot <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRunInProgress
	}
}

// Release frees the run slot.
func (l *RunLimiter) Release() {
	l.active.Add(-1)
	<-l.slot
}

// Running reports whether a run currently holds the slot.
func (l *RunLimiter) Running() bool {
	return l.active.Load() > 0
}

// WaitForDrain blocks until no run holds the slot or ctx is done.
// Used during graceful shutdown.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !l.Running() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
