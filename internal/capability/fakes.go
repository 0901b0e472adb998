package capability

import (
	"context"
	"sync"
	"time"
)

// Resolved returns a probe that yields flags after delay.
func Resolved(flags Flags, delay time.Duration) Probe {
	return func(ctx context.Context) (Flags, error) {
		if delay <= 0 {
			return flags, ctx.Err()
		}
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			return flags, nil
		case <-ctx.Done():
			return Flags{}, ctx.Err()
		}
	}
}

// Never returns a probe that only returns when ctx is done.
func Never() Probe {
	return func(ctx context.Context) (Flags, error) {
		<-ctx.Done()
		return Flags{}, ctx.Err()
	}
}

// Failing returns a probe that fails with err after delay.
func Failing(err error, delay time.Duration) Probe {
	return func(ctx context.Context) (Flags, error) {
		if _, cerr := Resolved(Flags{}, delay)(ctx); cerr != nil {
			return Flags{}, cerr
		}
		return Flags{}, err
	}
}

// Recorder wraps a probe and counts what happened to each call.
type Recorder struct {
	probe Probe

	mu        sync.Mutex
	calls     int
	completed int
	cancelled int
}

// NewRecorder wraps p.
func NewRecorder(p Probe) *Recorder {
	return &Recorder{probe: p}
}

// Probe is the recording probe to inject.
func (r *Recorder) Probe(ctx context.Context) (Flags, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	flags, err := r.probe(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		r.cancelled++
	} else {
		r.completed++
	}
	return flags, err
}

// Calls returns how many times the probe was started.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Completed returns how many calls returned before their context was done.
func (r *Recorder) Completed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Cancelled returns how many calls returned because their context was done.
func (r *Recorder) Cancelled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}
