package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ErrTimeout is returned by Poll when the condition is not met in time.
var ErrTimeout = errors.New("testutil: timed out")

// Poll calls check every interval until it reports done, returns an error,
// the timeout elapses or ctx is done. wake, when non-nil, is consulted before
// every check; closing the channel it returns triggers the next check early.
// Every timer Poll starts is stopped before it returns.
func Poll(ctx context.Context, timeout, interval time.Duration, wake func() <-chan struct{}, check func() (bool, error)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var changed <-chan struct{}
		if wake != nil {
			changed = wake()
		}

		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ticker.C:
		case <-changed:
		case <-deadline.C:
			// One last look so a commit racing the deadline still counts
			done, err := check()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitForCondition is Poll at DefaultInterval with no wake channel. It
// reports whether condition held before timeout.
func WaitForCondition(t testing.TB, timeout time.Duration, condition func() bool) bool {
	t.Helper()

	err := Poll(context.Background(), timeout, DefaultInterval, nil, func() (bool, error) {
		return condition(), nil
	})
	return err == nil
}

// RequireEventually fails t unless condition holds within timeout.
func RequireEventually(t testing.TB, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	require.True(t, WaitForCondition(t, timeout, condition), "%s: not reached within %v", msg, timeout)
}
