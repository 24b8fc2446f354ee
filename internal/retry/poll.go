package retry

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned when a poll exhausts its time budget while the
// remote side still reports work in progress.
var ErrPollTimeout = errors.New("poll: timed out waiting for readiness")

// PollConfig bounds a readiness poll.
type PollConfig struct {
	// Interval is the fixed wait between checks.
	Interval time.Duration
	// Timeout caps the whole poll. Zero means no cap beyond ctx.
	Timeout time.Duration
	// MaxAttempts caps the number of checks. Zero means unlimited.
	MaxAttempts int
}

// CheckFunc reports whether the awaited resource is ready. Returning a
// non-nil error stops the poll immediately: that is how callers signal a
// terminal failure state, as opposed to "still processing".
type CheckFunc func(ctx context.Context) (ready bool, err error)

// Poll calls check until it reports ready, fails, or the budget runs out.
// The first check happens immediately.
func Poll(ctx context.Context, cfg PollConfig, check CheckFunc) error {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}

	for attempt := 1; ; attempt++ {
		ready, err := check(ctx)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return ErrPollTimeout
		}
		if !deadline.IsZero() && time.Now().Add(cfg.Interval).After(deadline) {
			return ErrPollTimeout
		}

		timer := time.NewTimer(cfg.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
