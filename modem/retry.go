package modem

import (
	"context"
	"strconv"
	"time"
)

// RetryPolicy bounds how many times an exchange is attempted. The zero
// value is unbounded: bring-up, PIN and registration checks keep trying for
// as long as the device runs, since nobody is there to intervene.
type RetryPolicy struct {
	// MaxAttempts is the number of attempts allowed. Zero or less means
	// no limit.
	MaxAttempts int
}

// Unbounded retries forever.
var Unbounded = RetryPolicy{}

// Attempts returns a policy allowing at most n attempts.
func Attempts(n int) RetryPolicy {
	return RetryPolicy{MaxAttempts: n}
}

// Allow reports whether the 1-based attempt may run.
func (p RetryPolicy) Allow(attempt int) bool {
	return p.MaxAttempts <= 0 || attempt <= p.MaxAttempts
}

// Bounded reports whether the policy ever gives up.
func (p RetryPolicy) Bounded() bool {
	return p.MaxAttempts > 0
}

func (p RetryPolicy) String() string {
	if !p.Bounded() {
		return "unbounded"
	}
	return strconv.Itoa(p.MaxAttempts)
}

// Sleeper waits out the settle delays between commands. The SIM800 has no
// flow control, so these waits are minimums the modem relies on.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleepFunc adapts a function to the Sleeper interface.
type SleepFunc func(ctx context.Context, d time.Duration) error

func (f SleepFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
