package power

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is the host's power state.
type State int32

const (
	Active State = iota
	Sleeping
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Sleeping:
		return "sleeping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ModemSleeper puts the modem into its own low-power mode.
type ModemSleeper interface {
	Sleep(ctx context.Context) error
}

// Controller halts the host together with the modem until a wake-up.
// After EnterLowPower or SleepFor return, the modem is still asleep and
// must be woken before any other command.
type Controller struct {
	modem  ModemSleeper
	wake   *Wake
	state  atomic.Int32
	wakes  atomic.Uint64
	logger *slog.Logger
}

func NewController(modem ModemSleeper, wake *Wake, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{modem: modem, wake: wake, logger: logger}
}

// State returns the current power state. It is safe to call from any
// goroutine.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Wakes returns how many times the host has woken up.
func (c *Controller) Wakes() uint64 {
	return c.wakes.Load()
}

// EnterLowPower puts the modem to sleep, arms the wake event and halts
// until an external source fires it.
func (c *Controller) EnterLowPower(ctx context.Context) error {
	return c.halt(ctx, 0)
}

// SleepFor is EnterLowPower with a timer that fires the wake event after
// d. Other sources may still wake the host earlier.
func (c *Controller) SleepFor(ctx context.Context, d time.Duration) error {
	return c.halt(ctx, d)
}

func (c *Controller) halt(ctx context.Context, d time.Duration) error {
	if err := c.modem.Sleep(ctx); err != nil {
		return fmt.Errorf("modem sleep: %w", err)
	}
	c.setState(Sleeping)
	c.wake.Arm()
	if d > 0 {
		t := c.wake.ArmTimer(d)
		defer t.Stop()
	}

	err := c.wake.Wait(ctx)
	c.setState(Active)
	if err != nil {
		return err
	}

	c.wakes.Add(1)
	return nil
}

func (c *Controller) setState(s State) {
	if prev := State(c.state.Swap(int32(s))); prev != s {
		c.logger.Debug("Power state changed", "from", prev.String(), "to", s.String())
	}
}
