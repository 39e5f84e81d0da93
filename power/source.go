package power

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Trigger selects how the active-low wake line is detected.
type Trigger int

const (
	FallingEdge Trigger = iota
	LowLevel
)

func (t Trigger) String() string {
	switch t {
	case FallingEdge:
		return "falling"
	case LowLevel:
		return "low"
	default:
		return fmt.Sprintf("Trigger(%d)", int(t))
	}
}

// ParseTrigger accepts "falling" or "low".
func ParseTrigger(s string) (Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "falling", "edge":
		return FallingEdge, nil
	case "low", "level":
		return LowLevel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTrigger, s)
	}
}

// InterruptPin is the part of a periph gpio.PinIn a wake watcher needs.
type InterruptPin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

const watchInterval = 10 * time.Millisecond

// WatchPin fires w whenever pin signals a wake-up, until ctx is done. It
// is meant to run in its own goroutine for the lifetime of the device.
// Signals while w is not armed are dropped.
func WatchPin(ctx context.Context, pin InterruptPin, trigger Trigger, w *Wake, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	edge := gpio.NoEdge
	if trigger == FallingEdge {
		edge = gpio.FallingEdge
	}
	if err := pin.In(gpio.PullUp, edge); err != nil {
		return fmt.Errorf("configure wake pin: %w", err)
	}

	for ctx.Err() == nil {
		var signalled bool
		switch trigger {
		case FallingEdge:
			signalled = pin.WaitForEdge(watchInterval)
		default:
			time.Sleep(watchInterval)
			signalled = pin.Read() == gpio.Low
		}
		if signalled && w.Fire() {
			logger.Debug("Wake line asserted", "trigger", trigger.String())
		}
	}
	return ctx.Err()
}
