package sensor

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// HostClock measures time with the Go runtime's monotonic clock.
type HostClock struct {
	origin time.Time
}

func NewHostClock() *HostClock {
	return &HostClock{origin: time.Now()}
}

func (c *HostClock) Now() time.Duration {
	return time.Since(c.origin)
}

// Delay sleeps for millisecond waits and spins for shorter ones, where the
// scheduler is too coarse.
func (c *HostClock) Delay(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	for end := c.Now() + d; c.Now() < end; {
	}
}

// OpenPin looks up a GPIO by name in periph's registry, e.g. "GPIO4".
// periph's host drivers must have been initialized.
func OpenPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("sensor: no GPIO named %q", name)
	}
	return p, nil
}
