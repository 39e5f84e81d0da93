package device

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for unsupported mode names.
var ErrUnknownMode = errors.New("unknown operating mode")

// Mode selects the device's reporting behaviour.
type Mode int

const (
	// OnDemandSMS sleeps until an SMS arrives and replies to its sender
	// with a measurement.
	OnDemandSMS Mode = iota
	// PeriodicTelemetry wakes on a timer and pushes a measurement over
	// HTTP.
	PeriodicTelemetry
)

func (m Mode) String() string {
	switch m {
	case OnDemandSMS:
		return "sms"
	case PeriodicTelemetry:
		return "telemetry"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "sms" or "telemetry".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sms", "ondemand":
		return OnDemandSMS, nil
	case "telemetry", "http", "periodic":
		return PeriodicTelemetry, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}
