// Package device runs the reporting node's main control loop: bring the
// modem up, then forever sleep, wake, measure and report, either by
// replying to an SMS or by pushing to an HTTP endpoint on a timer.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"i4.energy/across/envnode/metrics"
	"i4.energy/across/envnode/modem"
	"i4.energy/across/envnode/sensor"
	"i4.energy/across/envnode/telemetry"
)

// Session is the modem surface the controller drives. *modem.Modem
// implements it.
type Session interface {
	BringUp(ctx context.Context) error
	Prepare(ctx context.Context, ringIndicator bool) error
	PinCheck(ctx context.Context) error
	RegistrationCheck(ctx context.Context) error
	ConfigureBearer(ctx context.Context) error
	BearerAttach(ctx context.Context) (bool, error)
	ConfigureSMS(ctx context.Context) error
	AwaitNotification(ctx context.Context) (modem.Notification, error)
	SendSMS(ctx context.Context, recipient, message string) error
	PushHTTP(ctx context.Context, field1, field2 string) error
	Wake(ctx context.Context) error
}

// Sensor is implemented by *sensor.Decoder.
type Sensor interface {
	ReadRetry(ctx context.Context, attempts int) (sensor.Reading, error)
}

// Power is implemented by *power.Controller. Both calls put the modem to
// sleep before halting.
type Power interface {
	EnterLowPower(ctx context.Context) error
	SleepFor(ctx context.Context, d time.Duration) error
}

// ErrMissingDependency is returned by New when a required dependency is
// nil.
var ErrMissingDependency = errors.New("device: missing dependency")

const (
	DefaultInterval           = 60 * time.Minute
	DefaultBootSettle         = 10 * time.Second
	DefaultCycleDelay         = 5 * time.Second
	DefaultRegistrationSettle = 2 * time.Second
	DefaultComposeSettle      = 2 * time.Second
)

type Config struct {
	Mode Mode
	// Interval between telemetry pushes.
	Interval time.Duration
	// BootSettle is the wait for the modem to power up.
	BootSettle time.Duration
	// CycleDelay is the pause after each SMS cycle, and after a failed
	// cycle in either mode.
	CycleDelay time.Duration
	// RegistrationSettle precedes the registration check of each
	// telemetry cycle.
	RegistrationSettle time.Duration
	// ComposeSettle separates the measurement from the SMS reply.
	ComposeSettle time.Duration
	// SensorAttempts bounds sensor retries per measurement. One means a
	// single acquisition.
	SensorAttempts int
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.BootSettle <= 0 {
		c.BootSettle = DefaultBootSettle
	}
	if c.CycleDelay <= 0 {
		c.CycleDelay = DefaultCycleDelay
	}
	if c.RegistrationSettle <= 0 {
		c.RegistrationSettle = DefaultRegistrationSettle
	}
	if c.ComposeSettle <= 0 {
		c.ComposeSettle = DefaultComposeSettle
	}
	if c.SensorAttempts <= 0 {
		c.SensorAttempts = 1
	}
}

// Deps are the collaborators of a Controller. Modem, Sensor and Power are
// required.
type Deps struct {
	Modem   Session
	Sensor  Sensor
	Power   Power
	Sleeper modem.Sleeper
	Metrics *metrics.Metrics
	Mirror  *telemetry.Mirror
	Logger  *slog.Logger
	// NewID returns cycle correlation ids. Defaults to random UUIDs.
	NewID func() string
}

// Snapshot is the outcome of the last measurement.
type Snapshot struct {
	CycleID string         `json:"cycle_id"`
	Mode    string         `json:"mode"`
	Time    time.Time      `json:"time"`
	Reading sensor.Reading `json:"reading"`
	Error   string         `json:"error,omitempty"`
}

// Controller owns the modem session for the lifetime of the device.
type Controller struct {
	config Config
	deps   Deps
	logger *slog.Logger
	last   atomic.Pointer[Snapshot]
}

func New(config Config, deps Deps) (*Controller, error) {
	if deps.Modem == nil || deps.Sensor == nil || deps.Power == nil {
		return nil, ErrMissingDependency
	}
	config.setDefaults()
	if deps.Sleeper == nil {
		deps.Sleeper = modem.SleepFunc(sleepContext)
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	return &Controller{
		config: config,
		deps:   deps,
		logger: deps.Logger.With("mode", config.Mode.String()),
	}, nil
}

// Last returns the most recent measurement. It is safe to call from any
// goroutine.
func (c *Controller) Last() (Snapshot, bool) {
	s := c.last.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Run boots the modem and then runs cycles until ctx is cancelled, which
// is the only way it returns. Failed boots and cycles are logged and
// retried.
func (c *Controller) Run(ctx context.Context) error {
	for {
		err := c.Boot(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("Boot failed", "error", err)
		if err := c.pause(ctx, c.config.CycleDelay); err != nil {
			return err
		}
	}

	for {
		err := c.Cycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Error("Cycle failed", "error", err)
			if err := c.pause(ctx, c.config.CycleDelay); err != nil {
				return err
			}
		}
	}
}

// Boot waits for the modem to power up and brings the session to
// Registered. In telemetry mode the bearer profile is provisioned too.
func (c *Controller) Boot(ctx context.Context) error {
	c.logger.Info("Booting")
	if err := c.pause(ctx, c.config.BootSettle); err != nil {
		return err
	}

	m := c.deps.Modem
	if err := m.BringUp(ctx); err != nil {
		return fmt.Errorf("bring up: %w", err)
	}
	if err := m.Prepare(ctx, c.config.Mode == OnDemandSMS); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if err := m.PinCheck(ctx); err != nil {
		return fmt.Errorf("PIN check: %w", err)
	}
	if err := m.RegistrationCheck(ctx); err != nil {
		return fmt.Errorf("registration: %w", err)
	}
	if c.config.Mode == PeriodicTelemetry {
		if err := m.ConfigureBearer(ctx); err != nil {
			return fmt.Errorf("bearer: %w", err)
		}
	}

	c.logger.Info("Modem ready")
	return nil
}

// Cycle runs one iteration of the control loop for the configured mode.
func (c *Controller) Cycle(ctx context.Context) error {
	id := c.deps.NewID()
	logger := c.logger.With("cycle_id", id)

	var err error
	switch c.config.Mode {
	case PeriodicTelemetry:
		err = c.telemetryCycle(ctx, id, logger)
	default:
		err = c.smsCycle(ctx, id, logger)
	}
	if err == nil {
		c.deps.Metrics.Cycle(c.config.Mode.String())
	}
	return err
}

func (c *Controller) smsCycle(ctx context.Context, id string, logger *slog.Logger) error {
	m := c.deps.Modem
	if err := m.ConfigureSMS(ctx); err != nil {
		return fmt.Errorf("configure SMS: %w", err)
	}

	logger.Debug("Entering low power")
	if err := c.deps.Power.EnterLowPower(ctx); err != nil {
		return fmt.Errorf("low power: %w", err)
	}
	c.deps.Metrics.Wake()

	n, notifyErr := m.AwaitNotification(ctx)
	if notifyErr != nil && !errors.Is(notifyErr, modem.ErrMalformedNotification) {
		return fmt.Errorf("await notification: %w", notifyErr)
	}
	if err := m.Wake(ctx); err != nil {
		return err
	}

	if notifyErr != nil || !n.SMS {
		logger.Info("Woken without SMS, checking network", "line", n.Line, "error", notifyErr)
		if err := m.PinCheck(ctx); err != nil {
			return fmt.Errorf("PIN check: %w", err)
		}
		if err := m.RegistrationCheck(ctx); err != nil {
			return fmt.Errorf("registration: %w", err)
		}
		return c.pause(ctx, c.config.CycleDelay)
	}

	logger.Info("SMS request received", "from", n.Sender)
	var body string
	if r, err := c.measure(ctx, id, logger); err == nil {
		body = SMSBody(r)
	} else {
		body = SMSError(err)
	}
	if err := c.pause(ctx, c.config.ComposeSettle); err != nil {
		return err
	}

	if err := m.SendSMS(ctx, n.Sender, body); err != nil {
		return fmt.Errorf("reply to %s: %w", n.Sender, err)
	}
	c.deps.Metrics.SMSSent()
	return c.pause(ctx, c.config.CycleDelay)
}

func (c *Controller) telemetryCycle(ctx context.Context, id string, logger *slog.Logger) error {
	m := c.deps.Modem
	if err := c.pause(ctx, c.config.RegistrationSettle); err != nil {
		return err
	}
	if err := m.RegistrationCheck(ctx); err != nil {
		return fmt.Errorf("registration: %w", err)
	}

	attached, err := m.BearerAttach(ctx)
	if err != nil {
		return fmt.Errorf("bearer: %w", err)
	}
	if !attached {
		logger.Warn("Bearer down, update will be lost")
	}

	if r, err := c.measure(ctx, id, logger); err == nil {
		field1, field2 := HTTPFields(r)
		if err := m.PushHTTP(ctx, field1, field2); err != nil {
			return fmt.Errorf("push: %w", err)
		}
		c.deps.Metrics.HTTPPushed()
	} else {
		logger.Warn("Skipping update", "error", err)
	}

	logger.Debug("Sleeping until next update", "interval", c.config.Interval)
	if err := c.deps.Power.SleepFor(ctx, c.config.Interval); err != nil {
		return fmt.Errorf("low power: %w", err)
	}
	c.deps.Metrics.Wake()
	return m.Wake(ctx)
}

// measure reads the sensor and publishes the outcome to the snapshot,
// metrics and the MQTT mirror.
func (c *Controller) measure(ctx context.Context, id string, logger *slog.Logger) (sensor.Reading, error) {
	r, err := c.deps.Sensor.ReadRetry(ctx, c.config.SensorAttempts)
	c.deps.Metrics.Reading(r, err)

	snap := &Snapshot{CycleID: id, Mode: c.config.Mode.String(), Time: time.Now().UTC(), Reading: r}
	if err != nil {
		snap.Error = err.Error()
		c.last.Store(snap)
		logger.Warn("Sensor read failed", "error", err)
		return r, err
	}
	c.last.Store(snap)
	logger.Info("Measured", "temperature", r.Celsius(), "humidity", r.RelativeHumidity())

	if err := c.deps.Mirror.Publish(id, c.config.Mode.String(), r); err != nil {
		logger.Warn("Failed to mirror reading", "error", err)
	}
	return r, nil
}

func (c *Controller) pause(ctx context.Context, d time.Duration) error {
	return c.deps.Sleeper.Sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
