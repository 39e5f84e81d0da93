// Package sensor reads DHT11 and DHT22 temperature and humidity sensors
// over their single-wire pulse protocol.
//
// The host pulls the line low for a start pulse and releases it. The
// sensor answers with a low and a high acknowledge phase and then sends
// 40 bits, each a fixed low phase followed by a high phase whose length
// encodes the bit. Timing is measured by polling, so acquisition must not
// be interrupted.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultStartPulse is how long the host holds the line low.
	DefaultStartPulse = 20 * time.Millisecond
	// MinStartPulse is the shortest start pulse the sensors detect.
	MinStartPulse = 2 * time.Millisecond
	// DefaultPulseTimeout bounds every wait for a level change.
	DefaultPulseTimeout = 200 * time.Microsecond
	// DefaultThreshold separates a 0 bit (about 26µs high) from a 1 bit
	// (about 70µs high).
	DefaultThreshold = 40 * time.Microsecond
	// SampleInterval is the minimum time between two acquisitions.
	SampleInterval = 2 * time.Second

	sampleBits = 40
)

// Pin is the part of a periph gpio.PinIO the decoder needs.
type Pin interface {
	Out(l gpio.Level) error
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// Clock is a monotonic microsecond time source.
type Clock interface {
	// Now returns the time elapsed since an arbitrary fixed origin.
	Now() time.Duration
	// Delay waits at least d.
	Delay(d time.Duration)
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// Decoder acquires samples from one sensor.
type Decoder struct {
	pin    Pin
	clock  Clock
	mask   sync.Locker
	logger *slog.Logger

	model        Model
	startPulse   time.Duration
	pulseTimeout time.Duration
	threshold    time.Duration
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithModel sets the sensor model. DHT22 is the default.
func WithModel(m Model) Option {
	return func(d *Decoder) { d.model = m }
}

// WithStartPulse sets the start pulse length. Values below MinStartPulse
// are raised to it.
func WithStartPulse(p time.Duration) Option {
	return func(d *Decoder) { d.startPulse = max(p, MinStartPulse) }
}

func WithPulseTimeout(t time.Duration) Option {
	return func(d *Decoder) { d.pulseTimeout = t }
}

func WithThreshold(t time.Duration) Option {
	return func(d *Decoder) { d.threshold = t }
}

// WithCriticalSection sets the lock held for the whole acquisition. Pass
// the wake event so a wake-up cannot interrupt the bit timing.
func WithCriticalSection(l sync.Locker) Option {
	return func(d *Decoder) { d.mask = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// NewDecoder returns a decoder for the sensor on pin.
func NewDecoder(pin Pin, clock Clock, opts ...Option) *Decoder {
	d := &Decoder{
		pin:          pin,
		clock:        clock,
		mask:         nopLocker{},
		logger:       slog.New(slog.DiscardHandler),
		model:        DHT22,
		startPulse:   DefaultStartPulse,
		pulseTimeout: DefaultPulseTimeout,
		threshold:    DefaultThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Model returns the configured sensor model.
func (d *Decoder) Model() Model {
	return d.model
}

// Read performs one acquisition and decodes it.
func (d *Decoder) Read() (Reading, error) {
	raw, err := d.acquire()
	if err != nil {
		return Reading{}, err
	}
	return Decode(raw, d.model)
}

// ReadRetry calls Read up to attempts times, waiting SampleInterval between
// tries. Only ErrTimeout and ErrChecksumMismatch are retried.
func (d *Decoder) ReadRetry(ctx context.Context, attempts int) (Reading, error) {
	var err error
	for attempt := 1; attempt <= max(attempts, 1); attempt++ {
		if attempt > 1 {
			t := time.NewTimer(SampleInterval)
			select {
			case <-ctx.Done():
				t.Stop()
				return Reading{}, ctx.Err()
			case <-t.C:
			}
		}

		var r Reading
		r, err = d.Read()
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrChecksumMismatch) {
			return Reading{}, err
		}
		d.logger.Debug("Sensor read failed", "attempt", attempt, "error", err)
	}
	return Reading{}, err
}

// Sense fills e with a single reading. Pressure is left untouched.
func (d *Decoder) Sense(e *physic.Env) error {
	r, err := d.Read()
	if err != nil {
		return err
	}
	env := r.Env()
	e.Temperature = env.Temperature
	e.Humidity = env.Humidity
	return nil
}

func (d *Decoder) acquire() (RawSample, error) {
	var raw RawSample

	d.mask.Lock()
	defer d.mask.Unlock()

	if err := d.pin.Out(gpio.Low); err != nil {
		return raw, fmt.Errorf("sensor: start pulse: %w", err)
	}
	d.clock.Delay(d.startPulse)
	if err := d.pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return raw, fmt.Errorf("sensor: release line: %w", err)
	}

	for _, level := range []gpio.Level{gpio.Low, gpio.High, gpio.Low} {
		if _, err := d.await(level); err != nil {
			return raw, fmt.Errorf("acknowledge: %w", err)
		}
	}

	for i := range sampleBits {
		if _, err := d.await(gpio.High); err != nil {
			return raw, fmt.Errorf("bit %d: %w", i, err)
		}
		high, err := d.await(gpio.Low)
		if err != nil {
			return raw, fmt.Errorf("bit %d: %w", i, err)
		}

		raw[i/8] <<= 1
		if high >= d.threshold {
			raw[i/8] |= 1
		}
	}
	return raw, nil
}

// await polls until the line reads level and returns the time that took.
func (d *Decoder) await(level gpio.Level) (time.Duration, error) {
	start := d.clock.Now()
	for d.pin.Read() != level {
		if d.clock.Now()-start > d.pulseTimeout {
			return 0, ErrTimeout
		}
	}
	return d.clock.Now() - start, nil
}
