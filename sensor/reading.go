package sensor

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/physic"
)

// Model selects how the data bytes of a sample are interpreted.
type Model int

const (
	DHT22 Model = iota
	DHT11
)

func (m Model) String() string {
	switch m {
	case DHT11:
		return "dht11"
	case DHT22:
		return "dht22"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// ParseModel accepts "dht11" or "dht22" in any case.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dht11":
		return DHT11, nil
	case "dht22", "am2302":
		return DHT22, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
}

// RawSample is one 40-bit transfer: humidity high and low, temperature
// high and low, checksum.
type RawSample [5]byte

// Checksum returns the low byte of the sum of the four data bytes.
func (s RawSample) Checksum() byte {
	return s[0] + s[1] + s[2] + s[3]
}

// Reading is a validated measurement. Temperature and Humidity are in
// tenths of a unit; Temperature is a magnitude and BelowZero carries the
// sign.
type Reading struct {
	Temperature uint16
	Humidity    uint16
	BelowZero   bool
	Model       Model
}

// Decode validates the checksum and converts the data bytes according to
// model. A sample with a bad checksum never yields a Reading.
func Decode(s RawSample, model Model) (Reading, error) {
	if s.Checksum() != s[4] {
		return Reading{}, fmt.Errorf("%w: got %#02x, computed %#02x", ErrChecksumMismatch, s[4], s.Checksum())
	}

	r := Reading{Model: model}
	switch model {
	case DHT11:
		r.Humidity = uint16(s[0])*10 + uint16(s[1])
		r.Temperature = uint16(s[2])*10 + uint16(s[3])
	default:
		r.Humidity = uint16(s[0])<<8 | uint16(s[1])
		r.BelowZero = s[2]&0x80 != 0
		r.Temperature = uint16(s[2]&0x7f)<<8 | uint16(s[3])
	}
	return r, nil
}

// Celsius returns the signed temperature in degrees Celsius.
func (r Reading) Celsius() float64 {
	c := float64(r.Temperature) / 10
	if r.BelowZero {
		return -c
	}
	return c
}

// RelativeHumidity returns the humidity in percent.
func (r Reading) RelativeHumidity() float64 {
	return float64(r.Humidity) / 10
}

// Env converts the reading to periph's environment type.
func (r Reading) Env() physic.Env {
	t := physic.Temperature(r.Temperature) * 100 * physic.MilliKelvin
	if r.BelowZero {
		t = -t
	}
	return physic.Env{
		Temperature: physic.ZeroCelsius + t,
		Humidity:    physic.RelativeHumidity(r.Humidity) * physic.PercentRH / 10,
	}
}

func (r Reading) String() string {
	return fmt.Sprintf("%.1f°C %.1f%%RH", r.Celsius(), r.RelativeHumidity())
}
