package device

import (
	"errors"
	"fmt"

	"i4.energy/across/envnode/sensor"
)

// field renders a value in tenths as a sign character, at least two
// integer digits, a dot and one decimal. pad stands in for the sign of
// non-negative values.
func field(tenths uint16, negative bool, pad byte) string {
	sign := pad
	if negative {
		sign = '-'
	}
	return fmt.Sprintf("%c%02d.%d", sign, tenths/10, tenths%10)
}

// SMSBody is the reply text for a reading, e.g.
//
//	" Temperature : -12.3 Humidity :  45.6"
func SMSBody(r sensor.Reading) string {
	return " Temperature : " + field(r.Temperature, r.BelowZero, ' ') +
		" Humidity : " + field(r.Humidity, false, ' ')
}

// SMSError is the reply text when the sensor could not be read.
func SMSError(err error) string {
	reason := "failure"
	switch {
	case errors.Is(err, sensor.ErrTimeout):
		reason = "timeout"
	case errors.Is(err, sensor.ErrChecksumMismatch):
		reason = "checksum"
	}
	return " Sensor error : " + reason
}

// HTTPFields returns the temperature and humidity query values, e.g.
// "-12.3" and "045.6".
func HTTPFields(r sensor.Reading) (field1, field2 string) {
	return field(r.Temperature, r.BelowZero, '0'), field(r.Humidity, false, '0')
}
