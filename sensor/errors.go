package sensor

import "errors"

var (
	// ErrTimeout is returned when the sensor line did not reach the awaited
	// level within the pulse timeout. It aborts the acquisition at once.
	ErrTimeout = errors.New("sensor: pulse timeout")

	// ErrChecksumMismatch is returned when the fifth byte of a sample is not
	// the low byte of the sum of the first four. The decoded values are
	// discarded.
	ErrChecksumMismatch = errors.New("sensor: checksum mismatch")

	// ErrUnknownModel is returned by ParseModel for unsupported sensor names.
	ErrUnknownModel = errors.New("sensor: unknown model")
)
