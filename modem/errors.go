package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has no usable transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrSIMPinRequired is returned when the SIM card requires a PIN and no
	// PIN was provided in the Config.
	ErrSIMPinRequired = errors.New("SIM PIN required")

	// ErrLineTooLong is returned together with the truncated line when a
	// modem response line exceeds the response buffer capacity.
	//
	// The truncated prefix is still usable for fragment matching, which is
	// how the SIM800 firmware has always behaved; callers decide whether the
	// overflow matters.
	ErrLineTooLong = errors.New("response line too long")

	// ErrResponseTimeout is returned when no classifiable response line
	// arrived within the configured response timeout.
	ErrResponseTimeout = errors.New("response timeout")

	// ErrRetriesExhausted is returned when a bounded RetryPolicy runs out of
	// attempts. The default policies are unbounded and never return it.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrAsleep is returned when a command is issued while the modem is in
	// its own low-power mode. Wake must be called first.
	ErrAsleep = errors.New("modem is asleep")

	// ErrMalformedNotification is returned when an SMS notification line
	// carries no quoted sender number.
	ErrMalformedNotification = errors.New("malformed SMS notification")

	// ErrPhoneNumberTooLong is returned when an extracted sender number does
	// not fit the phone number buffer.
	ErrPhoneNumberTooLong = errors.New("phone number too long")

	// ErrInvalidMessage is returned by SendSMS for an empty recipient or a
	// body that cannot be sent in GSM 7-bit text mode.
	ErrInvalidMessage = errors.New("invalid SMS message")
)

func isTimeout(err error) bool {
	return errors.Is(err, ErrResponseTimeout)
}
