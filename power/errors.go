package power

import "errors"

var (
	// ErrNotArmed is returned by Wait when the wake event was never armed,
	// or its last wake-up has already been consumed.
	ErrNotArmed = errors.New("wake event not armed")

	// ErrUnknownTrigger is returned by ParseTrigger for unsupported names.
	ErrUnknownTrigger = errors.New("unknown wake trigger")
)
