package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"i4.energy/across/envnode/at"
)

// ResponseCapacity is the size of the response line buffer. Longer lines
// are cut to this length.
const ResponseCapacity = 40

// pollInterval bounds a single blocking read so deadlines and cancellation
// are noticed on transports that support read timeouts.
const pollInterval = 100 * time.Millisecond

// LineReader accumulates modem output one byte at a time into a bounded
// line buffer. It holds at most one partial line; the transport is read a
// single byte per call, so nothing beyond the current line is consumed.
//
// A LineReader has a single reader and is not safe for concurrent use.
type LineReader struct {
	r        io.Reader
	buf      [ResponseCapacity]byte
	n        int
	overflow bool
	last     string
	one      [1]byte
}

// NewLineReader wraps r. If r supports read timeouts they are set to a
// short poll interval.
func NewLineReader(r io.Reader) *LineReader {
	if t, ok := r.(readTimeoutSetter); ok {
		_ = t.SetReadTimeout(pollInterval)
	}
	return &LineReader{r: r}
}

// ReadLine blocks until a non-empty line has been received or ctx is done.
// CR and LF both terminate a line; a terminator on an empty buffer is
// skipped, so consecutive terminators never produce empty lines.
//
// When the line did not fit the buffer, the truncated line is returned
// together with ErrLineTooLong. A ctx deadline yields ErrResponseTimeout.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: %w", ErrResponseTimeout, err)
			}
			return "", err
		}

		n, err := l.r.Read(l.one[:])
		if n == 1 {
			if line, ok, overflow := l.feed(l.one[0]); ok {
				if overflow {
					return line, ErrLineTooLong
				}
				return line, nil
			}
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}
}

// feed appends b to the buffer and reports a completed line.
func (l *LineReader) feed(b byte) (line string, complete, overflow bool) {
	if at.IsTerminator(b) {
		if l.n == 0 {
			return "", false, false
		}
		line, overflow = string(l.buf[:l.n]), l.overflow
		l.last = line
		l.n, l.overflow = 0, false
		return line, true, overflow
	}
	if l.n < len(l.buf) {
		l.buf[l.n] = b
		l.n++
	} else {
		l.overflow = true
	}
	return "", false, false
}

// Last returns the most recently completed line.
func (l *LineReader) Last() string {
	return l.last
}

// Discard drops any partial line and asks the transport to drop bytes it
// has received but not yet delivered.
func (l *LineReader) Discard() error {
	l.n, l.overflow = 0, false
	if r, ok := l.r.(inputResetter); ok {
		return r.ResetInputBuffer()
	}
	return nil
}
