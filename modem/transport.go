package modem

//go:generate go tool mockgen -destination=mock_test.go -package=modem . Transport,Dialer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/warthog618/modem/trace"
	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a GSM modem.
//
// A Transport is assumed to be already connected and ready for use. It provides
// the low-level I/O primitives required to send AT commands and receive responses.
// Typical implementations include serial ports, TCP connections to emulators,
// or in-memory fakes used for testing.
//
// A Transport may additionally implement SetReadTimeout(time.Duration) error,
// so reads can be abandoned when a response deadline passes, and
// ResetInputBuffer() error, so stale replies can be dropped before a new
// command. serial.Port implements both.
type Transport interface {
	io.ReadWriteCloser
}

type readTimeoutSetter interface {
	SetReadTimeout(t time.Duration) error
}

type inputResetter interface {
	ResetInputBuffer() error
}

// Dialer opens a Transport to a GSM modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port, TCP-based emulator, or test double) and is intended to be used
// during modem construction only. Once a Transport is obtained, the Dialer is
// no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultBaudRate is the fixed speed the SIM800 is pinned to with AT+IPR.
const DefaultBaudRate = 9600

// SerialDialer opens a GSM modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	// PortName is the device path, e.g. "/dev/ttyS0".
	PortName string
	// BaudRate is used when Mode is nil. Zero means DefaultBaudRate.
	BaudRate int
	// Mode overrides the default 8N1 framing.
	Mode *serial.Mode
	// Trace, when set, receives a log line for every read and write on
	// the port.
	Trace *log.Logger
}

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := serial.Open(d.PortName, d.mode())
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return d.wrap(port), nil
}

// mode returns Mode, or 8N1 at BaudRate when Mode is nil.
func (d SerialDialer) mode() *serial.Mode {
	if d.Mode != nil {
		return d.Mode
	}
	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
}

func (d SerialDialer) wrap(port serial.Port) Transport {
	if d.Trace == nil {
		return port
	}
	return &tracedPort{Port: port, tr: trace.New(port, trace.WithLogger(d.Trace))}
}

// tracedPort routes reads and writes through a trace while keeping the
// port's timeout and buffer controls reachable.
type tracedPort struct {
	serial.Port
	tr *trace.Trace
}

func (p *tracedPort) Read(b []byte) (int, error) {
	return p.tr.Read(b)
}

func (p *tracedPort) Write(b []byte) (int, error) {
	return p.tr.Write(b)
}
