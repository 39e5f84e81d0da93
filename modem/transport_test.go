package modem

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
	"go.uber.org/mock/gomock"
)

// fakePort is an in-memory serial.Port that records the buffer and
// timeout controls the line reader reaches for.
type fakePort struct {
	rx          bytes.Buffer
	tx          bytes.Buffer
	readTimeout time.Duration
	resets      int
}

func (p *fakePort) SetMode(*serial.Mode) error { return nil }

func (p *fakePort) Read(b []byte) (int, error) {
	if p.rx.Len() == 0 {
		return 0, nil
	}
	return p.rx.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) { return p.tx.Write(b) }
func (p *fakePort) Drain() error                { return nil }

func (p *fakePort) ResetInputBuffer() error {
	p.resets++
	p.rx.Reset()
	return nil
}

func (p *fakePort) ResetOutputBuffer() error { return nil }
func (p *fakePort) SetDTR(bool) error        { return nil }
func (p *fakePort) SetRTS(bool) error        { return nil }

func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.readTimeout = t
	return nil
}

func (p *fakePort) Close() error              { return nil }
func (p *fakePort) Break(time.Duration) error { return nil }

func TestSerialDialer_Dial_Errors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	for _, tc := range []struct {
		name     string
		dialer   SerialDialer
		ctx      context.Context
		expected string
		is       error
	}{
		{
			name:     "Empty port name",
			dialer:   SerialDialer{},
			ctx:      context.Background(),
			expected: "modem: serial port name is required",
		},
		{
			name:     "Nil context",
			dialer:   SerialDialer{PortName: "/dev/ttyS0"},
			expected: "modem: context is nil",
		},
		{
			name:   "Canceled before opening",
			dialer: SerialDialer{PortName: "/dev/ttyS0"},
			ctx:    canceled,
			is:     context.Canceled,
		},
		{
			name:     "Missing device names the port",
			dialer:   SerialDialer{PortName: "/dev/envnode-missing"},
			ctx:      context.Background(),
			expected: "open serial port /dev/envnode-missing",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			transport, err := tc.dialer.Dial(tc.ctx)
			if err == nil {
				t.Fatal("expected error")
			}
			if transport != nil {
				t.Errorf("expected nil transport, got %T", transport)
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Errorf("expected %v, got: %v", tc.is, err)
			}
			if tc.expected != "" && !strings.Contains(err.Error(), tc.expected) {
				t.Errorf("expected error containing %q, got: %v", tc.expected, err)
			}
		})
	}
}

func TestSerialDialer_Mode(t *testing.T) {
	custom := &serial.Mode{BaudRate: 19200, Parity: serial.EvenParity, DataBits: 7, StopBits: serial.TwoStopBits}

	for _, tc := range []struct {
		name     string
		dialer   SerialDialer
		expected serial.Mode
	}{
		{
			name:     "Defaults to 9600 8N1",
			dialer:   SerialDialer{PortName: "/dev/ttyS0"},
			expected: serial.Mode{BaudRate: 9600, Parity: serial.NoParity, DataBits: 8, StopBits: serial.OneStopBit},
		},
		{
			name:     "Baud rate keeps 8N1",
			dialer:   SerialDialer{PortName: "/dev/ttyS0", BaudRate: 115200},
			expected: serial.Mode{BaudRate: 115200, Parity: serial.NoParity, DataBits: 8, StopBits: serial.OneStopBit},
		},
		{
			name:     "Mode overrides baud rate",
			dialer:   SerialDialer{PortName: "/dev/ttyS0", BaudRate: 115200, Mode: custom},
			expected: *custom,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.dialer.mode()
			if got.BaudRate != tc.expected.BaudRate || got.Parity != tc.expected.Parity ||
				got.DataBits != tc.expected.DataBits || got.StopBits != tc.expected.StopBits {
				t.Errorf("expected mode %+v, got %+v", tc.expected, *got)
			}
		})
	}
}

func TestSerialDialer_Wrap(t *testing.T) {
	t.Run("Without trace the port is used directly", func(t *testing.T) {
		port := &fakePort{}
		if got := (SerialDialer{}).wrap(port); got != Transport(port) {
			t.Errorf("expected the bare port, got %T", got)
		}
	})

	t.Run("Trace logs reads and writes", func(t *testing.T) {
		var out bytes.Buffer
		port := &fakePort{}
		port.rx.WriteString("OK\r\n")

		tr := SerialDialer{Trace: log.New(&out, "", 0)}.wrap(port)
		if _, ok := tr.(*tracedPort); !ok {
			t.Fatalf("expected *tracedPort, got %T", tr)
		}

		if _, err := tr.Write([]byte("AT\r\n")); err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
		buf := make([]byte, 8)
		if _, err := tr.Read(buf); err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}

		if port.tx.String() != "AT\r\n" {
			t.Errorf("expected port to receive %q, got %q", "AT\r\n", port.tx.String())
		}
		for _, want := range []string{"w: AT", "r: OK"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("expected trace to contain %q, got %q", want, out.String())
			}
		}
	})

	t.Run("Traced port keeps buffer controls", func(t *testing.T) {
		port := &fakePort{}
		port.rx.WriteString("stale")

		lines := NewLineReader(SerialDialer{Trace: log.New(&bytes.Buffer{}, "", 0)}.wrap(port))
		if port.readTimeout != pollInterval {
			t.Errorf("expected read timeout %v, got %v", pollInterval, port.readTimeout)
		}
		if err := lines.Discard(); err != nil {
			t.Fatalf("unexpected error from Discard(): %v", err)
		}
		if port.resets != 1 || port.rx.Len() != 0 {
			t.Errorf("expected one input reset clearing %q, got %d resets", "stale", port.resets)
		}
	})
}

func TestMockDialer(t *testing.T) {
	ctrl := gomock.NewController(t)

	transport := NewMockTransport(ctrl)
	dialer := NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	got, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Transport(transport) {
		t.Errorf("expected the mock transport, got %T", got)
	}
}
