package modem

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"i4.energy/across/envnode/at"
)

// TestTransport is a test helper that simulates a SIM800 on the other end
// of the serial line. Replies are scripted per command; a command written
// to the transport queues its next scripted reply for reading. An empty
// reply, or a command without a script, produces no output at all, which
// is how a modem that does not answer looks.
//
// Reads never block for long: with nothing queued they return (0, nil)
// after a millisecond, like a serial port with a read timeout.
type TestTransport struct {
	mu       sync.Mutex
	replies  map[string][]string
	pending  []byte
	partial  []byte
	commands []string
	writes   []string
	closed   bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{replies: make(map[string][]string)}
}

// Script appends replies for cmd. Each time cmd is written the next reply
// is consumed.
func (t *TestTransport) Script(cmd string, replies ...string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[cmd] = append(t.replies[cmd], replies...)
	return t
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}

	t.writes = append(t.writes, string(p))
	t.partial = append(t.partial, p...)
	for {
		advance, token, _ := at.Splitter(t.partial, false)
		t.partial = t.partial[advance:]
		if token == nil {
			break
		}
		cmd := string(token)
		t.commands = append(t.commands, cmd)

		if queue := t.replies[cmd]; len(queue) > 0 {
			t.pending = append(t.pending, queue[0]...)
			t.replies[cmd] = queue[1:]
		}
	}
	// Ctrl-Z submits an SMS body; it never forms a command.
	if bytes.HasSuffix(t.partial, []byte(at.CtrlZ)) {
		t.partial = t.partial[:0]
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.EOF
	}
	if len(t.pending) == 0 {
		t.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	t.mu.Unlock()
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// SetReadTimeout is accepted and ignored; reads never block anyway.
func (t *TestTransport) SetReadTimeout(time.Duration) error {
	return nil
}

// ResetInputBuffer drops queued replies that have not been read.
func (t *TestTransport) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = nil
	return nil
}

// SendData queues data to be read by the transport.
// This simulates unsolicited output from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.pending = append(t.pending, data...)
	}
}

// Commands returns every complete command line written so far.
func (t *TestTransport) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.commands...)
}

// Writes returns the raw Write payloads in order.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// Count returns how many times cmd was written.
func (t *TestTransport) Count(cmd string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.commands {
		if c == cmd {
			n++
		}
	}
	return n
}

// Dial lets a TestTransport serve as its own Dialer.
func (t *TestTransport) Dial(context.Context) (Transport, error) {
	return t, nil
}

// RecordingSleeper records settle delays instead of waiting them out.
type RecordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Delays returns the recorded delays in order.
func (s *RecordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// Total returns the sum of the recorded delays.
func (s *RecordingSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Delays() {
		total += d
	}
	return total
}

// Count returns how many recorded delays equal d.
func (s *RecordingSleeper) Count(d time.Duration) int {
	n := 0
	for _, got := range s.Delays() {
		if got == d {
			n++
		}
	}
	return n
}
