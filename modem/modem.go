package modem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/envnode/at"
)

// Settle delays after each exchange. The SIM800 acknowledges nothing we
// wait for, so these are the minimum times it needs before the next
// command is safe.
const (
	bringUpInterval  = 1 * time.Second
	echoOffSettle    = 2 * time.Second
	configSettle     = 2 * time.Second
	saveConfigSettle = 3 * time.Second
	pinQueryDelay    = 2 * time.Second
	pinEntrySettle   = 1 * time.Second
	regQueryDelay    = 3 * time.Second
	flightModeHold   = 60 * time.Second
	wakeSettle       = 1 * time.Second
	sleepSettle      = 2 * time.Second
)

// Modem is a session with a SIM800-family cellular modem that communicates
// via AT commands. It drives the bring-up state machine (AT, PIN,
// registration, bearer) and the SMS and HTTP actions on top of it.
//
// A Modem is owned by a single control flow. It holds the response line
// buffer and the last extracted phone number; neither is safe for
// concurrent use.
type Modem struct {
	// transport provides the physical connection to the modem (serial, TCP, etc.)
	transport Transport
	// lines accumulates responses from transport
	lines *LineReader
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	state            State
	sleeping         bool
	bearerConfigured bool
	phone            string
	closed           bool
}

// New creates a new Modem session with the given configuration. It only
// establishes the transport; the bring-up sequence is driven explicitly
// with BringUp, PinCheck and RegistrationCheck since it may take
// arbitrarily long.
func New(ctx context.Context, config Config) (*Modem, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("dial: %w", ErrNotInitialized)
	}

	return &Modem{
		transport: transport,
		lines:     NewLineReader(transport),
		config:    config,
		logger:    config.logger,
	}, nil
}

// State returns the current session state.
func (m *Modem) State() State {
	return m.state
}

// Sleeping reports whether the modem has been put into its low-power mode
// and not woken since.
func (m *Modem) Sleeping() bool {
	return m.sleeping
}

// LastLine returns the most recently received response line.
func (m *Modem) LastLine() string {
	return m.lines.Last()
}

// Close releases the transport. After calling Close(), the modem cannot be
// reused.
func (m *Modem) Close() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true

	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

func (m *Modem) setState(s State) {
	if m.state == s {
		return
	}
	m.logger.Info("Modem state changed", "from", m.state.String(), "to", s.String())
	m.state = s
}

// write sends raw bytes without a terminator or delay.
func (m *Modem) write(data string) error {
	if m.closed {
		return ErrAlreadyClosed
	}
	if m.transport == nil {
		return ErrNotInitialized
	}
	if _, err := m.transport.Write([]byte(data)); err != nil {
		return fmt.Errorf("write %q: %w", data, err)
	}
	return nil
}

// send issues cmd and then waits settle. Pending input is discarded first
// so a reply read afterwards belongs to this command.
func (m *Modem) send(ctx context.Context, cmd string, settle time.Duration) error {
	if m.sleeping && cmd != at.CmdAt && cmd != at.CmdSleepOff {
		return fmt.Errorf("command %q: %w", cmd, ErrAsleep)
	}
	if err := m.lines.Discard(); err != nil {
		m.logger.Debug("Failed to reset input buffer", "error", err)
	}
	m.logger.Debug("Sending command", "command", cmd)
	if err := m.write(cmd + at.CRLF); err != nil {
		return fmt.Errorf("write command %q: %w", cmd, err)
	}
	return m.pause(ctx, settle)
}

func (m *Modem) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return m.config.sleeper.Sleep(ctx, d)
}

// expect sends cmd and reads lines until one contains any of fragments or
// is a final result code, whichever comes first, and returns that line.
// Echoes and intermediate lines are skipped. No classifiable line within
// the response timeout yields ErrResponseTimeout.
func (m *Modem) expect(ctx context.Context, cmd string, fragments ...string) (string, error) {
	if err := m.send(ctx, cmd, 0); err != nil {
		return "", err
	}

	rctx, cancel := context.WithTimeout(ctx, m.config.responseTimeout)
	defer cancel()

	for {
		line, err := m.lines.ReadLine(rctx)
		if errors.Is(err, ErrLineTooLong) {
			m.logger.Debug("Response truncated", "command", cmd, "line", line)
		} else if err != nil {
			return "", err
		}

		for _, f := range fragments {
			if at.Contains(line, f) {
				return line, nil
			}
		}
		if at.Classify(line) == at.TypeFinal {
			return line, nil
		}
	}
}

// readReply reads one unsolicited line with no deadline beyond ctx.
func (m *Modem) readReply(ctx context.Context) (string, error) {
	line, err := m.lines.ReadLine(ctx)
	if errors.Is(err, ErrLineTooLong) {
		m.logger.Debug("Notification truncated", "line", line)
		return line, nil
	}
	return line, err
}

// BringUp polls the modem with AT until it answers OK, then turns command
// echo off. The modem's boot time is unknown, so by default this never
// gives up.
func (m *Modem) BringUp(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if !m.config.bringUpRetry.Allow(attempt) {
			return fmt.Errorf("modem not responding after %d attempts: %w", attempt-1, ErrRetriesExhausted)
		}

		line, err := m.expect(ctx, at.CmdAt, at.OK)
		if err != nil && !isTimeout(err) {
			return fmt.Errorf("modem not responding: %w", err)
		}
		if err := m.pause(ctx, bringUpInterval); err != nil {
			return err
		}
		if err == nil && at.Contains(line, at.OK) {
			break
		}
		m.logger.Debug("Waiting for modem", "attempt", attempt, "response", line)
	}

	if err := m.send(ctx, at.CmdEchoOff, echoOffSettle); err != nil {
		return fmt.Errorf("could not disable echo: %w", err)
	}
	m.setState(StateATResponsive)
	return nil
}

// Prepare pins the serial speed, optionally routes URCs to the RI line so
// an incoming SMS can wake the host, and saves the profile.
func (m *Modem) Prepare(ctx context.Context, ringIndicator bool) error {
	if err := m.send(ctx, at.CmdFixBaud, configSettle); err != nil {
		return fmt.Errorf("fix baud rate: %w", err)
	}
	if ringIndicator {
		if err := m.send(ctx, at.CmdRingIndicator, configSettle); err != nil {
			return fmt.Errorf("configure ring indicator: %w", err)
		}
	}
	if err := m.send(ctx, at.CmdSaveConfig, saveConfigSettle); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// PinCheck queries the SIM state until it reports READY, submitting the
// configured PIN whenever the SIM asks for one.
func (m *Modem) PinCheck(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if !m.config.pinRetry.Allow(attempt) {
			return fmt.Errorf("SIM not ready after %d attempts: %w", attempt-1, ErrRetriesExhausted)
		}
		if err := m.pause(ctx, pinQueryDelay); err != nil {
			return err
		}

		line, err := m.expect(ctx, at.CmdSimStatus, at.SimReady, at.SimPin)
		switch {
		case isTimeout(err):
			continue
		case err != nil:
			return fmt.Errorf("query SIM status: %w", err)
		case at.Contains(line, at.SimReady):
			m.setState(StatePinAccepted)
			return nil
		case at.Contains(line, at.SimPin):
			m.setState(StatePinRequired)
			if m.config.simPIN == "" {
				return ErrSIMPinRequired
			}
			if err := m.send(ctx, fmt.Sprintf(at.CmdEnterPin, m.config.simPIN), pinEntrySettle); err != nil {
				return fmt.Errorf("enter SIM PIN: %w", err)
			}
		default:
			m.logger.Debug("Unexpected SIM status", "response", line)
		}
	}
}

// RegistrationCheck queries network registration until the modem reports
// the home network, or a roaming network when roaming is accepted. Any
// other outcome, a timeout included, resets the radio through flight mode
// before the next query. This is the only way the device recovers a
// decayed radio link.
func (m *Modem) RegistrationCheck(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if !m.config.registrationRetry.Allow(attempt) {
			return fmt.Errorf("not registered after %d attempts: %w", attempt-1, ErrRetriesExhausted)
		}
		if err := m.pause(ctx, regQueryDelay); err != nil {
			return err
		}

		fragments := []string{at.RegHome}
		if m.config.acceptRoaming {
			fragments = append(fragments, at.RegRoaming)
		}
		line, err := m.expect(ctx, at.CmdRegistration, fragments...)
		if err != nil && !isTimeout(err) {
			return fmt.Errorf("query registration: %w", err)
		}
		if err == nil && m.registered(line) {
			m.setState(StateRegistered)
			return nil
		}

		m.setState(StateUnregistered)
		m.logger.Warn("Not registered, cycling flight mode", "attempt", attempt, "response", line)
		m.config.observer.RegistrationRecovery()
		if err := m.recoverRadio(ctx); err != nil {
			return err
		}
	}
}

func (m *Modem) registered(line string) bool {
	if at.Contains(line, at.RegHome) {
		return true
	}
	return m.config.acceptRoaming && at.Contains(line, at.RegRoaming)
}

// recoverRadio holds the radio off and then gives it time to find a
// network again.
func (m *Modem) recoverRadio(ctx context.Context) error {
	if err := m.pause(ctx, time.Second); err != nil {
		return err
	}
	if err := m.send(ctx, at.CmdFlightModeOn, flightModeHold); err != nil {
		return fmt.Errorf("enter flight mode: %w", err)
	}
	if err := m.send(ctx, at.CmdFlightModeOff, flightModeHold); err != nil {
		return fmt.Errorf("leave flight mode: %w", err)
	}
	return nil
}

// Sleep puts the modem into its slow-clock mode. Until Wake is called,
// every other command fails with ErrAsleep.
//
// The reply to the sleep command is dropped after the settle delay, so the
// first line read after the host wakes is whatever woke it.
func (m *Modem) Sleep(ctx context.Context) error {
	if err := m.send(ctx, at.CmdSleepOn, sleepSettle); err != nil {
		return fmt.Errorf("enter sleep mode: %w", err)
	}
	if err := m.lines.Discard(); err != nil {
		m.logger.Debug("Failed to reset input buffer", "error", err)
	}
	m.sleeping = true
	return nil
}

// Wake sends the wake byte sequence and leaves slow-clock mode. It must
// follow every host wake-up before any other command is issued.
func (m *Modem) Wake(ctx context.Context) error {
	if err := m.send(ctx, at.CmdAt, wakeSettle); err != nil {
		return fmt.Errorf("wake modem: %w", err)
	}
	if err := m.send(ctx, at.CmdSleepOff, wakeSettle); err != nil {
		return fmt.Errorf("leave sleep mode: %w", err)
	}
	m.sleeping = false
	return nil
}
