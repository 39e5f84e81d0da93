package modem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warthog618/sms/encoding/gsm7"

	"i4.energy/across/envnode/at"
)

// PhoneCapacity is the size of the phone number buffer.
const PhoneCapacity = 15

const (
	smsSettle      = 1 * time.Second
	smsSetupSettle = 2 * time.Second
)

// Notification is a line the modem sent on its own, typically the one
// that raised the ring indicator and woke the host.
type Notification struct {
	Line string
	Type at.ResponseType
	// SMS is set when Line announces an incoming message; Sender then
	// holds the originating number.
	SMS    bool
	Sender string
}

// ConfigureSMS selects text mode, clears the message store and asks the
// modem to print incoming messages directly as +CMT notifications instead
// of storing them.
func (m *Modem) ConfigureSMS(ctx context.Context) error {
	for _, cmd := range []string{at.CmdSetTextMode, at.CmdDeleteAllSMS, at.CmdShowSMS} {
		if err := m.send(ctx, cmd, smsSetupSettle); err != nil {
			return fmt.Errorf("configure SMS: %w", err)
		}
	}
	return nil
}

// AwaitNotification blocks until the modem sends a line. Lines announcing
// an SMS have their sender extracted and remembered as the session's
// phone number.
func (m *Modem) AwaitNotification(ctx context.Context) (Notification, error) {
	line, err := m.readReply(ctx)
	if err != nil {
		return Notification{}, err
	}

	n := Notification{Line: line, Type: at.Classify(line)}
	if !at.Contains(line, at.SmsDeliverTag) {
		return n, nil
	}

	sender, err := ExtractPhoneNumber(line)
	if err != nil {
		return n, err
	}
	m.phone = sender
	n.SMS, n.Sender = true, sender
	return n, nil
}

// PhoneNumber returns the sender of the last SMS notification.
func (m *Modem) PhoneNumber() string {
	return m.phone
}

// ExtractPhoneNumber returns the first double-quoted field after the first
// colon of an SMS notification line, e.g. "+15551234567" from
//
//	+CMT: "+15551234567","","24/01/01,10:00:00+04"
func ExtractPhoneNumber(line string) (string, error) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return "", fmt.Errorf("%w: no colon in %q", ErrMalformedNotification, line)
	}
	rest := line[colon+1:]

	open := strings.IndexByte(rest, '"')
	if open < 0 {
		return "", fmt.Errorf("%w: no sender in %q", ErrMalformedNotification, line)
	}
	rest = rest[open+1:]

	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated sender in %q", ErrMalformedNotification, line)
	}
	number := rest[:end]
	if number == "" {
		return "", fmt.Errorf("%w: empty sender in %q", ErrMalformedNotification, line)
	}
	if len(number) > PhoneCapacity {
		return "", fmt.Errorf("%w: %d characters", ErrPhoneNumberTooLong, len(number))
	}
	return number, nil
}

// SendSMS sends a text message to the specified recipient.
//
// The message is sent in text mode (not PDU mode) and streamed right after
// the compose command; the SIM800 needs the settle delays, not the "> "
// prompt, to accept it. Submission is the Ctrl-Z byte. Nothing waits for
// the +CMGS confirmation.
func (m *Modem) SendSMS(ctx context.Context, recipient, message string) error {
	if recipient == "" {
		return fmt.Errorf("%w: empty recipient", ErrInvalidMessage)
	}
	if _, err := gsm7.Encode([]byte(message)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	if err := m.send(ctx, at.CmdSetTextMode, smsSettle); err != nil {
		return fmt.Errorf("AT+CMGF command failed: %w", err)
	}
	if err := m.send(ctx, fmt.Sprintf(at.CmdSendSMS, recipient), smsSettle); err != nil {
		return fmt.Errorf("AT+CMGS command failed: %w", err)
	}
	if err := m.write(message); err != nil {
		return fmt.Errorf("SMS body: %w", err)
	}
	if err := m.pause(ctx, smsSettle); err != nil {
		return err
	}
	if err := m.write(at.CtrlZ); err != nil {
		return fmt.Errorf("SMS submit: %w", err)
	}

	m.logger.Info("SMS submitted", "to", recipient, "message_length", len(message))
	return nil
}
