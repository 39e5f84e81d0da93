package device_test

import (
	"context"
	"time"

	"i4.energy/across/envnode/modem"
	"i4.energy/across/envnode/sensor"
)

type sentSMS struct {
	to, body string
}

// fakeSession records the order of calls. Errors can be injected per
// method name.
type fakeSession struct {
	calls         []string
	errs          map[string]error
	notifications []modem.Notification
	notifyErr     error
	attached      bool
	ringIndicator bool
	sent          []sentSMS
	pushes        [][2]string
}

func (f *fakeSession) record(name string) error {
	f.calls = append(f.calls, name)
	return f.errs[name]
}

func (f *fakeSession) BringUp(context.Context) error { return f.record("BringUp") }

func (f *fakeSession) Prepare(_ context.Context, ringIndicator bool) error {
	f.ringIndicator = ringIndicator
	return f.record("Prepare")
}

func (f *fakeSession) PinCheck(context.Context) error          { return f.record("PinCheck") }
func (f *fakeSession) RegistrationCheck(context.Context) error { return f.record("RegistrationCheck") }
func (f *fakeSession) ConfigureBearer(context.Context) error   { return f.record("ConfigureBearer") }
func (f *fakeSession) ConfigureSMS(context.Context) error      { return f.record("ConfigureSMS") }
func (f *fakeSession) Wake(context.Context) error              { return f.record("Wake") }

func (f *fakeSession) BearerAttach(context.Context) (bool, error) {
	return f.attached, f.record("BearerAttach")
}

func (f *fakeSession) AwaitNotification(context.Context) (modem.Notification, error) {
	if err := f.record("AwaitNotification"); err != nil {
		return modem.Notification{}, err
	}
	var n modem.Notification
	if len(f.notifications) > 0 {
		n, f.notifications = f.notifications[0], f.notifications[1:]
	}
	return n, f.notifyErr
}

func (f *fakeSession) SendSMS(_ context.Context, recipient, message string) error {
	f.sent = append(f.sent, sentSMS{recipient, message})
	return f.record("SendSMS")
}

func (f *fakeSession) PushHTTP(_ context.Context, field1, field2 string) error {
	f.pushes = append(f.pushes, [2]string{field1, field2})
	return f.record("PushHTTP")
}

type fakeSensor struct {
	reading  sensor.Reading
	err      error
	attempts []int
}

func (s *fakeSensor) ReadRetry(_ context.Context, attempts int) (sensor.Reading, error) {
	s.attempts = append(s.attempts, attempts)
	if s.err != nil {
		return sensor.Reading{}, s.err
	}
	return s.reading, nil
}

type fakePower struct {
	session *fakeSession
	sleeps  []time.Duration
	// onHalt runs on every halt; its error is returned.
	onHalt func(n int) error
	halts  int
}

func (p *fakePower) halt() error {
	p.halts++
	if p.session != nil {
		p.session.calls = append(p.session.calls, "Halt")
	}
	if p.onHalt != nil {
		return p.onHalt(p.halts)
	}
	return nil
}

func (p *fakePower) EnterLowPower(context.Context) error {
	return p.halt()
}

func (p *fakePower) SleepFor(_ context.Context, d time.Duration) error {
	p.sleeps = append(p.sleeps, d)
	return p.halt()
}

var dht22Reading = sensor.Reading{Temperature: 123, Humidity: 456, BelowZero: true, Model: sensor.DHT22}
