package modem_test

import (
	"context"
	"testing"
	"time"

	"i4.energy/across/envnode/modem"
)

// newTestModem returns a session on tr whose settle delays are recorded
// instead of slept and whose replies time out after 20ms.
func newTestModem(t *testing.T, tr *modem.TestTransport, configure ...func(*modem.ConfigBuilder)) (*modem.Modem, *modem.RecordingSleeper) {
	t.Helper()

	sleeper := &modem.RecordingSleeper{}
	b := modem.NewConfigBuilder().
		WithDialer(tr).
		WithSleeper(sleeper).
		WithResponseTimeout(20 * time.Millisecond)
	for _, c := range configure {
		c(b)
	}

	config, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, sleeper
}

type countingObserver struct {
	recoveries int
	attempts   []bool
}

func (o *countingObserver) RegistrationRecovery() {
	o.recoveries++
}

func (o *countingObserver) BearerAttempt(attached bool) {
	o.attempts = append(o.attempts, attached)
}
