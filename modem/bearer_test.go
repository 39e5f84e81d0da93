package modem_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"i4.energy/across/envnode/modem"
)

const bearerDown = "+SAPBR: 1,3,\"0.0.0.0\"\r\n\r\nOK\r\n"

func TestBearerAttach(t *testing.T) {
	t.Run("Three failed queries leave bearer down", func(t *testing.T) {
		tr := modem.NewTestTransport().Script("AT+SAPBR=2,1", bearerDown, bearerDown, bearerDown)
		observer := &countingObserver{}
		m, _ := newTestModem(t, tr, func(b *modem.ConfigBuilder) {
			b.WithObserver(observer)
		})

		attached, err := m.BearerAttach(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attached {
			t.Error("expected bearer not attached")
		}
		if got := tr.Count("AT+SAPBR=1,1"); got != 3 {
			t.Errorf("expected 3 open attempts, got %d", got)
		}
		if got := tr.Count("AT+SAPBR=2,1"); got != 3 {
			t.Errorf("expected 3 status queries, got %d", got)
		}
		if !slices.Equal(observer.attempts, []bool{false, false, false}) {
			t.Errorf("unexpected attempts: %v", observer.attempts)
		}
		if m.State() != modem.StateBearerDown {
			t.Errorf("expected state %v, got %v", modem.StateBearerDown, m.State())
		}
	})

	t.Run("Attaches on second attempt", func(t *testing.T) {
		tr := modem.NewTestTransport().
			Script("AT+SAPBR=2,1", bearerDown, "+SAPBR: 1,1,\"10.0.0.2\"\r\n\r\nOK\r\n")
		observer := &countingObserver{}
		m, _ := newTestModem(t, tr, func(b *modem.ConfigBuilder) {
			b.WithObserver(observer)
		})

		attached, err := m.BearerAttach(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !attached {
			t.Error("expected bearer attached")
		}
		if got := tr.Count("AT+SAPBR=1,1"); got != 2 {
			t.Errorf("expected 2 open attempts, got %d", got)
		}
		if !slices.Equal(observer.attempts, []bool{false, true}) {
			t.Errorf("unexpected attempts: %v", observer.attempts)
		}
		if m.State() != modem.StateBearerUp {
			t.Errorf("expected state %v, got %v", modem.StateBearerUp, m.State())
		}
	})

	t.Run("Profile configured once", func(t *testing.T) {
		tr := modem.NewTestTransport()
		m, _ := newTestModem(t, tr, func(b *modem.ConfigBuilder) {
			b.WithAPN(modem.APN{Name: "internet"}).WithBearerRetry(modem.Attempts(1))
		})
		ctx := context.Background()

		for range 2 {
			if _, err := m.BearerAttach(ctx); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if got := tr.Count(`AT+SAPBR=3,1,"CONTYPE","GPRS"`); got != 1 {
			t.Errorf("expected profile configured once, got %d", got)
		}
		if got := tr.Count(`AT+SAPBR=3,1,"APN","internet"`); got != 1 {
			t.Errorf("expected APN set once, got %d", got)
		}
		if got := tr.Count(`AT+SAPBR=3,1,"USER",""`); got != 0 {
			t.Errorf("expected empty user to be skipped, got %d", got)
		}
	})

	t.Run("Credentials sent when set", func(t *testing.T) {
		tr := modem.NewTestTransport()
		m, _ := newTestModem(t, tr, func(b *modem.ConfigBuilder) {
			b.WithAPN(modem.APN{Name: "iot", User: "u", Password: "p"})
		})

		if err := m.ConfigureBearer(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := []string{
			`AT+SAPBR=3,1,"CONTYPE","GPRS"`,
			`AT+SAPBR=3,1,"APN","iot"`,
			`AT+SAPBR=3,1,"USER","u"`,
			`AT+SAPBR=3,1,"PWD","p"`,
		}
		if got := tr.Commands(); !slices.Equal(got, expected) {
			t.Errorf("expected commands %q, got %q", expected, got)
		}
	})
}

func TestPushHTTP(t *testing.T) {
	tr := modem.NewTestTransport()
	m, sleeper := newTestModem(t, tr, func(b *modem.ConfigBuilder) {
		b.WithHTTPEndpoint(modem.DefaultHTTPEndpoint, "KEY")
	})

	if err := m.PushHTTP(context.Background(), "-12.3", "45.6"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{
		"AT+HTTPINIT",
		`AT+HTTPPARA="CID",1`,
		`AT+HTTPPARA="URL","http://api.thingspeak.com/update?api_key=KEY&field1=-12.3&field2=45.6"`,
		"AT+HTTPACTION=0",
		"AT+SAPBR=0,1",
	}
	if got := tr.Commands(); !slices.Equal(got, expected) {
		t.Errorf("expected commands %q, got %q", expected, got)
	}
	if m.State() != modem.StateBearerDown {
		t.Errorf("expected state %v, got %v", modem.StateBearerDown, m.State())
	}

	// The bearer gets 5s before AT+HTTPINIT; the close afterwards waits 5s too.
	if delays := sleeper.Delays(); len(delays) == 0 || delays[0] != 5*time.Second {
		t.Errorf("expected 5s settle before AT+HTTPINIT, got %v", delays)
	}
	if got := sleeper.Count(5 * time.Second); got != 2 {
		t.Errorf("expected two 5s delays, got %d", got)
	}
}
