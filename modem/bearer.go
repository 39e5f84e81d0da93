package modem

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"i4.energy/across/envnode/at"
)

const (
	bearerParamSettle  = 1 * time.Second
	bearerConfigSettle = 10 * time.Second
	bearerCloseSettle  = 3 * time.Second
	bearerOpenSettle   = 5 * time.Second
	httpStartSettle    = 5 * time.Second
	httpInitSettle     = 3 * time.Second
	httpParamSettle    = 2 * time.Second
	httpActionSettle   = 10 * time.Second
	httpCloseSettle    = 5 * time.Second
)

// ConfigureBearer provisions the GPRS bearer profile with the operator's
// APN credentials. BearerAttach calls it on first use.
func (m *Modem) ConfigureBearer(ctx context.Context) error {
	params := [][2]string{
		{"CONTYPE", "GPRS"},
		{"APN", m.config.apn.Name},
		{"USER", m.config.apn.User},
		{"PWD", m.config.apn.Password},
	}
	for _, p := range params {
		if p[1] == "" && p[0] != "APN" {
			continue
		}
		if err := m.send(ctx, fmt.Sprintf(at.CmdBearerParam, p[0], p[1]), bearerParamSettle); err != nil {
			return fmt.Errorf("configure bearer %s: %w", p[0], err)
		}
	}
	if err := m.pause(ctx, bearerConfigSettle); err != nil {
		return err
	}
	m.bearerConfigured = true
	return nil
}

// BearerAttach opens the GPRS bearer, trying a bounded number of times
// (three by default). Each attempt closes whatever bearer may be left
// over, opens a new one and queries its status.
//
// Running out of attempts is not an error: the result is false and the
// session stays BearerDown. The HTTP push that follows then simply has no
// effect, and the next cycle tries again.
func (m *Modem) BearerAttach(ctx context.Context) (bool, error) {
	if !m.bearerConfigured {
		if err := m.ConfigureBearer(ctx); err != nil {
			return false, err
		}
	}

	for attempt := 1; m.config.bearerRetry.Allow(attempt); attempt++ {
		if err := m.send(ctx, at.CmdBearerClose, bearerCloseSettle); err != nil {
			return false, fmt.Errorf("close bearer: %w", err)
		}
		if err := m.send(ctx, at.CmdBearerOpen, bearerOpenSettle); err != nil {
			return false, fmt.Errorf("open bearer: %w", err)
		}

		line, err := m.expect(ctx, at.CmdBearerQuery, at.BearerOpen)
		if err != nil && !isTimeout(err) {
			return false, fmt.Errorf("query bearer: %w", err)
		}
		attached := err == nil && at.Contains(line, at.BearerOpen)
		m.config.observer.BearerAttempt(attached)
		if attached {
			m.setState(StateBearerUp)
			return true, nil
		}
		m.logger.Warn("Bearer not attached", "attempt", attempt, "response", line)
	}

	m.setState(StateBearerDown)
	return false, nil
}

// PushHTTP waits for the bearer to settle, reports two values with an
// HTTP GET through it and closes the bearer afterwards. The HTTP status is never checked; a lost
// report is only visible as a gap on the receiving side.
func (m *Modem) PushHTTP(ctx context.Context, field1, field2 string) error {
	target, err := m.updateURL(field1, field2)
	if err != nil {
		return err
	}

	if err := m.pause(ctx, httpStartSettle); err != nil {
		return err
	}

	steps := []struct {
		cmd    string
		settle time.Duration
	}{
		{at.CmdHTTPInit, httpInitSettle},
		{at.CmdHTTPCid, httpParamSettle},
		{fmt.Sprintf(at.CmdHTTPURL, target), httpParamSettle},
		{at.CmdHTTPAction, httpActionSettle},
		{at.CmdBearerClose, httpCloseSettle},
	}
	for _, s := range steps {
		if err := m.send(ctx, s.cmd, s.settle); err != nil {
			return fmt.Errorf("HTTP push: %w", err)
		}
	}

	m.setState(StateBearerDown)
	m.logger.Info("HTTP update sent", "field1", field1, "field2", field2)
	return nil
}

func (m *Modem) updateURL(field1, field2 string) (string, error) {
	u, err := url.Parse("http://" + m.config.httpEndpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", m.config.httpEndpoint, err)
	}
	q := url.Values{}
	q.Set("api_key", m.config.apiKey)
	q.Set("field1", field1)
	q.Set("field2", field2)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
