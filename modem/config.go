package modem

import (
	"log/slog"
	"time"
)

// DefaultHTTPEndpoint is the ThingSpeak channel update endpoint used by
// PushHTTP when no other endpoint is configured.
const DefaultHTTPEndpoint = "api.thingspeak.com/update"

// APN holds the GPRS access point credentials of the mobile operator.
type APN struct {
	Name     string
	User     string
	Password string
}

// Observer is notified about the self-healing events of a session. It is
// how the metrics package counts recovery cycles without the modem knowing
// about Prometheus.
type Observer interface {
	RegistrationRecovery()
	BearerAttempt(attached bool)
}

type nopObserver struct{}

func (nopObserver) RegistrationRecovery() {}
func (nopObserver) BearerAttempt(bool)    {}

// Config holds the settings of a modem session. Use NewConfigBuilder to
// create one.
type Config struct {
	dialer            Dialer
	simPIN            string
	responseTimeout   time.Duration
	bringUpRetry      RetryPolicy
	pinRetry          RetryPolicy
	registrationRetry RetryPolicy
	bearerRetry       RetryPolicy
	acceptRoaming     bool
	apn               APN
	httpEndpoint      string
	apiKey            string
	sleeper           Sleeper
	observer          Observer
	logger            *slog.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.responseTimeout == 0 {
		c.responseTimeout = 5 * time.Second
	}
	if !c.bearerRetry.Bounded() {
		c.bearerRetry = Attempts(3)
	}
	if c.httpEndpoint == "" {
		c.httpEndpoint = DefaultHTTPEndpoint
	}
	if c.sleeper == nil {
		c.sleeper = timerSleeper{}
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder with roaming registration accepted
// and unbounded bring-up, PIN and registration retries.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: Config{acceptRoaming: true}}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

func (b *ConfigBuilder) WithSimPIN(pin string) *ConfigBuilder {
	b.config.simPIN = pin
	return b
}

// WithResponseTimeout sets how long a command waits for a classifiable
// reply before the exchange counts as timed out.
func (b *ConfigBuilder) WithResponseTimeout(d time.Duration) *ConfigBuilder {
	b.config.responseTimeout = d
	return b
}

func (b *ConfigBuilder) WithBringUpRetry(p RetryPolicy) *ConfigBuilder {
	b.config.bringUpRetry = p
	return b
}

func (b *ConfigBuilder) WithPinRetry(p RetryPolicy) *ConfigBuilder {
	b.config.pinRetry = p
	return b
}

func (b *ConfigBuilder) WithRegistrationRetry(p RetryPolicy) *ConfigBuilder {
	b.config.registrationRetry = p
	return b
}

// WithBearerRetry bounds the bearer attach attempts. An unbounded policy
// is replaced by the default of three attempts.
func (b *ConfigBuilder) WithBearerRetry(p RetryPolicy) *ConfigBuilder {
	b.config.bearerRetry = p
	return b
}

// WithRoaming controls whether "+CREG: 0,5" counts as registered.
func (b *ConfigBuilder) WithRoaming(accept bool) *ConfigBuilder {
	b.config.acceptRoaming = accept
	return b
}

func (b *ConfigBuilder) WithAPN(apn APN) *ConfigBuilder {
	b.config.apn = apn
	return b
}

// WithHTTPEndpoint sets the host and path PushHTTP reports to, without
// scheme, and the API key embedded in the query.
func (b *ConfigBuilder) WithHTTPEndpoint(endpoint, apiKey string) *ConfigBuilder {
	b.config.httpEndpoint = endpoint
	b.config.apiKey = apiKey
	return b
}

func (b *ConfigBuilder) WithSleeper(s Sleeper) *ConfigBuilder {
	b.config.sleeper = s
	return b
}

func (b *ConfigBuilder) WithObserver(o Observer) *ConfigBuilder {
	b.config.observer = o
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
