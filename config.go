package main

import (
	"flag"
	"os"
	"strconv"
	"time"

	"i4.energy/across/envnode/modem"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the status server listens on (e.g. "0.0.0.0:8080").
	// An empty address disables the server.
	BindAddress string
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the modem (e.g. 9600)
	BaudRate int
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// SimPIN is the SIM card PIN code
	SimPIN string
	// Mode is the operating mode, "sms" or "telemetry"
	Mode string
	// Roaming accepts registration on a roaming network
	Roaming bool

	// APN, APNUser and APNPassword configure the GPRS bearer
	APN         string
	APNUser     string
	APNPassword string
	// APIKey is embedded in every HTTP update
	APIKey string
	// HTTPEndpoint is the update URL without scheme
	HTTPEndpoint string
	// Interval is the time between HTTP updates in telemetry mode
	Interval time.Duration

	// SensorPin is the periph GPIO name of the sensor data line (e.g. "GPIO4")
	SensorPin string
	// SensorModel is "dht11" or "dht22"
	SensorModel string
	// WakePin is the periph GPIO name of the modem's ring indicator line
	WakePin string
	// WakeTrigger is "falling" or "low"
	WakeTrigger string

	// MQTTBroker enables the MQTT mirror when set (e.g. "tcp://localhost:1883")
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	// Trace logs every byte exchanged with the modem
	Trace bool
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = modem.DefaultBaudRate
		c.LogLevel = "info"
		c.SimPIN = "1111"
		c.Mode = "sms"
		c.Roaming = true
		c.HTTPEndpoint = modem.DefaultHTTPEndpoint
		c.Interval = 60 * time.Minute
		c.SensorPin = "GPIO4"
		c.SensorModel = "dht22"
		c.WakePin = "GPIO17"
		c.WakeTrigger = "falling"
		c.MQTTTopic = "envnode/readings"
		c.MQTTClientID = "envnode"
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		for name, target := range map[string]*string{
			"BIND_ADDRESS":   &c.BindAddress,
			"SERIAL_PORT":    &c.SerialPort,
			"LOG_LEVEL":      &c.LogLevel,
			"SIM_PIN":        &c.SimPIN,
			"MODE":           &c.Mode,
			"APN":            &c.APN,
			"APN_USER":       &c.APNUser,
			"APN_PASSWORD":   &c.APNPassword,
			"API_KEY":        &c.APIKey,
			"HTTP_ENDPOINT":  &c.HTTPEndpoint,
			"SENSOR_PIN":     &c.SensorPin,
			"SENSOR_MODEL":   &c.SensorModel,
			"WAKE_PIN":       &c.WakePin,
			"WAKE_TRIGGER":   &c.WakeTrigger,
			"MQTT_BROKER":    &c.MQTTBroker,
			"MQTT_TOPIC":     &c.MQTTTopic,
			"MQTT_CLIENT_ID": &c.MQTTClientID,
		} {
			if v := os.Getenv(name); v != "" {
				*target = v
			}
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if interval := os.Getenv("INTERVAL"); interval != "" {
			if d, err := time.ParseDuration(interval); err == nil {
				c.Interval = d
			}
		}

		if roaming := os.Getenv("ROAMING"); roaming != "" {
			if b, err := strconv.ParseBool(roaming); err == nil {
				c.Roaming = b
			}
		}

		if trace := os.Getenv("TRACE"); trace != "" {
			if b, err := strconv.ParseBool(trace); err == nil {
				c.Trace = b
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			value := f.Value.String()
			switch f.Name {
			case "bind-address":
				c.BindAddress = value
			case "serial-port":
				c.SerialPort = value
			case "baud-rate":
				if b, err := strconv.Atoi(value); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = value
			case "sim-pin":
				c.SimPIN = value
			case "mode":
				c.Mode = value
			case "roaming":
				if b, err := strconv.ParseBool(value); err == nil {
					c.Roaming = b
				}
			case "apn":
				c.APN = value
			case "apn-user":
				c.APNUser = value
			case "apn-password":
				c.APNPassword = value
			case "api-key":
				c.APIKey = value
			case "http-endpoint":
				c.HTTPEndpoint = value
			case "interval":
				if d, err := time.ParseDuration(value); err == nil {
					c.Interval = d
				}
			case "sensor-pin":
				c.SensorPin = value
			case "sensor-model":
				c.SensorModel = value
			case "wake-pin":
				c.WakePin = value
			case "wake-trigger":
				c.WakeTrigger = value
			case "mqtt-broker":
				c.MQTTBroker = value
			case "mqtt-topic":
				c.MQTTTopic = value
			case "mqtt-client-id":
				c.MQTTClientID = value
			case "trace":
				if b, err := strconv.ParseBool(value); err == nil {
					c.Trace = b
				}
			}
		})
		return nil
	}
}
