package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"i4.energy/across/envnode/device"
	"i4.energy/across/envnode/metrics"
	"i4.energy/across/envnode/modem"
	"i4.energy/across/envnode/power"
	"i4.energy/across/envnode/sensor"
	"i4.energy/across/envnode/telemetry"
)

func main() {
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", modem.DefaultBaudRate, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the status server (empty disables it)")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("sim-pin", "1111", "SIM card PIN code (if required)")
	flag.String("mode", "sms", "Operating mode (sms, telemetry)")
	flag.Bool("roaming", true, "Accept registration on a roaming network")
	flag.String("apn", "", "GPRS access point name")
	flag.String("apn-user", "", "GPRS access point user")
	flag.String("apn-password", "", "GPRS access point password")
	flag.String("api-key", "", "API key for HTTP updates")
	flag.String("http-endpoint", modem.DefaultHTTPEndpoint, "HTTP update endpoint without scheme")
	flag.Duration("interval", 60*time.Minute, "Time between HTTP updates in telemetry mode")
	flag.String("sensor-pin", "GPIO4", "GPIO of the sensor data line")
	flag.String("sensor-model", "dht22", "Sensor model (dht11, dht22)")
	flag.String("wake-pin", "GPIO17", "GPIO of the modem ring indicator line")
	flag.String("wake-trigger", "falling", "Wake line trigger (falling, low)")
	flag.String("mqtt-broker", "", "MQTT broker to mirror readings to (e.g. tcp://localhost:1883)")
	flag.String("mqtt-topic", telemetry.DefaultTopic, "MQTT topic for mirrored readings")
	flag.String("mqtt-client-id", "envnode", "MQTT client ID")
	flag.Bool("trace", false, "Log all serial traffic with the modem")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	mode, err := device.ParseMode(config.Mode)
	if err != nil {
		logger.Error("Invalid mode", "error", err)
		os.Exit(1)
	}
	model, err := sensor.ParseModel(config.SensorModel)
	if err != nil {
		logger.Error("Invalid sensor model", "error", err)
		os.Exit(1)
	}
	trigger, err := power.ParseTrigger(config.WakeTrigger)
	if err != nil {
		logger.Error("Invalid wake trigger", "error", err)
		os.Exit(1)
	}

	if _, err := host.Init(); err != nil {
		logger.Error("Failed to initialize GPIO drivers", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(registry)

	dialer := modem.SerialDialer{
		PortName: config.SerialPort,
		BaudRate: config.BaudRate,
	}
	if config.Trace {
		dialer.Trace = slog.NewLogLogger(logger.With("component", "trace").Handler(), slog.LevelDebug)
	}

	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(dialer).
		WithSimPIN(config.SimPIN).
		WithRoaming(config.Roaming).
		WithAPN(modem.APN{Name: config.APN, User: config.APNUser, Password: config.APNPassword}).
		WithHTTPEndpoint(config.HTTPEndpoint, config.APIKey).
		WithObserver(met).
		WithLogger(logger.With("component", "modem")).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}

	wake := &power.Wake{}

	sensorPin, err := sensor.OpenPin(config.SensorPin)
	if err != nil {
		logger.Error("Failed to open sensor pin", "error", err)
		os.Exit(1)
	}
	decoder := sensor.NewDecoder(sensorPin, sensor.NewHostClock(),
		sensor.WithModel(model),
		sensor.WithCriticalSection(wake),
		sensor.WithLogger(logger.With("component", "sensor")),
	)

	if mode == device.OnDemandSMS {
		wakePin := gpioreg.ByName(config.WakePin)
		if wakePin == nil {
			logger.Error("Failed to open wake pin", "pin", config.WakePin)
			os.Exit(1)
		}
		go func() {
			err := power.WatchPin(ctx, wakePin, trigger, wake, logger.With("component", "wake"))
			if err != nil && ctx.Err() == nil {
				logger.Error("Wake pin watcher stopped", "error", err)
			}
		}()
	}

	var mirror *telemetry.Mirror
	if config.MQTTBroker != "" {
		client, err := telemetry.Connect(config.MQTTBroker, config.MQTTClientID, logger.With("component", "mqtt"))
		if err != nil {
			logger.Error("Failed to connect to MQTT broker", "error", err)
			os.Exit(1)
		}
		defer client.Disconnect(250)
		mirror = telemetry.NewMirror(client, config.MQTTTopic, logger.With("component", "mqtt"))
	}

	controller, err := device.New(device.Config{
		Mode:     mode,
		Interval: config.Interval,
	}, device.Deps{
		Modem:   m,
		Sensor:  decoder,
		Power:   power.NewController(m, wake, logger.With("component", "power")),
		Metrics: met,
		Mirror:  mirror,
		Logger:  logger.With("component", "device"),
	})
	if err != nil {
		logger.Error("Failed to create controller", "error", err)
		os.Exit(1)
	}

	var httpServer *http.Server
	if config.BindAddress != "" {
		httpServer = &http.Server{
			Addr: config.BindAddress,
			Handler: &Server{
				Logger:  logger.With("component", "server"),
				Metrics: metrics.Handler(registry),
				Status:  controller,
			},
		}

		// Start HTTP server in a goroutine
		go func() {
			logger.Info("Starting HTTP server", "address", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server failed", "error", err)
				os.Exit(1)
			}
		}()
	}

	logger.Info("Starting environmental node", "mode", mode.String(), "sensor", model.String(), "serial_port", config.SerialPort)

	// Run until interrupted
	err = controller.Run(ctx)
	logger.Info("Controller stopped", "reason", err)

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Info("Closing HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to gracefully shutdown server", "error", err)
		}
	}
}
