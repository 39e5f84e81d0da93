// Package metrics exposes the device controller's counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"i4.energy/across/envnode/sensor"
)

// Metrics is safe for concurrent use. All methods are no-ops on a nil
// receiver so callers need not check whether metrics are enabled.
type Metrics struct {
	cycles                 *prometheus.CounterVec
	readings               *prometheus.CounterVec
	temperature            prometheus.Gauge
	humidity               prometheus.Gauge
	wakes                  prometheus.Counter
	registrationRecoveries prometheus.Counter
	bearerAttempts         *prometheus.CounterVec
	smsSent                prometheus.Counter
	httpPushes             prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envnode_cycles_total",
			Help: "Completed control loop cycles by mode.",
		}, []string{"mode"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envnode_sensor_reads_total",
			Help: "Sensor acquisitions by result (ok, timeout, checksum, error).",
		}, []string{"result"}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envnode_temperature_celsius",
			Help: "Last valid temperature reading.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envnode_relative_humidity_percent",
			Help: "Last valid relative humidity reading.",
		}),
		wakes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envnode_wakes_total",
			Help: "Host wake-ups from low power.",
		}),
		registrationRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envnode_registration_recoveries_total",
			Help: "Flight mode cycles run to recover network registration.",
		}),
		bearerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envnode_bearer_attempts_total",
			Help: "GPRS bearer attach attempts by result.",
		}, []string{"result"}),
		smsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envnode_sms_sent_total",
			Help: "SMS replies submitted to the modem.",
		}),
		httpPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envnode_http_pushes_total",
			Help: "HTTP updates handed to the modem.",
		}),
	}

	reg.MustRegister(
		m.cycles,
		m.readings,
		m.temperature,
		m.humidity,
		m.wakes,
		m.registrationRecoveries,
		m.bearerAttempts,
		m.smsSent,
		m.httpPushes,
	)

	return m
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) Cycle(mode string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(mode).Inc()
}

// Reading records the outcome of a sensor acquisition and, on success,
// the measured values.
func (m *Metrics) Reading(r sensor.Reading, err error) {
	if m == nil {
		return
	}
	switch {
	case err == nil:
		m.readings.WithLabelValues("ok").Inc()
		m.temperature.Set(r.Celsius())
		m.humidity.Set(r.RelativeHumidity())
	case errors.Is(err, sensor.ErrTimeout):
		m.readings.WithLabelValues("timeout").Inc()
	case errors.Is(err, sensor.ErrChecksumMismatch):
		m.readings.WithLabelValues("checksum").Inc()
	default:
		m.readings.WithLabelValues("error").Inc()
	}
}

func (m *Metrics) Wake() {
	if m == nil {
		return
	}
	m.wakes.Inc()
}

// RegistrationRecovery implements modem.Observer.
func (m *Metrics) RegistrationRecovery() {
	if m == nil {
		return
	}
	m.registrationRecoveries.Inc()
}

// BearerAttempt implements modem.Observer.
func (m *Metrics) BearerAttempt(attached bool) {
	if m == nil {
		return
	}
	result := "failed"
	if attached {
		result = "attached"
	}
	m.bearerAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) SMSSent() {
	if m == nil {
		return
	}
	m.smsSent.Inc()
}

func (m *Metrics) HTTPPushed() {
	if m == nil {
		return
	}
	m.httpPushes.Inc()
}
