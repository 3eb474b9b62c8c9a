// Package metrics exposes Prometheus counters for servo commands, choreography
// playback and the HTTP API.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gwillem/puppet/pkg/sequencer"
	"github.com/gwillem/puppet/pkg/servo"
)

// Metrics holds Prometheus counters and gauges for the puppet.
type Metrics struct {
	registry          *prometheus.Registry
	commandsTotal     prometheus.Counter
	faultsTotal       prometheus.Counter
	jointAngle        *prometheus.GaugeVec
	posesTotal        *prometheus.CounterVec
	sequencesTotal    *prometheus.CounterVec
	skippedItemsTotal prometheus.Counter
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	commandsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "puppet_servo_commands_total",
		Help: "Total number of servo commands issued",
	})
	faultsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "puppet_actuator_faults_total",
		Help: "Total number of servo commands the driver failed to apply",
	})
	jointAngle := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "puppet_channel_angle_degrees",
		Help: "Last angle successfully commanded on each channel",
	}, []string{"channel"})
	posesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "puppet_poses_executed_total",
		Help: "Total number of poses executed, by outcome",
	}, []string{"outcome"})
	sequencesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "puppet_sequences_executed_total",
		Help: "Total number of sequences executed, by outcome",
	}, []string{"outcome"})
	skippedItemsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "puppet_skipped_items_total",
		Help: "Total number of limbs and joints skipped during pose execution",
	})
	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "puppet_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "puppet_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		commandsTotal,
		faultsTotal,
		jointAngle,
		posesTotal,
		sequencesTotal,
		skippedItemsTotal,
		requestsTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:          registry,
		commandsTotal:     commandsTotal,
		faultsTotal:       faultsTotal,
		jointAngle:        jointAngle,
		posesTotal:        posesTotal,
		sequencesTotal:    sequencesTotal,
		skippedItemsTotal: skippedItemsTotal,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
	}
}

// ObserveCommand records one servo command. It matches servo.Observer.
func (m *Metrics) ObserveCommand(channel int, angle float64, err error) {
	m.commandsTotal.Inc()
	if err != nil {
		if errors.Is(err, servo.ErrActuatorFault) {
			m.faultsTotal.Inc()
		}
		return
	}
	m.jointAngle.WithLabelValues(strconv.Itoa(channel)).Set(angle)
}

// ObserveEvent records finished poses and sequences. Pass it to
// sequencer.WithEventHandler.
func (m *Metrics) ObserveEvent(e sequencer.Event) {
	switch e.Kind {
	case sequencer.PoseFinished:
		m.posesTotal.WithLabelValues(e.Pose.Outcome.String()).Inc()
		m.skippedItemsTotal.Add(float64(len(e.Pose.Skipped)))
	case sequencer.SequenceFinished:
		m.sequencesTotal.WithLabelValues(e.Sequence.Outcome.String()).Inc()
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
