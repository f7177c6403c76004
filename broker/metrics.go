package broker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK        = "ok"
	outcomeTransport = "transport_error"
	outcomeProtocol  = "protocol_error"
)

// Metrics counts and times the commands a broker sends to the server.
type Metrics struct {
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
}

// NewMetrics creates the broker metrics and registers them with reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_broker_commands_total",
				Help: "Total number of commands sent to the SSO server",
			},
			[]string{"command", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sso_broker_command_duration_seconds",
				Help:    "SSO server command duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.CommandsTotal, m.CommandDuration)
	}
	return m
}

func (m *Metrics) observe(command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}
