// Package metrics exposes campaign progress as Prometheus metrics,
// useful when a large roster keeps a run alive for a while.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metrics for herald.
type Metrics struct {
	// Per-recipient outcomes for the current run.
	RecipientsProcessedTotal *prometheus.CounterVec

	// Transport-level attempt counters.
	SendAttemptsTotal prometheus.Counter
	SendFailuresTotal *prometheus.CounterVec

	// Roster and ledger sizes.
	RosterSize    prometheus.Gauge
	LedgerRecords *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered on a
// private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RecipientsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "herald_recipients_processed_total",
				Help: "Recipients processed in this run, by terminal outcome",
			},
			[]string{"outcome"},
		),
		SendAttemptsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "herald_send_attempts_total",
				Help: "Total SMTP submission attempts, including retries",
			},
		),
		SendFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "herald_send_failures_total",
				Help: "Failed SMTP submission attempts, by classification",
			},
			[]string{"kind"},
		),
		RosterSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "herald_roster_size",
				Help: "Number of recipients fetched for the current run",
			},
		),
		LedgerRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "herald_ledger_records",
				Help: "Delivery records in the ledger, by status",
			},
			[]string{"status"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RecipientsProcessedTotal,
		m.SendAttemptsTotal,
		m.SendFailuresTotal,
		m.RosterSize,
		m.LedgerRecords,
		collectors.NewGoCollector(),
	)

	return m
}

// Registry returns the private registry for serving.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveOutcome counts one recipient reaching a terminal outcome.
func (m *Metrics) ObserveOutcome(outcome string) {
	m.RecipientsProcessedTotal.WithLabelValues(outcome).Inc()
}

// ObserveSendFailure counts one failed submission attempt.
func (m *Metrics) ObserveSendFailure(temporary bool) {
	kind := "permanent"
	if temporary {
		kind = "temporary"
	}
	m.SendFailuresTotal.WithLabelValues(kind).Inc()
}
