// Package metrics holds the Prometheus collectors for the ordering agent.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Turns counts handled conversation turns.
	// Labels: outcome (direct|tools|error)
	Turns *prometheus.CounterVec

	// TurnDuration measures HandleTurn latency in seconds.
	TurnDuration prometheus.Histogram

	// ToolCalls counts dispatched tool calls.
	// Labels: tool, status (ok|error)
	ToolCalls *prometheus.CounterVec

	// SearchPath counts which retrieval tier answered a search.
	// Labels: path (semantic|keyword|empty), semantic_error (true|false)
	SearchPath *prometheus.CounterVec

	// Orders counts order placement attempts.
	// Labels: status (placed|failed|empty_cart|unavailable)
	Orders *prometheus.CounterVec

	// IndexRuns counts inventory indexing runs.
	// Labels: status (ok|error)
	IndexRuns *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordering_agent",
			Name:      "turns_total",
			Help:      "Conversation turns handled, by outcome.",
		}, []string{"outcome"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ordering_agent",
			Name:      "turn_duration_seconds",
			Help:      "Latency of a full conversation turn.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordering_agent",
			Name:      "tool_calls_total",
			Help:      "Tool calls dispatched, by tool and status.",
		}, []string{"tool", "status"}),
		SearchPath: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordering_agent",
			Name:      "inventory_search_total",
			Help:      "Inventory searches by answering tier.",
		}, []string{"path", "semantic_error"}),
		Orders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordering_agent",
			Name:      "orders_total",
			Help:      "Order placement attempts by status.",
		}, []string{"status"}),
		IndexRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordering_agent",
			Name:      "index_runs_total",
			Help:      "Inventory indexing runs by status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveTurn(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
}

func (m *Metrics) Search(path string, semanticFailed bool) {
	if m == nil {
		return
	}
	failed := "false"
	if semanticFailed {
		failed = "true"
	}
	m.SearchPath.WithLabelValues(path, failed).Inc()
}

func (m *Metrics) Order(status string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(status).Inc()
}

func (m *Metrics) IndexRun(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.IndexRuns.WithLabelValues(status).Inc()
}
