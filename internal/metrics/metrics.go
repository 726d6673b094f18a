// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and turns every method into a no-op, which keeps tests free of registries.
type Metrics struct {
	positionsOpened prometheus.Counter
	positionsClosed *prometheus.CounterVec
	openPositions   prometheus.Gauge
	monitorTicks    prometheus.Counter
	priceMisses     prometheus.Counter
	ledgerFailures  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		positionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_positions_opened_total",
			Help: "Positions opened since start.",
		}),
		positionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_positions_closed_total",
			Help: "Positions closed since start, by exit reason.",
		}, []string{"reason"}),
		openPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "engine_open_positions",
			Help: "Currently open positions.",
		}),
		monitorTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_monitor_ticks_total",
			Help: "Monitor evaluation ticks across all positions.",
		}),
		priceMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_price_cache_misses_total",
			Help: "Ticks skipped because the price cache had no entry.",
		}),
		ledgerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_ledger_failures_total",
			Help: "Trade records that failed to persist.",
		}),
	}
}

func (m *Metrics) PositionOpened() {
	if m == nil {
		return
	}
	m.positionsOpened.Inc()
	m.openPositions.Inc()
}

func (m *Metrics) PositionClosed(reason string) {
	if m == nil {
		return
	}
	m.positionsClosed.WithLabelValues(reason).Inc()
	m.openPositions.Dec()
}

func (m *Metrics) MonitorTick() {
	if m == nil {
		return
	}
	m.monitorTicks.Inc()
}

func (m *Metrics) PriceMiss() {
	if m == nil {
		return
	}
	m.priceMisses.Inc()
}

func (m *Metrics) LedgerFailure() {
	if m == nil {
		return
	}
	m.ledgerFailures.Inc()
}
