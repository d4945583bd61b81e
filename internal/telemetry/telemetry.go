// Package telemetry exposes live-session counters to Prometheus.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Events         *prometheus.CounterVec
	Outcomes       *prometheus.CounterVec
	PortfolioValue prometheus.Gauge
	Drawdown       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trader_events_total", Help: "Market events processed"},
			[]string{"symbol"},
		),
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trader_signals_total", Help: "Signals processed by outcome"},
			[]string{"strategy", "status"},
		),
		PortfolioValue: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "trader_portfolio_value", Help: "Mark-to-market portfolio value"},
		),
		Drawdown: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "trader_drawdown_ratio", Help: "Current drawdown from peak"},
		),
	}
	reg.MustRegister(m.Events, m.Outcomes, m.PortfolioValue, m.Drawdown)
	return m
}

func (m *Metrics) Event(symbol string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(symbol).Inc()
}

func (m *Metrics) Outcome(strategy, status string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(strategy, status).Inc()
}

func (m *Metrics) Portfolio(value, drawdown float64) {
	if m == nil {
		return
	}
	m.PortfolioValue.Set(value)
	m.Drawdown.Set(drawdown)
}

// Serve starts a /metrics endpoint for g on addr in the background.
func Serve(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
