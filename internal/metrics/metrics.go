// Package metrics registers the Prometheus instrumentation for the
// decision pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters and gauges. One instance is shared by
// the services; the /metrics endpoint exposes the default registry.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec
	MarketsScanned   prometheus.Counter
	CandidatesGauge  prometheus.Gauge
	OracleCalls      prometheus.Counter
	OracleCost       prometheus.Counter
	ParseFailures    prometheus.Counter
	BetsPlaced       prometheus.Counter
	AmountStaked     prometheus.Counter
	SizingRejects    *prometheus.CounterVec
	PositionsSettled *prometheus.CounterVec
	BalanceGauge     prometheus.Gauge
	OpenPositions    prometheus.Gauge
}

// New registers the metric set on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metric set on reg. Tests pass a fresh registry so
// repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sibyl_cycles_total",
			Help: "Cycle invocations by terminal status.",
		}, []string{"status"}),
		MarketsScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "sibyl_markets_scanned_total",
			Help: "Contracts fetched from the market source.",
		}),
		CandidatesGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sibyl_candidates",
			Help: "Candidate pool size of the most recent cycle.",
		}),
		OracleCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "sibyl_oracle_calls_total",
			Help: "Forecasting-oracle API calls.",
		}),
		OracleCost: factory.NewCounter(prometheus.CounterOpts{
			Name: "sibyl_oracle_cost_dollars_total",
			Help: "Cumulative oracle API cost in dollars.",
		}),
		ParseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sibyl_oracle_parse_failures_total",
			Help: "Oracle replies that could not be parsed.",
		}),
		BetsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "sibyl_bets_placed_total",
			Help: "Positions opened by the ledger.",
		}),
		AmountStaked: factory.NewCounter(prometheus.CounterOpts{
			Name: "sibyl_amount_staked_dollars_total",
			Help: "Cumulative dollars staked.",
		}),
		SizingRejects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sibyl_sizing_rejections_total",
			Help: "Sizing rejections by reason.",
		}, []string{"reason"}),
		PositionsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sibyl_positions_settled_total",
			Help: "Settled positions by result.",
		}, []string{"result"}),
		BalanceGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sibyl_balance_dollars",
			Help: "Available cash balance.",
		}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sibyl_open_positions",
			Help: "Open position count.",
		}),
	}
}
