package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tier_bot"

// TickDuration длительность одного прохода по всем символам.
var TickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one evaluation pass over all symbols",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
)

var TicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "ticks_total",
		Help:      "Evaluation passes by result",
	},
	[]string{"result"},
)

var FeedErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "errors_total",
		Help:      "Price feed failures by symbol and operation",
	},
	[]string{"symbol", "op"},
)

var RSIValue = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "rsi",
		Help:      "Last RSI reading per symbol",
	},
	[]string{"symbol"},
)

var Signals = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "edges_total",
		Help:      "Edge-triggered entry signals",
	},
	[]string{"symbol", "side"},
)

var EntriesSkipped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "entries_skipped_total",
		Help:      "Signals not turned into positions, by reason",
	},
	[]string{"tier", "reason"},
)

var PositionsOpened = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "positions",
		Name:      "opened_total",
		Help:      "Opened positions",
	},
	[]string{"tier", "side"},
)

var PositionsClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "positions",
		Name:      "closed_total",
		Help:      "Closed positions by exit reason",
	},
	[]string{"tier", "reason"},
)

var PartialCloses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "positions",
		Name:      "partial_total",
		Help:      "Partial take-profit fills",
	},
	[]string{"tier"},
)

var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "positions",
		Name:      "open",
		Help:      "Currently open positions",
	},
)

var ExecutionErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "execution",
		Name:      "errors_total",
		Help:      "Rejected or failed orders",
	},
	[]string{"op"},
)

var NetPnL = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pnl",
		Name:      "net_total",
		Help:      "Realized net PnL since start",
	},
)

var Capital = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pnl",
		Name:      "capital",
		Help:      "Initial capital plus realized net PnL",
	},
)
