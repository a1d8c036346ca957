package models

import "time"

type CloseReason string

const (
	ReasonTrail   CloseReason = "TRAIL"
	ReasonTP      CloseReason = "TP"
	ReasonSL      CloseReason = "SL"
	ReasonTimeout CloseReason = "TIMEOUT"
)

// Event событие для NotificationSink. Форматирование только на стороне sink.
type Event interface {
	event()
}

type EngineStarted struct {
	Live           bool
	Exchange       string
	Symbols        []string
	Timeframe      string
	RSIPeriod      int
	BuyThreshold   float64
	SellThreshold  float64
	TakeProfitPct  float64
	StopLossPct    float64
	Tiers          []TierSettings
	InitialCapital float64
}

type PositionOpened struct {
	Symbol string
	Tier   Tier
	Side   Side
	Qty    float64
	Entry  float64
	TP     float64
	SL     float64
	RSI    float64
	At     time.Time
}

type PositionPartiallyClosed struct {
	Symbol       string
	Tier         Tier
	Side         Side
	Qty          float64
	Price        float64
	RemainingQty float64
	Gross        float64
	NewStop      float64
	At           time.Time
}

type PositionClosed struct {
	Symbol          string
	Tier            Tier
	Side            Side
	Reason          CloseReason
	Qty             float64
	Entry           float64
	Exit            float64
	ReturnPct       float64
	Gross           float64
	Fees            float64
	PnL             float64
	DurationSec     int64
	Capital         float64
	ExecutionFailed bool
	At              time.Time
}

// Totals одинаковая форма для накопленных итогов и окна.
type Totals struct {
	Trades int
	Wins   int
	Losses int
	Gross  float64
	Fees   float64
	Net    float64
}

func (t Totals) WinRate() float64 {
	if t.Trades == 0 {
		return 0
	}
	return float64(t.Wins) / float64(t.Trades) * 100
}

type PeriodicSummary struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Window      Totals
	Totals      Totals
	Capital     float64
	Open        int
}

func (EngineStarted) event()           {}
func (PositionOpened) event()          {}
func (PositionPartiallyClosed) event() {}
func (PositionClosed) event()          {}
func (PeriodicSummary) event()         {}
