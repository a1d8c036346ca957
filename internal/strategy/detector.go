package strategy

import (
	"fmt"
	"sync"

	"tier_bot/internal/models"
)

// Zone состояние гистерезиса.
type Zone int

const (
	ZoneMid Zone = iota
	ZoneBelow
	ZoneAbove
)

func (z Zone) String() string {
	switch z {
	case ZoneBelow:
		return "below"
	case ZoneAbove:
		return "above"
	default:
		return "mid"
	}
}

type Config struct {
	Period        int
	BuyThreshold  float64
	SellThreshold float64
	Hysteresis    float64
}

func (c Config) Validate() error {
	if c.Period < 2 {
		return fmt.Errorf("rsi period must be >= 2, got %d", c.Period)
	}
	if c.BuyThreshold < 0 || c.SellThreshold > 100 || c.BuyThreshold >= c.SellThreshold {
		return fmt.Errorf("rsi thresholds must satisfy 0 <= buy < sell <= 100, got %.2f/%.2f", c.BuyThreshold, c.SellThreshold)
	}
	if c.Hysteresis < 0 {
		return fmt.Errorf("rsi hysteresis must be >= 0, got %.2f", c.Hysteresis)
	}
	return nil
}

// Next переход автомата гистерезиса.
func (c Config) Next(prev Zone, rsi float64) Zone {
	switch {
	case rsi < c.BuyThreshold:
		return ZoneBelow
	case rsi > c.SellThreshold:
		return ZoneAbove
	}
	switch prev {
	case ZoneBelow:
		if rsi > c.BuyThreshold+c.Hysteresis {
			return ZoneMid
		}
		return ZoneBelow
	case ZoneAbove:
		if rsi < c.SellThreshold-c.Hysteresis {
			return ZoneMid
		}
		return ZoneAbove
	}
	return ZoneMid
}

type rsiState struct {
	zone Zone
	last float64
	seen bool
}

// Detector держит состояние гистерезиса по каждому символу.
// Сигнал срабатывает только на входе в зону, а не на каждом тике внутри неё.
type Detector struct {
	mu     sync.Mutex
	cfg    Config
	states map[string]*rsiState
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg, states: map[string]*rsiState{}}
}

// Update считает RSI по closes и прогоняет его через автомат.
// При нехватке данных возвращает ErrInsufficientData, состояние не трогает.
func (d *Detector) Update(symbol, timeframe string, closes []float64) (models.Signal, Reading, error) {
	r, err := RSI(closes, d.cfg.Period)
	if err != nil {
		return models.Signal{}, Reading{}, err
	}

	side := d.Observe(symbol, r)
	if side == models.SideNone {
		return models.Signal{}, r, nil
	}
	return models.Signal{
		Symbol:    symbol,
		Timeframe: timeframe,
		Side:      side,
		Price:     closes[len(closes)-1],
		RSI:       r.Value,
		Reason:    fmt.Sprintf("rsi %.2f entered %s", r.Value, d.zoneFor(side)),
	}, r, nil
}

// Observe применяет готовое значение RSI. Flat не меняет зону.
func (d *Detector) Observe(symbol string, r Reading) models.Side {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.states[symbol]
	if st == nil {
		st = &rsiState{zone: ZoneMid}
		d.states[symbol] = st
	}
	st.last = r.Value
	st.seen = true
	if r.Flat {
		return models.SideNone
	}

	prev := st.zone
	st.zone = d.cfg.Next(prev, r.Value)

	switch {
	case st.zone == ZoneBelow && prev != ZoneBelow:
		return models.SideLong
	case st.zone == ZoneAbove && prev != ZoneAbove:
		return models.SideShort
	}
	return models.SideNone
}

// State текущая зона и последний RSI. ok=false если символ ещё не видели.
func (d *Detector) State(symbol string) (Zone, float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.states[symbol]
	if st == nil {
		return ZoneMid, 0, false
	}
	return st.zone, st.last, st.seen
}

func (d *Detector) zoneFor(side models.Side) Zone {
	if side == models.SideShort {
		return ZoneAbove
	}
	return ZoneBelow
}
