package models

import "strings"

// Tier профиль риска. Все три торгуют один и тот же сигнал.
type Tier string

const (
	TierAggressive   Tier = "aggressive"
	TierModerate     Tier = "moderate"
	TierConservative Tier = "conservative"
)

// Tiers порядок обхода на каждом тике.
var Tiers = []Tier{TierAggressive, TierModerate, TierConservative}

// MaxTierCapital потолок капитала на один tier.
const MaxTierCapital = 1000.0

type TierSettings struct {
	Name          Tier    `yaml:"name"`
	Capital       float64 `yaml:"capital"`
	Lots          int     `yaml:"lots"`
	TakeProfitPct float64 `yaml:"take_profit_pct"` // 0 => глобальный
	StopLossPct   float64 `yaml:"stop_loss_pct"`   // 0 => глобальный
	Leverage      int     `yaml:"leverage"`
}

// Enabled false при нулевом капитале: такой tier не открывает позиций.
func (ts TierSettings) Enabled() bool { return ts.Capital > 0 }

type Preset struct {
	Name        string
	Description string
	Apply       func(ts *TierSettings)
}

// Presets дефолты для tier'ов: 20 USDT капитала, разное число лотов.
var Presets = map[Tier]Preset{
	TierAggressive: {
		Name:        "🔴 Aggressive",
		Description: "Крупный лот, 3 входа на капитал",
		Apply: func(ts *TierSettings) {
			ts.Capital = 20
			ts.Lots = 3
			ts.Leverage = 5
		},
	},
	TierModerate: {
		Name:        "🟡 Moderate",
		Description: "Баланс риска и доходности",
		Apply: func(ts *TierSettings) {
			ts.Capital = 20
			ts.Lots = 4
			ts.Leverage = 3
		},
	},
	TierConservative: {
		Name:        "🟢 Conservative",
		Description: "Мелкий лот, минимальный риск",
		Apply: func(ts *TierSettings) {
			ts.Capital = 20
			ts.Lots = 5
			ts.Leverage = 1
		},
	},
}

// DefaultTiers применяет пресеты ко всем трём tier'ам.
func DefaultTiers() []TierSettings {
	out := make([]TierSettings, 0, len(Tiers))
	for _, t := range Tiers {
		ts := TierSettings{Name: t}
		Presets[t].Apply(&ts)
		out = append(out, ts)
	}
	return out
}

func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	_, ok := Presets[t]
	return t, ok
}

// Key идентификатор позиции: одна активная позиция на (symbol, tier).
type Key struct {
	Symbol string
	Tier   Tier
}

func (k Key) String() string { return k.Symbol + ":" + string(k.Tier) }
