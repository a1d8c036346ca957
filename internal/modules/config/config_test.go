package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tier_bot/internal/models"
	"tier_bot/internal/risk"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Signal.Period)
	assert.Equal(t, 30.0, cfg.Signal.BuyThreshold)
	assert.Equal(t, 70.0, cfg.Signal.SellThreshold)
	assert.Equal(t, 3.0, cfg.Signal.Hysteresis)
	assert.Equal(t, 0.0005, cfg.Engine.FeeRate)
	assert.Equal(t, 25*time.Minute, cfg.Exits.Timeout)
	assert.Equal(t, 300*time.Second, cfg.Cooldown.Signal)
	assert.Equal(t, 900*time.Second, cfg.Cooldown.Loss)
	assert.Equal(t, risk.LossScopeKey, cfg.LossScope())

	require.Len(t, cfg.Tiers, 3)
	assert.Equal(t, 3, cfg.Tiers[0].Lots)
	assert.Equal(t, 5, cfg.Tiers[2].Lots)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  symbols: [ETH/USDT:USDT]
  poll_interval: 2s
  history: 100
signal:
  rsi_period: 7
  buy_threshold: 25
  sell_threshold: 75
  hysteresis: 2
cooldown:
  loss_scope: global
tiers:
  - name: Aggressive
    capital: 5000
    lots: 2
    take_profit_pct: 3
instruments:
  - symbol: ETH/USDT:USDT
    qty_step: 0.01
    min_qty: 0.01
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ETH/USDT:USDT"}, cfg.Engine.Symbols)
	assert.Equal(t, 2*time.Second, cfg.Engine.PollInterval)
	assert.Equal(t, 7, cfg.Signal.Period)
	assert.Equal(t, risk.LossScopeGlobal, cfg.LossScope())

	require.Len(t, cfg.Tiers, 1)
	ts := cfg.Tiers[0]
	assert.Equal(t, models.TierAggressive, ts.Name)
	assert.Equal(t, models.MaxTierCapital, ts.Capital)

	tp, sl := cfg.Brackets(ts)
	assert.Equal(t, 3.0, tp)
	assert.Equal(t, 1.0, sl)

	inst, ok := cfg.InstrumentOverride("ETH/USDT:USDT")
	require.True(t, ok)
	assert.Equal(t, 0.01, inst.QtyStep)
	_, ok = cfg.InstrumentOverride("BTC/USDT:USDT")
	assert.False(t, ok)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "BTC/USDT:USDT, SOL/USDT:USDT")
	t.Setenv("TELEGRAM_ALLOWED_IDS", "1,-100200")
	t.Setenv("LIVE", "true")
	t.Setenv("TIMEOUT_MIN", "10")
	t.Setenv("LOSS_COOLDOWN_SEC", "60")
	t.Setenv("RSI_BUY_THRESHOLD", "20")
	t.Setenv("LOT_SIZE_MODERATE", "8")
	t.Setenv("ENABLE_TRAIL", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USDT:USDT", "SOL/USDT:USDT"}, cfg.Engine.Symbols)
	assert.Equal(t, []int64{1, -100200}, cfg.Telegram.AllowedIDs)
	assert.True(t, cfg.Exchange.Live)
	assert.Equal(t, 10*time.Minute, cfg.Exits.Timeout)
	assert.Equal(t, time.Minute, cfg.Cooldown.Loss)
	assert.Equal(t, 20.0, cfg.Signal.BuyThreshold)
	assert.Equal(t, 8, cfg.Tiers[1].Lots)
	assert.False(t, cfg.Rules().TrailEnabled)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"period":         "signal: {rsi_period: 1}",
		"thresholds":     "signal: {buy_threshold: 70, sell_threshold: 30}",
		"hysteresis":     "signal: {hysteresis: -1}",
		"partial":        "exits: {partial_pct: 120}",
		"no symbols":     "engine: {symbols: []}",
		"poll":           "engine: {poll_interval: 0s}",
		"scope":          "cooldown: {loss_scope: everything}",
		"unknown tier":   "tiers: [{name: yolo, capital: 10, lots: 1}]",
		"duplicate tier": "tiers: [{name: moderate, capital: 10, lots: 1}, {name: moderate, capital: 10, lots: 1}]",
		"lots":           "tiers: [{name: moderate, capital: 10, lots: 0}]",
		"capital":        "tiers: [{name: moderate, capital: -5, lots: 1}]",
		"take profit":    "exits: {take_profit_pct: -1}",
		"stop loss":      "exits: {stop_loss_pct: -1}",
		"be trigger":     "exits: {be_trigger_pct: -0.6}",
		"be offset":      "exits: {be_offset_pct: -0.05}",
		"trail trigger":  "exits: {trail_trigger_pct: -1}",
		"trail step":     "exits: {trail_step_pct: -0.25}",
		"timeout":        "exits: {timeout: -1m}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestZeroCapitalTierLoads(t *testing.T) {
	cfg, err := Load(writeConfig(t, "tiers: [{name: moderate, capital: 0, lots: 1}, {name: aggressive, capital: 5000, lots: 2}]"))
	require.NoError(t, err)
	require.Len(t, cfg.Tiers, 2)
	assert.Zero(t, cfg.Tiers[0].Capital)
	assert.False(t, cfg.Tiers[0].Enabled())
	assert.Equal(t, models.MaxTierCapital, cfg.Tiers[1].Capital)
	assert.True(t, cfg.Tiers[1].Enabled())
}
