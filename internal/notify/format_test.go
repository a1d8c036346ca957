package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tier_bot/internal/models"
	"tier_bot/internal/position"
)

func TestFormatClosedLoss(t *testing.T) {
	text := Format(models.PositionClosed{
		Symbol:          "BTC/USDT:USDT",
		Tier:            models.TierAggressive,
		Side:            models.SideShort,
		Reason:          models.ReasonSL,
		Entry:           100,
		Exit:            101.2,
		ReturnPct:       -1.2,
		Gross:           -0.08,
		Fees:            0.0067,
		PnL:             -0.0867,
		DurationSec:     125,
		Capital:         19.91,
		ExecutionFailed: true,
	})

	assert.True(t, strings.HasPrefix(text, "❌"))
	assert.Contains(t, text, "<b>SL</b>")
	assert.Contains(t, text, "-1.20%")
	assert.Contains(t, text, "2m05s")
	assert.Contains(t, text, "Close order failed")
}

func TestFormatEscapesHTML(t *testing.T) {
	text := Format(models.PositionOpened{Symbol: "<X>", Tier: models.TierModerate, Side: models.SideLong})
	assert.Contains(t, text, "&lt;X&gt;")
	assert.NotContains(t, text, "<X>")
}

func TestFormatStartedListsTiers(t *testing.T) {
	text := Format(models.EngineStarted{
		Symbols:       []string{"BTC/USDT:USDT", "ETH/USDT:USDT"},
		RSIPeriod:     14,
		BuyThreshold:  30,
		SellThreshold: 70,
		Tiers:         models.DefaultTiers(),
	})
	assert.Contains(t, text, "PAPER")
	assert.Contains(t, text, "aggressive: 20.00 USDT / 3 lots")
	assert.Contains(t, text, "conservative: 20.00 USDT / 5 lots")
	assert.Contains(t, text, "buy &lt; 30")
}

func TestFormatSummary(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	text := Format(models.PeriodicSummary{
		WindowStart: start,
		WindowEnd:   start.Add(time.Hour),
		Window:      models.Totals{Trades: 2, Wins: 1, Losses: 1, Net: 0.1},
		Totals:      models.Totals{Trades: 10, Wins: 7, Losses: 3, Net: 1.5},
		Capital:     21.5,
		Open:        3,
	})
	assert.Contains(t, text, "10:00–11:00")
	assert.Contains(t, text, "2 trades (1 W / 1 L, 50.0%)")
	assert.Contains(t, text, "10 trades (7 W / 3 L, 70.0%)")
	assert.Contains(t, text, "Open: 3")
}

func TestFormatPositions(t *testing.T) {
	assert.Equal(t, "📭 No open positions", FormatPositions(nil))

	text := FormatPositions([]position.Position{{
		Key:            models.Key{Symbol: "ETH", Tier: models.TierConservative},
		Side:           models.SideLong,
		Qty:            0.5,
		Entry:          2000,
		TP:             2030,
		Stop:           2001,
		PartialTaken:   true,
		BreakevenArmed: true,
	}})
	assert.Contains(t, text, "ETH [conservative] long")
	assert.Contains(t, text, "(partial, BE)")
}
