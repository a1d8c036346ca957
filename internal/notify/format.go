package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"tier_bot/internal/helper"
	"tier_bot/internal/models"
	"tier_bot/internal/position"
)

func esc(s string) string { return html.EscapeString(s) }

func sideLabel(s models.Side) string {
	if s == models.SideShort {
		return "🔴 SHORT"
	}
	return "🟢 LONG"
}

func signed(v float64) string { return fmt.Sprintf("%+.4f", v) }

// Format HTML-текст события для Telegram.
func Format(ev models.Event) string {
	switch e := ev.(type) {
	case models.EngineStarted:
		return formatStarted(e)
	case models.PositionOpened:
		return fmt.Sprintf(
			"%s <b>%s</b> [%s]\n"+
				"Qty: <code>%g</code> @ <code>%.4f</code>\n"+
				"TP: <code>%.4f</code> | SL: <code>%.4f</code>\n"+
				"RSI: <code>%.2f</code>",
			sideLabel(e.Side), esc(e.Symbol), esc(string(e.Tier)),
			e.Qty, e.Entry, e.TP, e.SL, e.RSI,
		)
	case models.PositionPartiallyClosed:
		return fmt.Sprintf(
			"💰 <b>%s</b> [%s] partial %s\n"+
				"Closed: <code>%g</code> @ <code>%.4f</code>, left <code>%g</code>\n"+
				"Gross: <code>%s</code> | Stop → <code>%.4f</code>",
			esc(e.Symbol), esc(string(e.Tier)), strings.ToLower(string(e.Side)),
			e.Qty, e.Price, e.RemainingQty, signed(e.Gross), e.NewStop,
		)
	case models.PositionClosed:
		icon := "✅"
		if e.PnL < 0 {
			icon = "❌"
		}
		var b strings.Builder
		fmt.Fprintf(&b,
			"%s <b>%s</b> [%s] %s closed: <b>%s</b>\n"+
				"Entry <code>%.4f</code> → Exit <code>%.4f</code> (<code>%+.2f%%</code>)\n"+
				"Gross <code>%s</code> | Fees <code>%.4f</code> | PnL <b>%s</b>\n"+
				"Duration: %s | Capital: <code>%.2f</code>",
			icon, esc(e.Symbol), esc(string(e.Tier)), strings.ToLower(string(e.Side)), e.Reason,
			e.Entry, e.Exit, e.ReturnPct,
			signed(e.Gross), e.Fees, signed(e.PnL),
			helper.FormatDuration(time.Duration(e.DurationSec)*time.Second), e.Capital,
		)
		if e.ExecutionFailed {
			b.WriteString("\n⚠️ <b>Close order failed</b>: exchange position may still be open")
		}
		return b.String()
	case models.PeriodicSummary:
		return formatSummary(e)
	}
	return fmt.Sprintf("%v", ev)
}

func formatStarted(e models.EngineStarted) string {
	mode := "📝 PAPER"
	if e.Live {
		mode = "⚡ LIVE"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 <b>RSI tier bot started</b> (%s)\n", mode)
	fmt.Fprintf(&b, "Exchange: %s | TF: %s\n", esc(e.Exchange), esc(e.Timeframe))
	fmt.Fprintf(&b, "Symbols: %s\n", esc(strings.Join(e.Symbols, ", ")))
	fmt.Fprintf(&b, "RSI(%d) buy &lt; %.0f | sell &gt; %.0f\n", e.RSIPeriod, e.BuyThreshold, e.SellThreshold)
	fmt.Fprintf(&b, "TP %.2f%% | SL %.2f%%\n", e.TakeProfitPct, e.StopLossPct)
	for _, t := range e.Tiers {
		fmt.Fprintf(&b, "• %s: %.2f USDT / %d lots, x%d\n", esc(string(t.Name)), t.Capital, t.Lots, t.Leverage)
	}
	fmt.Fprintf(&b, "Capital: <code>%.2f</code>", e.InitialCapital)
	return b.String()
}

func formatTotals(b *strings.Builder, title string, t models.Totals) {
	fmt.Fprintf(b, "<b>%s</b>: %d trades (%d W / %d L, %.1f%%)\n", title, t.Trades, t.Wins, t.Losses, t.WinRate())
	fmt.Fprintf(b, "Gross <code>%s</code> | Fees <code>%.4f</code> | Net <b>%s</b>\n", signed(t.Gross), t.Fees, signed(t.Net))
}

func formatSummary(e models.PeriodicSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Summary</b> %s–%s UTC\n",
		e.WindowStart.UTC().Format("15:04"), e.WindowEnd.UTC().Format("15:04"))
	formatTotals(&b, "Window", e.Window)
	formatTotals(&b, "Total", e.Totals)
	fmt.Fprintf(&b, "Open: %d | Capital: <code>%.2f</code>", e.Open, e.Capital)
	return b.String()
}

// FormatPositions ответ на /positions.
func FormatPositions(ps []position.Position) string {
	if len(ps) == 0 {
		return "📭 No open positions"
	}
	var b strings.Builder
	b.WriteString("📈 <b>Open positions</b>\n")
	for _, p := range ps {
		var flags []string
		if p.PartialTaken {
			flags = append(flags, "partial")
		}
		if p.BreakevenArmed {
			flags = append(flags, "BE")
		}
		if p.TrailingArmed {
			flags = append(flags, "trail")
		}
		fmt.Fprintf(&b, "• %s [%s] %s qty <code>%g</code> @ <code>%.4f</code> stop <code>%.4f</code> tp <code>%.4f</code>",
			esc(p.Key.Symbol), esc(string(p.Key.Tier)), p.Side, p.Qty, p.Entry, p.EffectiveStop(), p.TP)
		if len(flags) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(flags, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatPnL ответ на /pnl.
func FormatPnL(total, window models.Totals, windowStart time.Time, capital float64) string {
	var b strings.Builder
	formatTotals(&b, "Since "+windowStart.UTC().Format("15:04")+" UTC", window)
	formatTotals(&b, "Total", total)
	fmt.Fprintf(&b, "Capital: <code>%.2f</code>", capital)
	return b.String()
}
