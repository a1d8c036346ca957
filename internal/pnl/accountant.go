package pnl

import (
	"sync"
	"time"

	"tier_bot/internal/models"
	"tier_bot/internal/position"
)

// Accountant накопленные итоги и почасовое окно для отчётов.
type Accountant struct {
	mu sync.Mutex

	interval       time.Duration
	initialCapital float64

	totals      models.Totals
	window      models.Totals
	windowStart time.Time
}

func NewAccountant(initialCapital float64, interval time.Duration, now time.Time) *Accountant {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Accountant{
		interval:       interval,
		initialCapital: initialCapital,
		windowStart:    now,
	}
}

func add(t *models.Totals, o position.Outcome) {
	t.Trades++
	if o.Net >= 0 {
		t.Wins++
	} else {
		t.Losses++
	}
	t.Gross += o.Gross
	t.Fees += o.Fees
	t.Net += o.Net
}

// Record учитывает закрытую позицию, возвращает капитал после сделки.
func (a *Accountant) Record(o position.Outcome) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	add(&a.totals, o)
	add(&a.window, o)
	return a.initialCapital + a.totals.Net
}

// Roll закрывает окно, если прошёл interval. ok=false если ещё рано.
func (a *Accountant) Roll(now time.Time) (models.PeriodicSummary, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if now.Sub(a.windowStart) < a.interval {
		return models.PeriodicSummary{}, false
	}
	s := models.PeriodicSummary{
		WindowStart: a.windowStart,
		WindowEnd:   now,
		Window:      a.window,
		Totals:      a.totals,
		Capital:     a.initialCapital + a.totals.Net,
	}
	a.window = models.Totals{}
	a.windowStart = now
	return s, true
}

func (a *Accountant) Totals() models.Totals {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totals
}

func (a *Accountant) Window() (models.Totals, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window, a.windowStart
}

func (a *Accountant) Capital() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialCapital + a.totals.Net
}
