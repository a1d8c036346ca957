package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tier_bot/internal/models"
	"tier_bot/internal/risk"
)

var ErrClosed = errors.New("position already closed")

type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusPartial Status = "PARTIAL"
	StatusClosed  Status = "CLOSED"
)

// Rules параметры выхода, общие для всех tier'ов.
type Rules struct {
	PartialPct float64

	BreakevenEnabled bool
	BETriggerPct     float64
	BEOffsetPct      float64

	TrailEnabled    bool
	TrailTriggerPct float64
	TrailStepPct    float64

	Timeout time.Duration
	FeeRate float64 // на одну сторону
}

// Position одна позиция на (symbol, tier).
// Qty только уменьшается, Stop и TrailStop двигаются только в пользу позиции.
type Position struct {
	Key     models.Key
	Side    models.Side
	QtyStep float64

	Qty        float64
	InitialQty float64
	Entry      float64
	TP         float64
	Stop       float64
	OpenedAt   time.Time

	PartialTaken   bool
	BreakevenArmed bool
	TrailingArmed  bool
	TrailAnchor    float64
	TrailStop      float64

	// реализованный gross частичной фиксации
	PartialGross float64

	Status      Status
	CloseReason models.CloseReason
	Exit        float64
	ClosedAt    time.Time
}

func New(o risk.Order, qtyStep float64, now time.Time) *Position {
	return &Position{
		Key:        models.Key{Symbol: o.Symbol, Tier: o.Tier},
		Side:       o.Side,
		QtyStep:    qtyStep,
		Qty:        o.Qty,
		InitialQty: o.Qty,
		Entry:      o.Entry,
		TP:         o.TP,
		Stop:       o.SL,
		OpenedAt:   now,
		Status:     StatusOpen,
	}
}

func (p *Position) Closed() bool { return p.Status == StatusClosed }

// EntryNotional номинал на входе, от него считаются комиссии.
func (p *Position) EntryNotional() float64 { return p.InitialQty * p.Entry }

// ReturnPct доходность в процентах, для short знак перевёрнут.
func (p *Position) ReturnPct(price float64) float64 {
	if p.Entry == 0 {
		return 0
	}
	return p.Side.Sign() * (price - p.Entry) / p.Entry * 100
}

// tighter true если a защищает позицию сильнее, чем b.
func (p *Position) tighter(a, b float64) bool {
	if p.Side == models.SideShort {
		return a < b
	}
	return a > b
}

// crossed цена пробила уровень против позиции.
func (p *Position) crossed(price, level float64) bool {
	if p.Side == models.SideShort {
		return price >= level
	}
	return price <= level
}

func (p *Position) reached(price, level float64) bool {
	if p.Side == models.SideShort {
		return price <= level
	}
	return price >= level
}

// EffectiveStop более защитный из Stop и TrailStop.
func (p *Position) EffectiveStop() float64 {
	if p.TrailingArmed && p.tighter(p.TrailStop, p.Stop) {
		return p.TrailStop
	}
	return p.Stop
}

func (p *Position) armBreakeven(r Rules) {
	cand := p.Entry * (1 + p.Side.Sign()*r.BEOffsetPct/100)
	if p.tighter(cand, p.Stop) {
		p.Stop = cand
	}
	p.BreakevenArmed = true
}

// Arming что изменилось на шаге Advance.
type Arming struct {
	Breakeven  bool
	TrailArmed bool
	TrailMoved bool
}

func (a Arming) Any() bool { return a.Breakeven || a.TrailArmed || a.TrailMoved }

// Advance взводит безубыток и трейлинг и подтягивает трейл. Выполняется каждый тик до проверки выходов.
func (p *Position) Advance(price float64, r Rules) Arming {
	var a Arming
	if p.Closed() {
		return a
	}
	ret := p.ReturnPct(price)

	if r.BreakevenEnabled && !p.BreakevenArmed && ret >= r.BETriggerPct {
		p.armBreakeven(r)
		a.Breakeven = true
	}

	if !r.TrailEnabled {
		return a
	}
	step := p.Side.Sign() * r.TrailStepPct / 100
	switch {
	case !p.TrailingArmed && ret >= r.TrailTriggerPct:
		p.TrailingArmed = true
		p.TrailAnchor = price
		p.TrailStop = price * (1 - step)
		a.TrailArmed = true
	case p.TrailingArmed && p.tighter(price, p.TrailAnchor):
		p.TrailAnchor = price
		if cand := price * (1 - step); p.tighter(cand, p.TrailStop) {
			p.TrailStop = cand
			a.TrailMoved = true
		}
	}
	return a
}

type Action int

const (
	Hold Action = iota
	TakePartial
	CloseAll
)

// Decision что делать с позицией на этом тике.
type Decision struct {
	Action Action
	Qty    float64
	Reason models.CloseReason
}

// Decide проверяет выходы в фиксированном порядке: трейл, частичный TP, стоп, таймаут.
// Позицию не меняет.
func (p *Position) Decide(price float64, now time.Time, r Rules) Decision {
	if p.Closed() {
		return Decision{}
	}

	if p.TrailingArmed && p.crossed(price, p.TrailStop) {
		return Decision{Action: CloseAll, Qty: p.Qty, Reason: models.ReasonTrail}
	}

	if !p.PartialTaken && r.PartialPct > 0 && p.reached(price, p.TP) {
		q := p.partialQty(r.PartialPct)
		switch {
		case r.PartialPct >= 100 || q >= p.Qty:
			return Decision{Action: CloseAll, Qty: p.Qty, Reason: models.ReasonTP}
		case q > 0:
			return Decision{Action: TakePartial, Qty: q, Reason: models.ReasonTP}
		}
	}

	if p.crossed(price, p.EffectiveStop()) {
		return Decision{Action: CloseAll, Qty: p.Qty, Reason: models.ReasonSL}
	}

	if r.Timeout > 0 && now.Sub(p.OpenedAt) >= r.Timeout {
		return Decision{Action: CloseAll, Qty: p.Qty, Reason: models.ReasonTimeout}
	}
	return Decision{}
}

// Evaluate Advance + Decide.
func (p *Position) Evaluate(price float64, now time.Time, r Rules) (Arming, Decision) {
	a := p.Advance(price, r)
	return a, p.Decide(price, now, r)
}

func (p *Position) partialQty(pct float64) float64 {
	q := decimal.NewFromFloat(p.Qty).Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100))
	v, _ := risk.FloorToStep(q, p.QtyStep).Float64()
	return v
}

// Partial результат частичной фиксации.
type Partial struct {
	Qty       float64
	Price     float64
	Remaining float64
	Gross     float64
	NewStop   float64
}

// ApplyPartial фиксирует часть позиции по цене price. Один раз за жизнь позиции.
func (p *Position) ApplyPartial(qty, price float64, r Rules) (Partial, error) {
	if p.Closed() {
		return Partial{}, ErrClosed
	}
	if p.PartialTaken {
		return Partial{}, fmt.Errorf("partial already taken for %s", p.Key)
	}
	if qty <= 0 || qty >= p.Qty {
		return Partial{}, fmt.Errorf("partial qty %g out of range (0, %g)", qty, p.Qty)
	}

	gross := qty * p.Entry * p.ReturnPct(price) / 100
	remaining, _ := decimal.NewFromFloat(p.Qty).Sub(decimal.NewFromFloat(qty)).Float64()

	p.Qty = remaining
	p.PartialTaken = true
	p.PartialGross += gross
	p.Status = StatusPartial
	if r.BreakevenEnabled && !p.BreakevenArmed {
		p.armBreakeven(r)
	}

	return Partial{
		Qty:       qty,
		Price:     price,
		Remaining: remaining,
		Gross:     gross,
		NewStop:   p.EffectiveStop(),
	}, nil
}

// Outcome итог закрытой позиции.
type Outcome struct {
	Key       models.Key
	Side      models.Side
	Reason    models.CloseReason
	Qty       float64
	Entry     float64
	Exit      float64
	ReturnPct float64
	Gross     float64
	Fees      float64
	Net       float64
	OpenedAt  time.Time
	ClosedAt  time.Time
}

func (o Outcome) Duration() time.Duration { return o.ClosedAt.Sub(o.OpenedAt) }

func (o Outcome) Loss() bool { return o.Net < 0 }

// Close терминальный переход. Комиссия = FeeRate * 2 * EntryNotional при любом числе частичных фиксаций.
func (p *Position) Close(price float64, now time.Time, reason models.CloseReason, r Rules) (Outcome, error) {
	if p.Closed() {
		return Outcome{}, ErrClosed
	}

	ret := p.ReturnPct(price)
	gross := p.Qty*p.Entry*ret/100 + p.PartialGross
	notional := p.EntryNotional()
	fees := r.FeeRate * (notional + notional)

	out := Outcome{
		Key:       p.Key,
		Side:      p.Side,
		Reason:    reason,
		Qty:       p.Qty,
		Entry:     p.Entry,
		Exit:      price,
		ReturnPct: ret,
		Gross:     gross,
		Fees:      fees,
		Net:       gross - fees,
		OpenedAt:  p.OpenedAt,
		ClosedAt:  now,
	}

	p.Status = StatusClosed
	p.CloseReason = reason
	p.Exit = price
	p.ClosedAt = now
	return out, nil
}
