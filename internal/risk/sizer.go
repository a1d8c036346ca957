package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tier_bot/internal/helper"
	"tier_bot/internal/models"
)

// defaultQtyPrecision знаков после запятой, если шаг инструмента неизвестен.
const defaultQtyPrecision = 6

// SizingRejected размер не посчитан, позицию не открываем.
type SizingRejected struct {
	Symbol string
	Reason string
}

func (e *SizingRejected) Error() string {
	return fmt.Sprintf("sizing rejected for %s: %s", e.Symbol, e.Reason)
}

func reject(symbol, format string, args ...any) error {
	return &SizingRejected{Symbol: symbol, Reason: fmt.Sprintf(format, args...)}
}

// Order готовый к исполнению план входа.
type Order struct {
	Symbol   string
	Tier     models.Tier
	Side     models.Side
	Qty      float64
	Entry    float64
	Notional float64
	TP       float64
	SL       float64
}

// SizeQty считает количество на один лот tier'а:
// notionalPerLot = capital / lots, qty = notionalPerLot / price с округлением вниз до шага.
func SizeQty(ts models.TierSettings, inst models.Instrument, price float64) (float64, error) {
	if price <= 0 {
		return 0, reject(inst.Symbol, "price %.8f <= 0", price)
	}
	if ts.Lots < 1 {
		return 0, reject(inst.Symbol, "tier %s lots %d < 1", ts.Name, ts.Lots)
	}
	capital := ts.Capital
	if capital > models.MaxTierCapital {
		capital = models.MaxTierCapital
	}
	if capital <= 0 {
		return 0, reject(inst.Symbol, "tier %s capital %.2f <= 0", ts.Name, capital)
	}

	perLot := decimal.NewFromFloat(capital).Div(decimal.NewFromInt(int64(ts.Lots)))
	qty := FloorToStep(perLot.Div(decimal.NewFromFloat(price)), inst.QtyStep)

	q, _ := qty.Float64()
	if q <= 0 {
		return 0, reject(inst.Symbol, "qty is zero after rounding to step %g", inst.QtyStep)
	}
	if inst.MinQty > 0 && q < inst.MinQty {
		return 0, reject(inst.Symbol, "qty %g below min qty %g", q, inst.MinQty)
	}
	notional, _ := qty.Mul(decimal.NewFromFloat(price)).Float64()
	if inst.MinNotional > 0 && notional < inst.MinNotional {
		return 0, reject(inst.Symbol, "notional %.4f below min notional %.4f", notional, inst.MinNotional)
	}
	return q, nil
}

// FloorToStep округляет вниз до шага. step <= 0 => до defaultQtyPrecision знаков.
func FloorToStep(v decimal.Decimal, step float64) decimal.Decimal {
	if step <= 0 {
		return v.Truncate(defaultQtyPrecision)
	}
	s := decimal.NewFromFloat(step)
	return v.Div(s).Floor().Mul(s)
}

// Brackets TP/SL от входа в процентах. Short зеркально.
func Brackets(side models.Side, entry, tpPct, slPct float64) (tp, sl float64) {
	sign := side.Sign()
	tp = entry * (1 + sign*tpPct/100)
	sl = entry * (1 - sign*slPct/100)
	return tp, sl
}

// Plan размер + брекеты для входа tier'а по цене price.
func Plan(ts models.TierSettings, inst models.Instrument, side models.Side, price, tpPct, slPct float64) (Order, error) {
	if !side.Valid() {
		return Order{}, reject(inst.Symbol, "unknown side %q", side)
	}
	qty, err := SizeQty(ts, inst, price)
	if err != nil {
		return Order{}, err
	}
	tp, sl := Brackets(side, price, tpPct, slPct)
	if inst.TickSize > 0 {
		// TP ближе к входу, SL дальше от него
		if side == models.SideLong {
			tp, sl = helper.RoundDownToTick(tp, inst.TickSize), helper.RoundDownToTick(sl, inst.TickSize)
		} else {
			tp, sl = helper.RoundUpToTick(tp, inst.TickSize), helper.RoundUpToTick(sl, inst.TickSize)
		}
	}
	return Order{
		Symbol:   inst.Symbol,
		Tier:     ts.Name,
		Side:     side,
		Qty:      qty,
		Entry:    price,
		Notional: qty * price,
		TP:       tp,
		SL:       sl,
	}, nil
}
