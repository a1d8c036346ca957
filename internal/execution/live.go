package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tier_bot/internal/exchange"
	"tier_bot/internal/helper"
	"tier_bot/internal/models"
)

// Broker часть OKX клиента, нужная live-исполнению.
type Broker interface {
	PlaceMarket(ctx context.Context, o exchange.MarketOrder) (string, error)
	SetLeverage(ctx context.Context, instID string, lever int, mgnMode string) error
}

type LiveConfig struct {
	TdMode  string // cross / isolated / cash
	PosMode string // net / long_short
}

// Live рыночные ордера на OKX. Количество переводится в контракты через ctVal.
type Live struct {
	broker Broker
	cfg    LiveConfig
	log    *zap.Logger

	mu          sync.RWMutex
	instruments map[string]models.Instrument
}

func NewLive(broker Broker, cfg LiveConfig, log *zap.Logger) *Live {
	if cfg.TdMode == "" {
		cfg.TdMode = "cross"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Live{broker: broker, cfg: cfg, log: log, instruments: map[string]models.Instrument{}}
}

// Prepare запоминает инструменты и выставляет плечо.
func (l *Live) Prepare(ctx context.Context, instruments []models.Instrument, leverage int) error {
	for _, inst := range instruments {
		l.mu.Lock()
		l.instruments[inst.Symbol] = inst
		l.mu.Unlock()

		if leverage <= 0 || l.cfg.TdMode == "cash" {
			continue
		}
		instID := helper.OKXInstID(inst.Symbol)
		if err := l.broker.SetLeverage(ctx, instID, leverage, l.cfg.TdMode); err != nil {
			return fmt.Errorf("set leverage %s x%d: %w", instID, leverage, err)
		}
	}
	return nil
}

// contracts qty в базовой валюте -> sz для OKX.
func (l *Live) contracts(symbol string, qty float64) (float64, error) {
	l.mu.RLock()
	inst, ok := l.instruments[symbol]
	l.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("instrument %s not prepared", symbol)
	}
	if inst.CtVal <= 0 || inst.QtyStep <= 0 {
		return qty, nil
	}
	step := decimal.NewFromFloat(inst.QtyStep)
	steps := decimal.NewFromFloat(qty).Div(step).Round(0)
	sz, _ := steps.Mul(step.Div(decimal.NewFromFloat(inst.CtVal))).Float64()
	if sz <= 0 {
		return 0, fmt.Errorf("sz is zero for qty %g", qty)
	}
	return sz, nil
}

func (l *Live) posSide(side models.Side) string {
	if l.cfg.PosMode == "long_short" {
		return string(side)
	}
	return ""
}

func clOrdID() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }

func (l *Live) place(ctx context.Context, op, symbol string, side models.Side, qty float64, reduce bool) (models.Fill, error) {
	sz, err := l.contracts(symbol, qty)
	if err != nil {
		return models.Fill{}, &ExecutionError{Symbol: symbol, Side: side, Op: op, Err: err}
	}

	orderSide := side.OrderSide()
	if reduce {
		orderSide = side.CloseSide()
	}
	id := clOrdID()
	ordID, err := l.broker.PlaceMarket(ctx, exchange.MarketOrder{
		InstID:     helper.OKXInstID(symbol),
		Side:       orderSide,
		PosSide:    l.posSide(side),
		Sz:         sz,
		TdMode:     l.cfg.TdMode,
		ReduceOnly: reduce && l.cfg.TdMode != "cash",
		ClOrdID:    id,
	})
	if err != nil {
		return models.Fill{}, &ExecutionError{Symbol: symbol, Side: side, Op: op, Err: err}
	}

	l.log.Info("live order placed",
		zap.String("op", op),
		zap.String("symbol", symbol),
		zap.String("side", orderSide),
		zap.Float64("sz", sz),
		zap.String("ordId", ordID),
		zap.String("clOrdId", id),
	)
	return models.Fill{OrderID: ordID, Symbol: symbol, Side: side, Qty: qty}, nil
}

func (l *Live) Open(ctx context.Context, symbol string, side models.Side, qty float64) (models.Fill, error) {
	return l.place(ctx, "open", symbol, side, qty, false)
}

func (l *Live) Close(ctx context.Context, symbol string, side models.Side, qty float64) (models.Fill, error) {
	return l.place(ctx, "close", symbol, side, qty, true)
}
