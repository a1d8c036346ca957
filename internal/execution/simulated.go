package execution

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tier_bot/internal/models"
)

var errNoPrice = errors.New("no reference price observed")

// Simulated paper-исполнение по последней наблюдаемой цене.
type Simulated struct {
	mu     sync.RWMutex
	prices map[string]float64
	log    *zap.Logger
}

func NewSimulated(log *zap.Logger) *Simulated {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulated{prices: map[string]float64{}, log: log}
}

func (s *Simulated) ObservePrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	s.prices[symbol] = price
	s.mu.Unlock()
}

func (s *Simulated) fill(op, symbol string, side models.Side, qty float64) (models.Fill, error) {
	s.mu.RLock()
	px, ok := s.prices[symbol]
	s.mu.RUnlock()
	if !ok {
		return models.Fill{}, &ExecutionError{Symbol: symbol, Side: side, Op: op, Err: errNoPrice}
	}
	if qty <= 0 {
		return models.Fill{}, &ExecutionError{Symbol: symbol, Side: side, Op: op, Err: errors.New("qty <= 0")}
	}

	f := models.Fill{
		OrderID: "paper-" + uuid.NewString(),
		Symbol:  symbol,
		Side:    side,
		Qty:     qty,
		Price:   px,
	}
	s.log.Debug("paper fill",
		zap.String("op", op),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("qty", qty),
		zap.Float64("price", px),
	)
	return f, nil
}

func (s *Simulated) Open(_ context.Context, symbol string, side models.Side, qty float64) (models.Fill, error) {
	return s.fill("open", symbol, side, qty)
}

func (s *Simulated) Close(_ context.Context, symbol string, side models.Side, qty float64) (models.Fill, error) {
	return s.fill("close", symbol, side, qty)
}
