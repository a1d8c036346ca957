package execution

import (
	"context"
	"fmt"

	"tier_bot/internal/models"
)

// OrderExecutor исполнение рыночных ордеров. Ядро не знает, live это или paper.
type OrderExecutor interface {
	Open(ctx context.Context, symbol string, side models.Side, qty float64) (models.Fill, error)
	Close(ctx context.Context, symbol string, side models.Side, qty float64) (models.Fill, error)
}

// PriceObserver исполнители, которым нужна текущая цена (paper).
type PriceObserver interface {
	ObservePrice(symbol string, price float64)
}

// ExecutionError ордер не принят биржей.
type ExecutionError struct {
	Symbol string
	Side   models.Side
	Op     string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s %s %s: %v", e.Op, e.Symbol, e.Side, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
