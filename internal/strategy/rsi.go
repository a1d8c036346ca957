package strategy

import (
	"errors"
	"fmt"
)

// ErrInsufficientData меньше period+1 закрытий, RSI не определён.
var ErrInsufficientData = errors.New("insufficient closes for rsi")

// Reading значение RSI. Flat: avgGain == avgLoss == 0, рынок стоит.
type Reading struct {
	Value float64
	Flat  bool
}

// RSI по Уайлдеру. closes от старых к новым.
func RSI(closes []float64, period int) (Reading, error) {
	if period < 1 {
		return Reading{}, fmt.Errorf("rsi period must be positive, got %d", period)
	}
	if len(closes) < period+1 {
		return Reading{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(closes), period+1)
	}

	p := float64(period)
	var avgGain, avgLoss float64
	// seed: простое среднее первых period дельт
	for i := 1; i <= period; i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= p
	avgLoss /= p

	for i := period + 1; i < len(closes); i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return Reading{Value: 100, Flat: avgGain == 0}, nil
	}
	rs := avgGain / avgLoss
	return Reading{Value: 100 - 100/(1+rs)}, nil
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}
