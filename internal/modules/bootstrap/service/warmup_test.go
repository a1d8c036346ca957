package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCloses map[string][]float64

func (f fakeCloses) RecentCloses(_ context.Context, symbol, _ string, _ int) ([]float64, error) {
	closes, ok := f[symbol]
	if !ok {
		return nil, errors.New("unknown instrument")
	}
	return closes, nil
}

func TestWarmupSplitsSymbols(t *testing.T) {
	feed := fakeCloses{
		"BTC/USDT:USDT": make([]float64, 20),
		"ETH/USDT:USDT": make([]float64, 5),
	}
	w := NewWarmuper(feed, nil)

	rep := w.Warmup(context.Background(), []string{"BTC/USDT:USDT", "ETH/USDT:USDT", "DOGE/USDT:USDT"}, "1m", 200, 15)

	assert.Equal(t, []string{"BTC/USDT:USDT"}, rep.Ready)
	assert.Equal(t, "not enough candles", rep.Missing["ETH/USDT:USDT"])
	assert.Equal(t, "unknown instrument", rep.Missing["DOGE/USDT:USDT"])
}
