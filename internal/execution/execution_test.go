package execution_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tier_bot/internal/exchange"
	"tier_bot/internal/execution"
	"tier_bot/internal/models"
)

var (
	_ execution.OrderExecutor = (*execution.Simulated)(nil)
	_ execution.OrderExecutor = (*execution.Live)(nil)
	_ execution.PriceObserver = (*execution.Simulated)(nil)
)

func TestSimulatedFillsAtObservedPrice(t *testing.T) {
	s := execution.NewSimulated(nil)

	_, err := s.Open(context.Background(), "BTC", models.SideLong, 1)
	var ee *execution.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "open", ee.Op)

	s.ObservePrice("BTC", 64000)
	f, err := s.Open(context.Background(), "BTC", models.SideLong, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 64000.0, f.Price)
	assert.Equal(t, 0.01, f.Qty)
	assert.True(t, strings.HasPrefix(f.OrderID, "paper-"))

	s.ObservePrice("BTC", 0)
	f, err = s.Close(context.Background(), "BTC", models.SideLong, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 64000.0, f.Price)
}

type fakeBroker struct {
	orders   []exchange.MarketOrder
	leverage map[string]int
	err      error
}

func (b *fakeBroker) PlaceMarket(_ context.Context, o exchange.MarketOrder) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.orders = append(b.orders, o)
	return "ord-1", nil
}

func (b *fakeBroker) SetLeverage(_ context.Context, instID string, lever int, _ string) error {
	if b.leverage == nil {
		b.leverage = map[string]int{}
	}
	b.leverage[instID] = lever
	return nil
}

func TestLiveConvertsToContracts(t *testing.T) {
	b := &fakeBroker{}
	l := execution.NewLive(b, execution.LiveConfig{PosMode: "long_short"}, nil)
	require.NoError(t, l.Prepare(context.Background(), []models.Instrument{
		{Symbol: "BTC/USDT:USDT", QtyStep: 0.0001, CtVal: 0.01},
	}, 5))
	assert.Equal(t, 5, b.leverage["BTC-USDT-SWAP"])

	f, err := l.Open(context.Background(), "BTC/USDT:USDT", models.SideShort, 0.0003)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", f.OrderID)

	require.Len(t, b.orders, 1)
	o := b.orders[0]
	assert.Equal(t, "BTC-USDT-SWAP", o.InstID)
	assert.Equal(t, "sell", o.Side)
	assert.Equal(t, "short", o.PosSide)
	assert.InDelta(t, 0.03, o.Sz, 1e-12)
	assert.False(t, o.ReduceOnly)
	assert.Len(t, o.ClOrdID, 32)

	_, err = l.Close(context.Background(), "BTC/USDT:USDT", models.SideShort, 0.0003)
	require.NoError(t, err)
	assert.Equal(t, "buy", b.orders[1].Side)
	assert.True(t, b.orders[1].ReduceOnly)
}

func TestLiveWrapsBrokerErrors(t *testing.T) {
	b := &fakeBroker{err: errors.New("51008 insufficient balance")}
	l := execution.NewLive(b, execution.LiveConfig{}, nil)
	require.NoError(t, l.Prepare(context.Background(), []models.Instrument{{Symbol: "ETH/USDT", QtyStep: 0.001, CtVal: 1}}, 0))

	_, err := l.Open(context.Background(), "ETH/USDT", models.SideLong, 0.01)
	var ee *execution.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.SideLong, ee.Side)

	_, err = l.Open(context.Background(), "UNKNOWN", models.SideLong, 1)
	require.True(t, errors.As(err, &ee))
}
