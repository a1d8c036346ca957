package exchange

import (
	"context"
	"time"

	"tier_bot/internal/helper"
)

// Feed PriceFeed поверх OKX REST с опциональным WS кешем.
type Feed struct {
	client *Client
	cache  *PriceCache
	maxAge time.Duration
}

// NewFeed cache может быть nil, тогда LatestClose всегда ходит в REST.
func NewFeed(client *Client, cache *PriceCache, maxAge time.Duration) *Feed {
	return &Feed{client: client, cache: cache, maxAge: maxAge}
}

// RecentCloses count последних закрытий от старых к новым.
func (f *Feed) RecentCloses(ctx context.Context, symbol, timeframe string, count int) ([]float64, error) {
	closes, err := f.client.GetCloses(ctx, helper.OKXInstID(symbol), timeframe, count)
	if err != nil {
		return nil, &FeedError{Symbol: symbol, Op: "recent closes", Err: err}
	}
	if len(closes) == 0 {
		return nil, &FeedError{Symbol: symbol, Op: "recent closes", Err: errEmpty}
	}
	return closes, nil
}

// LatestClose свежая цена из WS кеша, иначе last из REST тикера.
func (f *Feed) LatestClose(ctx context.Context, symbol, _ string) (float64, error) {
	instID := helper.OKXInstID(symbol)
	if f.cache != nil {
		if px, ok := f.cache.Get(instID, f.maxAge, f.client.now()); ok {
			return px, nil
		}
	}
	px, err := f.client.GetLastPrice(ctx, instID)
	if err != nil {
		return 0, &FeedError{Symbol: symbol, Op: "latest close", Err: err}
	}
	return px, nil
}
