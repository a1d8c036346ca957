package exchange

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsPingEvery = 20 * time.Second

type cachedPrice struct {
	px float64
	at time.Time
}

// PriceCache последние цены из WS tickers.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]cachedPrice
}

func NewPriceCache() *PriceCache {
	return &PriceCache{prices: map[string]cachedPrice{}}
}

func (p *PriceCache) Set(instID string, px float64, at time.Time) {
	p.mu.Lock()
	p.prices[instID] = cachedPrice{px: px, at: at}
	p.mu.Unlock()
}

// Get цена, если она не старше maxAge.
func (p *PriceCache) Get(instID string, maxAge time.Duration, now time.Time) (float64, bool) {
	p.mu.RLock()
	c, ok := p.prices[instID]
	p.mu.RUnlock()
	if !ok || now.Sub(c.at) > maxAge {
		return 0, false
	}
	return c.px, true
}

type tickerFrame struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []ticker `json:"data"`
}

// StreamTickers один WebSocket на все инструменты, канал tickers. Пишет в cache до отмены ctx.
// onState сообщает о подключении/отключении.
func (c *Client) StreamTickers(ctx context.Context, instIDs []string, cache *PriceCache, onState func(connected bool)) {
	if len(instIDs) == 0 {
		return
	}
	if onState == nil {
		onState = func(bool) {}
	}

	args := make([]map[string]string, 0, len(instIDs))
	for _, id := range instIDs {
		args = append(args, map[string]string{"channel": "tickers", "instId": id})
	}

	for {
		if ctx.Err() != nil {
			return
		}
		c.log.Info("ws connect", zap.String("channel", "tickers"), zap.Int("symbols", len(instIDs)))
		conn, _, err := c.wsDialer.DialContext(ctx, c.cfg.WSURL, nil)
		if err != nil {
			c.log.Warn("ws dial error", zap.Error(err))
			sleepCtx(ctx, time.Second)
			continue
		}

		if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": args}); err != nil {
			c.log.Warn("ws subscribe error", zap.Error(err))
			_ = conn.Close()
			sleepCtx(ctx, time.Second)
			continue
		}
		onState(true)

		// keepalive ping каждые 20s, иначе OKX рвёт соединение
		var writeMu sync.Mutex
		stopPing := make(chan struct{})
		go func() {
			t := time.NewTicker(wsPingEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					_ = conn.Close()
					return
				case <-stopPing:
					return
				case <-t.C:
					writeMu.Lock()
					_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
					writeMu.Unlock()
				}
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Warn("ws read error", zap.Error(err))
				}
				break
			}
			if string(msg) == "pong" {
				continue
			}

			var frame tickerFrame
			if err := sonic.Unmarshal(msg, &frame); err != nil || frame.Arg.Channel != "tickers" {
				continue
			}
			for _, d := range frame.Data {
				px, err := strconv.ParseFloat(d.Last, 64)
				if err != nil || px <= 0 {
					continue
				}
				at := c.now()
				if ms, err := strconv.ParseInt(d.TS, 10, 64); err == nil {
					at = time.UnixMilli(ms)
				}
				cache.Set(d.InstID, px, at)
			}
		}

		close(stopPing)
		_ = conn.Close()
		onState(false)
		sleepCtx(ctx, time.Second)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
