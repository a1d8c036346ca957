package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:    srv.URL,
		WSURL:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:     "key",
		APISecret:  "secret",
		Passphrase: "pass",
	}, zap.NewNop())
}

func TestGetClosesReversesNewestFirst(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/candles", r.URL.Path)
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		assert.Equal(t, "1m", r.URL.Query().Get("bar"))
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[
			["3","0","0","0","103","0","0","0","0"],
			["2","0","0","0","102","0","0","0","1"],
			["1","0","0","0","101","0","0","0","1"]]}`)
	})

	closes, err := c.GetCloses(context.Background(), "BTC-USDT-SWAP", "1m", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 102, 103}, closes)
}

func TestGetClosesRejectsMalformedRows(t *testing.T) {
	cases := map[string]string{
		"short row":  `["2","0","0","0"]`,
		"bad close":  `["2","0","0","0","n/a","0","0","0","1"]`,
		"zero close": `["2","0","0","0","0","0","0","0","1"]`,
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[
					["3","0","0","0","103","0","0","0","0"],
					`+bad+`,
					["1","0","0","0","101","0","0","0","1"]]}`)
			})
			f := NewFeed(c, nil, 0)

			_, err := f.RecentCloses(context.Background(), "BTC/USDT:USDT", "1m", 3)
			require.Error(t, err)
			var fe *FeedError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "recent closes", fe.Op)
		})
	}
}

func TestFeedWrapsErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"51001","msg":"Instrument ID does not exist","data":[]}`)
	})
	f := NewFeed(c, nil, 0)

	_, err := f.RecentCloses(context.Background(), "NOPE/USDT:USDT", "1m", 10)
	require.Error(t, err)
	var fe *FeedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "NOPE/USDT:USDT", fe.Symbol)

	_, err = f.LatestClose(context.Background(), "NOPE/USDT:USDT", "1m")
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "latest close", fe.Op)
}

func TestFeedPrefersFreshCache(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"instId":"ETH-USDT-SWAP","last":"2500.5","ts":"1"}]}`)
	})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	cache := NewPriceCache()
	f := NewFeed(c, cache, 10*time.Second)

	cache.Set("ETH-USDT-SWAP", 2490, now.Add(-5*time.Second))
	px, err := f.LatestClose(context.Background(), "ETH/USDT:USDT", "1m")
	require.NoError(t, err)
	assert.Equal(t, 2490.0, px)
	assert.Equal(t, 0, calls)

	cache.Set("ETH-USDT-SWAP", 2490, now.Add(-time.Minute))
	px, err = f.LatestClose(context.Background(), "ETH/USDT:USDT", "1m")
	require.NoError(t, err)
	assert.Equal(t, 2500.5, px)
	assert.Equal(t, 1, calls)
}

func TestGetInstrumentSwapInBaseUnits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SWAP", r.URL.Query().Get("instType"))
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"instId":"BTC-USDT-SWAP","tickSz":"0.1","lotSz":"0.01","minSz":"0.01","ctVal":"0.01","ctMult":"1","state":"live"}]}`)
	})

	inst, err := c.GetInstrument(context.Background(), "BTC/USDT:USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT:USDT", inst.Symbol)
	assert.InDelta(t, 0.0001, inst.QtyStep, 1e-15)
	assert.InDelta(t, 0.0001, inst.MinQty, 1e-15)
	assert.Equal(t, 0.1, inst.TickSize)
	assert.Equal(t, 0.01, inst.CtVal)
}

func TestGetInstrumentRejectsSuspended(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"instId":"X-USDT","tickSz":"0.1","lotSz":"1","minSz":"1","state":"suspend"}]}`)
	})

	_, err := c.GetInstrument(context.Background(), "X/USDT")
	require.Error(t, err)
}

func TestPlaceMarketSignsAndParses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key", r.Header.Get("OK-ACCESS-KEY"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-SIGN"))
		assert.Equal(t, "pass", r.Header.Get("OK-ACCESS-PASSPHRASE"))

		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(raw, &body))
		assert.Equal(t, "sell", body["side"])
		assert.Equal(t, "0.5", body["sz"])
		assert.Equal(t, true, body["reduceOnly"])

		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"ordId":"123","clOrdId":"abc","sCode":"0","sMsg":""}]}`)
	})

	id, err := c.PlaceMarket(context.Background(), MarketOrder{
		InstID: "BTC-USDT-SWAP", Side: "sell", Sz: 0.5, TdMode: "cross", ReduceOnly: true, ClOrdID: "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "123", id)
}

func TestPlaceMarketRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"1","msg":"All operations failed","data":[{"ordId":"","sCode":"51008","sMsg":"Insufficient balance"}]}`)
	})

	_, err := c.PlaceMarket(context.Background(), MarketOrder{InstID: "BTC-USDT-SWAP", Side: "buy", Sz: 1, TdMode: "cross"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "51008")
}

func TestSignMatchesOKXScheme(t *testing.T) {
	c := NewClient(Config{APISecret: "secret"}, nil)
	a := c.sign("2020-12-08T09:08:57.715Z", "get", "/api/v5/account/balance", "")
	b := c.sign("2020-12-08T09:08:57.715Z", "GET", "/api/v5/account/balance", "")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c.sign("2020-12-08T09:08:57.716Z", "GET", "/api/v5/account/balance", ""))
}

func TestStreamTickersFillsCache(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, _, err = conn.ReadMessage() // subscribe
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","last":"64000.1","ts":"1700000000000"}]}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := NewPriceCache()
	connected := make(chan bool, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.StreamTickers(ctx, []string{"BTC-USDT-SWAP"}, cache, func(v bool) { connected <- v })
	}()

	require.Eventually(t, func() bool {
		_, ok := cache.Get("BTC-USDT-SWAP", 100*365*24*time.Hour, time.Now())
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	px, _ := cache.Get("BTC-USDT-SWAP", 100*365*24*time.Hour, time.Now())
	assert.Equal(t, 64000.1, px)
	assert.True(t, <-connected)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop")
	}
}
