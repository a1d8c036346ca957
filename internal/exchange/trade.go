package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// MarketOrder рыночный ордер. Sz в контрактах (SWAP) или базовой валюте (SPOT).
type MarketOrder struct {
	InstID     string
	Side       string // buy / sell
	PosSide    string // long / short, пусто в net режиме
	Sz         float64
	TdMode     string // cross / isolated / cash
	ReduceOnly bool
	ClOrdID    string
}

type orderAck struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

func formatSize(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// PlaceMarket отправляет рыночный ордер, возвращает ordId.
func (c *Client) PlaceMarket(ctx context.Context, o MarketOrder) (string, error) {
	if o.Sz <= 0 {
		return "", fmt.Errorf("PlaceMarket %s: sz <= 0", o.InstID)
	}
	body := map[string]any{
		"instId":  o.InstID,
		"tdMode":  o.TdMode,
		"side":    o.Side,
		"ordType": "market",
		"sz":      formatSize(o.Sz),
	}
	if o.PosSide != "" {
		body["posSide"] = o.PosSide
	}
	if o.ReduceOnly {
		body["reduceOnly"] = true
	}
	if o.ClOrdID != "" {
		body["clOrdId"] = o.ClOrdID
	}

	acks, err := do[orderAck](ctx, c, http.MethodPost, "/api/v5/trade/order", body, true)
	if len(acks) > 0 && acks[0].SCode != "0" {
		return "", fmt.Errorf("PlaceMarket %s rejected: sCode=%s sMsg=%s", o.InstID, acks[0].SCode, acks[0].SMsg)
	}
	if err != nil {
		return "", err
	}
	if len(acks) == 0 {
		return "", fmt.Errorf("PlaceMarket %s: empty data", o.InstID)
	}
	return acks[0].OrdID, nil
}

// SetLeverage плечо на инструмент.
func (c *Client) SetLeverage(ctx context.Context, instID string, lever int, mgnMode string) error {
	body := map[string]any{
		"instId":  instID,
		"lever":   strconv.Itoa(lever),
		"mgnMode": mgnMode,
	}
	_, err := do[map[string]any](ctx, c, http.MethodPost, "/api/v5/account/set-leverage", body, true)
	return err
}
