package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"tier_bot/internal/helper"
	"tier_bot/internal/models"
)

// maxCandlesLimit лимит OKX на /market/candles.
const maxCandlesLimit = 300

// GetCloses закрытия свечей от старых к новым. Последняя может быть ещё не закрыта.
// Строка OKX: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm], newest-first.
func (c *Client) GetCloses(ctx context.Context, instID, timeframe string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxCandlesLimit {
		limit = maxCandlesLimit
	}
	bar, err := helper.OKXBar(timeframe)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/v5/market/candles?instId=%s&bar=%s&limit=%d",
		url.QueryEscape(instID), url.QueryEscape(bar), limit)
	rows, err := do[[]string](ctx, c, http.MethodGet, path, nil, false)
	if err != nil {
		return nil, err
	}

	// разворачиваем: OKX отдаёт newest-first
	out := make([]float64, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		// битая строка: ошибка, а не пропуск (дыра в ряду ломает RSI)
		if len(row) < 5 {
			return nil, errors.Errorf("candles %s: row %d has %d fields", instID, i, len(row))
		}
		closep, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "candles %s: row %d close %q", instID, i, row[4])
		}
		if closep <= 0 {
			return nil, errors.Errorf("candles %s: row %d close %g <= 0", instID, i, closep)
		}
		out = append(out, closep)
	}
	return out, nil
}

type ticker struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	TS     string `json:"ts"`
}

// GetLastPrice последняя сделка по инструменту.
func (c *Client) GetLastPrice(ctx context.Context, instID string) (float64, error) {
	rows, err := do[ticker](ctx, c, http.MethodGet, "/api/v5/market/ticker?instId="+url.QueryEscape(instID), nil, false)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("ticker %s: empty data", instID)
	}
	px, err := strconv.ParseFloat(rows[0].Last, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "ticker %s last %q", instID, rows[0].Last)
	}
	if px <= 0 {
		return 0, fmt.Errorf("ticker %s: last <= 0", instID)
	}
	return px, nil
}

type instrumentRow struct {
	InstID string `json:"instId"`
	TickSz string `json:"tickSz"`
	LotSz  string `json:"lotSz"`
	MinSz  string `json:"minSz"`
	CtVal  string `json:"ctVal"`
	CtMult string `json:"ctMult"`
	State  string `json:"state"`
}

func instType(instID string) string {
	if strings.HasSuffix(instID, "-SWAP") {
		return "SWAP"
	}
	return "SPOT"
}

// GetInstrument метаданные инструмента. Для SWAP шаг и минимум переводятся в базовую валюту через ctVal.
func (c *Client) GetInstrument(ctx context.Context, symbol string) (models.Instrument, error) {
	instID := helper.OKXInstID(symbol)
	path := fmt.Sprintf("/api/v5/public/instruments?instType=%s&instId=%s", instType(instID), url.QueryEscape(instID))

	rows, err := do[instrumentRow](ctx, c, http.MethodGet, path, nil, false)
	if err != nil {
		return models.Instrument{}, err
	}
	if len(rows) == 0 {
		return models.Instrument{}, fmt.Errorf("instrument %s not found", instID)
	}
	inst := rows[0]
	if inst.State != "" && inst.State != "live" {
		return models.Instrument{}, fmt.Errorf("instrument %s not live: state=%s", instID, inst.State)
	}

	parsePos := func(name, s string) (float64, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("%s %s parse: %v (%q)", instID, name, err, s)
		}
		return v, nil
	}

	lotSz, err := parsePos("lotSz", inst.LotSz)
	if err != nil {
		return models.Instrument{}, err
	}
	minSz, err := parsePos("minSz", inst.MinSz)
	if err != nil {
		return models.Instrument{}, err
	}
	tickSz, err := parsePos("tickSz", inst.TickSz)
	if err != nil {
		return models.Instrument{}, err
	}

	// SPOT: ctVal пустой, количество уже в базовой валюте
	ctVal := 1.0
	if inst.CtVal != "" {
		if ctVal, err = parsePos("ctVal", inst.CtVal); err != nil {
			return models.Instrument{}, err
		}
		if v, e := strconv.ParseFloat(inst.CtMult, 64); e == nil && v > 0 {
			ctVal *= v
		}
	}

	return models.Instrument{
		Symbol:   symbol,
		QtyStep:  lotSz * ctVal,
		MinQty:   minSz * ctVal,
		TickSize: tickSz,
		CtVal:    ctVal,
	}, nil
}
