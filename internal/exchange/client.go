package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://www.okx.com"
	defaultWSURL   = "wss://ws.okx.com:8443/ws/v5/public"
)

type Config struct {
	BaseURL    string
	WSURL      string
	APIKey     string
	APISecret  string
	Passphrase string
	Simulated  bool // demo trading, заголовок x-simulated-trading
	Timeout    time.Duration
}

// Client REST + WS клиент OKX v5.
type Client struct {
	cfg      Config
	http     *http.Client
	wsDialer *websocket.Dialer
	log      *zap.Logger
	now      func() time.Time
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.WSURL == "" {
		cfg.WSURL = defaultWSURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		wsDialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		log:      log,
		now:      time.Now,
	}
}

func (c *Client) HasCredentials() bool {
	return c.cfg.APIKey != "" && c.cfg.APISecret != "" && c.cfg.Passphrase != ""
}

// envelope общий ответ OKX: {"code":"0","msg":"","data":[...]}
type envelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

func (c *Client) sign(ts, method, requestPath, body string) string {
	h := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	h.Write([]byte(ts + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *Client) newRequest(ctx context.Context, method, requestPath string, payload any, private bool) (*http.Request, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = sonic.Marshal(payload); err != nil {
			return nil, errors.Wrap(err, "marshal body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+requestPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Simulated {
		req.Header.Set("x-simulated-trading", "1")
	}
	if private {
		ts := c.now().UTC().Format("2006-01-02T15:04:05.000Z")
		req.Header.Set("OK-ACCESS-KEY", c.cfg.APIKey)
		req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, requestPath, string(body)))
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase)
	}
	return req, nil
}

// do выполняет запрос и декодирует envelope в out.
func do[T any](ctx context.Context, c *Client, method, requestPath string, payload any, private bool) ([]T, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "okx "+method+" "+strings.SplitN(requestPath, "?", 2)[0])
	defer span.Finish()

	req, err := c.newRequest(ctx, method, requestPath, payload, private)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		ext.LogError(span, err)
		return nil, errors.Wrapf(err, "%s %s", method, requestPath)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	ext.HTTPStatusCode.Set(span, uint16(resp.StatusCode))
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s %s: http %d: %s", method, requestPath, resp.StatusCode, string(b))
	}

	var env envelope[T]
	if err := sonic.Unmarshal(b, &env); err != nil {
		return nil, errors.Wrapf(err, "decode %s", requestPath)
	}
	if env.Code != "0" {
		return env.Data, fmt.Errorf("okx error %s: code=%s msg=%s", requestPath, env.Code, env.Msg)
	}
	return env.Data, nil
}
