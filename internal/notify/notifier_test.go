package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tier_bot/internal/models"
	"tier_bot/internal/position"
)

type sent struct {
	chatID    string
	parseMode string
	text      string
}

func newFakeBot(t *testing.T) (*tgbot.BotAPI, func() []sent) {
	t.Helper()
	var (
		mu  sync.Mutex
		out []sent
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"tier_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			mu.Lock()
			out = append(out, sent{chatID: r.Form.Get("chat_id"), parseMode: r.Form.Get("parse_mode"), text: r.Form.Get("text")})
			mu.Unlock()
			_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":%s,"type":"private"}}}`, r.Form.Get("chat_id"))
		default:
			_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
		}
	}))
	t.Cleanup(srv.Close)

	bot, err := tgbot.NewBotAPIWithClient("TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	return bot, func() []sent {
		mu.Lock()
		defer mu.Unlock()
		return append([]sent(nil), out...)
	}
}

type fakeStatus struct{ ps []position.Position }

func (f fakeStatus) Snapshot() []position.Position      { return f.ps }
func (f fakeStatus) Totals() models.Totals              { return models.Totals{Trades: 3, Wins: 2, Losses: 1, Net: 0.4} }
func (f fakeStatus) Window() (models.Totals, time.Time) { return models.Totals{}, time.Unix(0, 0) }
func (f fakeStatus) Capital() float64                   { return 20.4 }

func TestTelegramNotifiesAllowedChats(t *testing.T) {
	bot, sentMsgs := newFakeBot(t)
	tg := NewTelegram(bot, []int64{11, 22}, fakeStatus{}, fakeStatus{}, zap.NewNop())

	err := tg.Notify(context.Background(), models.PositionOpened{Symbol: "BTC", Tier: models.TierModerate, Side: models.SideLong})
	require.NoError(t, err)

	msgs := sentMsgs()
	require.Len(t, msgs, 2)
	assert.Equal(t, "11", msgs[0].chatID)
	assert.Equal(t, "22", msgs[1].chatID)
	assert.Equal(t, tgbot.ModeHTML, msgs[0].parseMode)
	assert.Contains(t, msgs[0].text, "BTC")
}

func TestTelegramCommands(t *testing.T) {
	bot, sentMsgs := newFakeBot(t)
	tg := NewTelegram(bot, []int64{11}, fakeStatus{}, fakeStatus{}, zap.NewNop())

	cmd := func(chatID int64, text string) tgbot.Update {
		return tgbot.Update{Message: &tgbot.Message{
			Text:     text,
			Chat:     &tgbot.Chat{ID: chatID},
			Entities: []tgbot.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		}}
	}

	tg.handle(cmd(99, "/pnl"))
	assert.Empty(t, sentMsgs())

	tg.handle(cmd(11, "/pnl"))
	tg.handle(cmd(11, "/positions"))
	tg.handle(cmd(11, "/unknown"))

	msgs := sentMsgs()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].text, "3 trades (2 W / 1 L")
	assert.Contains(t, msgs[0].text, "20.40")
	assert.Contains(t, msgs[1].text, "No open positions")
}

type failingSink struct{}

func (failingSink) Notify(context.Context, models.Event) error { return errors.New("down") }

func TestMultiAndLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := Multi{NewLog(zap.New(core)), failingSink{}}

	err := m.Notify(context.Background(), models.PositionClosed{Symbol: "ETH", Reason: models.ReasonTimeout, PnL: -0.1})
	require.Error(t, err)

	entries := logs.FilterMessage("position closed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "TIMEOUT", entries[0].ContextMap()["reason"])
}
