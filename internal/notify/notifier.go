package notify

import (
	"context"
	"errors"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tier_bot/internal/models"
	"tier_bot/internal/position"
)

// Sink получает структурированные события движка.
type Sink interface {
	Notify(ctx context.Context, ev models.Event) error
}

type PositionLister interface {
	Snapshot() []position.Position
}

type PnLReader interface {
	Totals() models.Totals
	Window() (models.Totals, time.Time)
	Capital() float64
}

// Telegram шлёт события в разрешённые чаты и отвечает на /positions и /pnl.
type Telegram struct {
	bot     *tgbot.BotAPI
	allowed map[int64]struct{}
	chats   []int64
	log     *zap.Logger

	positions PositionLister
	pnl       PnLReader
}

func NewTelegram(bot *tgbot.BotAPI, chatIDs []int64, positions PositionLister, pnl PnLReader, log *zap.Logger) *Telegram {
	allowed := make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = struct{}{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{
		bot:       bot,
		allowed:   allowed,
		chats:     chatIDs,
		log:       log,
		positions: positions,
		pnl:       pnl,
	}
}

func (t *Telegram) send(chatID int64, text string) error {
	msg := tgbot.NewMessage(chatID, text)
	msg.ParseMode = tgbot.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func (t *Telegram) Notify(_ context.Context, ev models.Event) error {
	text := Format(ev)
	var errs []error
	for _, id := range t.chats {
		if err := t.send(id, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start long-polling команд до отмены ctx.
func (t *Telegram) Start(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				t.handle(upd)
			}
		}
	}()
}

func (t *Telegram) Stop() { t.bot.StopReceivingUpdates() }

func (t *Telegram) handle(upd tgbot.Update) {
	m := upd.Message
	if m == nil || m.Chat == nil || !m.IsCommand() {
		return
	}
	if _, ok := t.allowed[m.Chat.ID]; !ok {
		t.log.Warn("telegram command from unknown chat", zap.Int64("chat", m.Chat.ID))
		return
	}

	var reply string
	switch m.Command() {
	case "positions":
		reply = FormatPositions(t.positions.Snapshot())
	case "pnl":
		w, start := t.pnl.Window()
		reply = FormatPnL(t.pnl.Totals(), w, start, t.pnl.Capital())
	case "start", "help":
		reply = "/positions: open positions\n/pnl: realized PnL"
	default:
		return
	}
	if err := t.send(m.Chat.ID, reply); err != nil {
		t.log.Error("telegram reply failed", zap.Error(err))
	}
}

// Log пишет события в zap, используется без токена Telegram.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

func (l *Log) Notify(_ context.Context, ev models.Event) error {
	switch e := ev.(type) {
	case models.PositionOpened:
		l.log.Info("position opened",
			zap.String("symbol", e.Symbol), zap.String("tier", string(e.Tier)), zap.String("side", string(e.Side)),
			zap.Float64("qty", e.Qty), zap.Float64("entry", e.Entry), zap.Float64("tp", e.TP), zap.Float64("sl", e.SL))
	case models.PositionPartiallyClosed:
		l.log.Info("position partially closed",
			zap.String("symbol", e.Symbol), zap.String("tier", string(e.Tier)),
			zap.Float64("qty", e.Qty), zap.Float64("price", e.Price), zap.Float64("remaining", e.RemainingQty),
			zap.Float64("gross", e.Gross))
	case models.PositionClosed:
		l.log.Info("position closed",
			zap.String("symbol", e.Symbol), zap.String("tier", string(e.Tier)), zap.String("side", string(e.Side)),
			zap.String("reason", string(e.Reason)), zap.Float64("gross", e.Gross), zap.Float64("fees", e.Fees),
			zap.Float64("pnl", e.PnL), zap.Int64("durationSec", e.DurationSec), zap.Bool("executionFailed", e.ExecutionFailed))
	case models.PeriodicSummary:
		l.log.Info("periodic summary",
			zap.Int("windowTrades", e.Window.Trades), zap.Float64("windowPnl", e.Window.Net),
			zap.Int("trades", e.Totals.Trades), zap.Float64("pnl", e.Totals.Net), zap.Float64("capital", e.Capital))
	case models.EngineStarted:
		l.log.Info("engine started",
			zap.Bool("live", e.Live), zap.Strings("symbols", e.Symbols), zap.String("timeframe", e.Timeframe))
	}
	return nil
}

// Multi рассылает событие во все sink'и.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, ev models.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
