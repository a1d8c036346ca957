package telegram

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"tier_bot/internal/modules/config"
	"tier_bot/internal/notify"
	"tier_bot/internal/pnl"
	"tier_bot/internal/position"
)

// NewSink события всегда пишутся в лог, в Telegram только если задан токен.
func NewSink(lc fx.Lifecycle, cfg *config.Config, book *position.Book, acct *pnl.Accountant, log *zap.Logger) (notify.Sink, error) {
	logSink := notify.NewLog(log.Named("events"))
	if cfg.Telegram.Token == "" {
		log.Info("telegram token is empty, events go to log only")
		return logSink, nil
	}

	bot, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	if len(cfg.Telegram.AllowedIDs) == 0 {
		log.Warn("telegram allowed_ids is empty, notifications will not be delivered")
	}
	log.Info("telegram authorized", zap.String("bot", bot.Self.UserName))

	t := notify.NewTelegram(bot, cfg.Telegram.AllowedIDs, book, acct, log.Named("telegram"))

	// Запуск long-polling команд через Lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			t.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			t.Stop()
			return nil
		},
	})
	return notify.Multi{logSink, t}, nil
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewSink,
		),
	)
}
