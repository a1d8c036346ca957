package okx_client

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"tier_bot/internal/exchange"
	"tier_bot/internal/execution"
	"tier_bot/internal/modules/config"
	"tier_bot/internal/runner"
)

func NewClient(cfg *config.Config, log *zap.Logger) *exchange.Client {
	return exchange.NewClient(exchange.Config{
		BaseURL:    cfg.Exchange.BaseURL,
		WSURL:      cfg.Exchange.WSURL,
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		Passphrase: cfg.Exchange.Passphrase,
		Simulated:  cfg.Exchange.Simulated,
		Timeout:    cfg.Exchange.Timeout,
	}, log.Named("okx"))
}

// NewExecutor live только при exchange.live и наличии ключей, иначе paper.
func NewExecutor(cfg *config.Config, client *exchange.Client, log *zap.Logger) execution.OrderExecutor {
	if cfg.Exchange.Live {
		if client.HasCredentials() {
			log.Info("execution mode: LIVE")
			return execution.NewLive(client, execution.LiveConfig{
				TdMode:  cfg.Exchange.TdMode,
				PosMode: cfg.Exchange.PosMode,
			}, log.Named("live"))
		}
		log.Warn("live requested without api credentials, falling back to paper")
		cfg.Exchange.Live = false
	}
	log.Info("execution mode: PAPER")
	return execution.NewSimulated(log.Named("paper"))
}

// Module REST клиент OKX и исполнитель ордеров.
func Module() fx.Option {
	return fx.Module("okx_client",
		fx.Provide(
			NewClient,
			NewExecutor,
			func(c *exchange.Client) runner.InstrumentSource { return c },
		),
	)
}
