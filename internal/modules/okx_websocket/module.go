package okx_websocket

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"tier_bot/internal/exchange"
	"tier_bot/internal/helper"
	bootstrap "tier_bot/internal/modules/bootstrap/service"
	"tier_bot/internal/modules/config"
	"tier_bot/internal/modules/health/service"
	"tier_bot/internal/runner"
)

// NewPriceCache nil, если WS выключен: тогда LatestClose всегда через REST.
func NewPriceCache(cfg *config.Config) *exchange.PriceCache {
	if !cfg.Exchange.WSEnabled {
		return nil
	}
	return exchange.NewPriceCache()
}

func NewFeed(cfg *config.Config, client *exchange.Client, cache *exchange.PriceCache) *exchange.Feed {
	return exchange.NewFeed(client, cache, cfg.Exchange.PriceMaxAge)
}

func runStream(lc fx.Lifecycle, cfg *config.Config, client *exchange.Client, cache *exchange.PriceCache, state *service.State, log *zap.Logger) {
	if cache == nil {
		log.Info("ticker websocket disabled")
		return
	}
	instIDs := make([]string, 0, len(cfg.Engine.Symbols))
	for _, s := range cfg.Engine.Symbols {
		instIDs = append(instIDs, helper.OKXInstID(s))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				client.StreamTickers(ctx, instIDs, cache, state.SetWSConnected)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

// Module фид цен: REST свечи + WS тикеры в кеш.
func Module() fx.Option {
	return fx.Module("okx_websocket",
		fx.Provide(
			NewPriceCache,
			NewFeed,
			func(f *exchange.Feed) runner.PriceFeed { return f },
			func(f *exchange.Feed) bootstrap.CloseSource { return f },
		),
		fx.Invoke(runStream),
	)
}
