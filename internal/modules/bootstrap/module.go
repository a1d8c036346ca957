package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	bootstrap "tier_bot/internal/modules/bootstrap/service"
	"tier_bot/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			bootstrap.NewWarmuper,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, wu *bootstrap.Warmuper, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					rep := wu.Warmup(ctx, cfg.Engine.Symbols, cfg.Engine.Timeframe, cfg.Engine.History, cfg.Signal.Period+1)
					log.Info("warmup done",
						zap.Int("ready", len(rep.Ready)),
						zap.Int("missing", len(rep.Missing)),
					)
					return nil
				},
			})
		}),
	)
}
