package runner

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"tier_bot/internal/execution"
	"tier_bot/internal/journal"
	"tier_bot/internal/modules/config"
	"tier_bot/internal/modules/health/service"
	"tier_bot/internal/notify"
	"tier_bot/internal/pnl"
	"tier_bot/internal/position"
	"tier_bot/internal/risk"
	"tier_bot/internal/strategy"
)

type Params struct {
	fx.In

	Config     *config.Config
	Feed       PriceFeed
	Executor   execution.OrderExecutor
	Sink       notify.Sink
	Journal    journal.Journal
	Detector   *strategy.Detector
	Governor   *risk.Governor
	Book       *position.Book
	Accountant *pnl.Accountant
	State      *service.State
	Log        *zap.Logger
}

func NewRunner(p Params) *Runner {
	return New(Deps{
		Config:     p.Config,
		Feed:       p.Feed,
		Executor:   p.Executor,
		Sink:       p.Sink,
		Journal:    p.Journal,
		Detector:   p.Detector,
		Governor:   p.Governor,
		Book:       p.Book,
		Accountant: p.Accountant,
		State:      p.State,
		Log:        p.Log.Named("runner"),
	})
}

func NewGovernor(cfg *config.Config) *risk.Governor {
	return risk.NewGovernor(cfg.Cooldown.Signal, cfg.Cooldown.Loss, cfg.LossScope())
}

func NewAccountant(cfg *config.Config) *pnl.Accountant {
	return pnl.NewAccountant(cfg.Engine.InitialCapital, cfg.Engine.SummaryInterval, time.Now())
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			strategy.NewDetector,
			NewGovernor,
			NewAccountant,
			position.NewBook,
			NewRunner,
		),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner, src InstrumentSource, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					insts, err := r.LoadInstruments(ctx, src)
					if err != nil {
						return err
					}
					log.Info("instruments loaded", zap.Int("count", len(insts)))
					r.Start(context.Background())
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return r.Stop(ctx)
				},
			})
		}),
	)
}
