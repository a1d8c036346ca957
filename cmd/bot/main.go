package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"tier_bot/internal/modules/bootstrap"
	"tier_bot/internal/modules/config"
	"tier_bot/internal/modules/health"
	"tier_bot/internal/modules/okx_client"
	"tier_bot/internal/modules/okx_websocket"
	"tier_bot/internal/modules/postgres"
	telegram "tier_bot/internal/modules/telegram_bot"
	"tier_bot/internal/runner"
	"tier_bot/pkg/logger"
	"tier_bot/pkg/tracing"
)

const serviceName = "tier_bot"

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	l, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() { _ = l.Sync() }))
	return l, nil
}

func initTracing(lc fx.Lifecycle, cfg *config.Config, l *zap.Logger) error {
	_, closeFn, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return err
	}
	if cfg.Tracing.Enabled() {
		l.Info("jaeger tracing enabled", zap.String("host", cfg.Tracing.Host), zap.Int("port", cfg.Tracing.Port))
	}
	lc.Append(fx.StopHook(closeFn))
	return nil
}

func main() {
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	app := fx.New(
		config.Module(),
		fx.Provide(newLogger),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(initTracing),
		health.Module(),
		postgres.Module(),
		okx_client.Module(),
		okx_websocket.Module(),
		telegram.Module(),
		bootstrap.Module(),
		runner.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
