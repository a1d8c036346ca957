package config

import (
	"go.uber.org/fx"

	"tier_bot/internal/strategy"
)

// Module конфиг и производные от него параметры детектора.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
			func(c *Config) strategy.Config { return c.Strategy() },
		),
	)
}
