package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"tier_bot/internal/journal"
	"tier_bot/internal/modules/config"
	"tier_bot/pkg/db"
)

const connectTimeout = 10 * time.Second

// NewJournal журнал сделок в Postgres, если задан db_dsn, иначе no-op.
func NewJournal(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (journal.Journal, error) {
	if cfg.DB == "" {
		log.Info("db_dsn is empty, trade journal disabled")
		return journal.Noop{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN:      cfg.DB,
		MaxConns: 4,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}

	err = poolMaster.Ping(ctx)
	if err != nil {
		poolMaster.Close()
		return nil, err
	}

	tm := db.NewPgTxManager(poolMaster)
	j := journal.NewPG(tm.Conn(), tm)
	if err := j.Migrate(ctx); err != nil {
		tm.Close()
		return nil, fmt.Errorf("failed to migrate trade journal: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			tm.Close()
			return nil
		},
	})
	return j, nil
}

// Module журнал сделок как fx-провайдер.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			NewJournal,
		),
	)
}
