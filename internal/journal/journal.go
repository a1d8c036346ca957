package journal

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tier_bot/internal/position"
)

// Journal журнал сделок. Ошибки журнала не влияют на состояние позиций.
type Journal interface {
	RecordOpen(ctx context.Context, p position.Position) error
	RecordPartial(ctx context.Context, p position.Position, part position.Partial) error
	RecordClose(ctx context.Context, out position.Outcome, executionFailed bool) error
}

// Noop когда db_dsn не задан.
type Noop struct{}

func (Noop) RecordOpen(context.Context, position.Position) error { return nil }
func (Noop) RecordPartial(context.Context, position.Position, position.Partial) error { return nil }
func (Noop) RecordClose(context.Context, position.Outcome, bool) error { return nil }

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type txRunner interface {
	RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx pgx.Tx) error) error
}

// PG журнал в Postgres.
type PG struct {
	conn execer
	tx   txRunner
}

func NewPG(conn execer, tx txRunner) *PG {
	return &PG{conn: conn, tx: tx}
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	symbol      TEXT        NOT NULL,
	tier        TEXT        NOT NULL,
	side        TEXT        NOT NULL,
	opened_at   TIMESTAMPTZ NOT NULL,
	qty         NUMERIC     NOT NULL,
	entry       NUMERIC     NOT NULL,
	take_profit NUMERIC     NOT NULL,
	stop_loss   NUMERIC     NOT NULL,
	status      TEXT        NOT NULL,
	reason      TEXT,
	exit_price  NUMERIC,
	gross       NUMERIC,
	fees        NUMERIC,
	net         NUMERIC,
	closed_at   TIMESTAMPTZ,
	meta        JSONB       NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (symbol, tier, opened_at)
);
CREATE TABLE IF NOT EXISTS trade_partials (
	symbol    TEXT        NOT NULL,
	tier      TEXT        NOT NULL,
	opened_at TIMESTAMPTZ NOT NULL,
	qty       NUMERIC     NOT NULL,
	price     NUMERIC     NOT NULL,
	gross     NUMERIC     NOT NULL,
	new_stop  NUMERIC     NOT NULL
);`

// Migrate создаёт таблицы, если их нет.
func (j *PG) Migrate(ctx context.Context) error {
	return j.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, schema)
		return err
	})
}

func (j *PG) RecordOpen(ctx context.Context, p position.Position) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.RecordOpen: %w", err)
		}
	}()

	_, err = j.conn.Exec(ctx, `
		INSERT INTO trades (symbol, tier, side, opened_at, qty, entry, take_profit, stop_loss, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`,
		p.Key.Symbol, string(p.Key.Tier), string(p.Side), p.OpenedAt, p.Qty, p.Entry, p.TP, p.Stop, string(p.Status),
	)
	return err
}

func (j *PG) RecordPartial(ctx context.Context, p position.Position, part position.Partial) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.RecordPartial: %w", err)
		}
	}()

	return j.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctxTx, `
			INSERT INTO trade_partials (symbol, tier, opened_at, qty, price, gross, new_stop)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.Key.Symbol, string(p.Key.Tier), p.OpenedAt, part.Qty, part.Price, part.Gross, part.NewStop,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctxTx, `
			UPDATE trades SET status = $4, qty = $5, stop_loss = $6
			WHERE symbol = $1 AND tier = $2 AND opened_at = $3`,
			p.Key.Symbol, string(p.Key.Tier), p.OpenedAt, string(p.Status), p.Qty, part.NewStop,
		)
		return err
	})
}

type closeMeta struct {
	ReturnPct       float64 `json:"return_pct"`
	ClosedQty       float64 `json:"closed_qty"`
	DurationSec     int64   `json:"duration_sec"`
	ExecutionFailed bool    `json:"execution_failed"`
}

func (j *PG) RecordClose(ctx context.Context, out position.Outcome, executionFailed bool) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.RecordClose: %w", err)
		}
	}()

	meta, err := sonic.Marshal(closeMeta{
		ReturnPct:       out.ReturnPct,
		ClosedQty:       out.Qty,
		DurationSec:     int64(out.Duration().Seconds()),
		ExecutionFailed: executionFailed,
	})
	if err != nil {
		return err
	}

	_, err = j.conn.Exec(ctx, `
		UPDATE trades
		SET status = 'CLOSED', reason = $4, exit_price = $5, gross = $6, fees = $7, net = $8, closed_at = $9, meta = $10
		WHERE symbol = $1 AND tier = $2 AND opened_at = $3`,
		out.Key.Symbol, string(out.Key.Tier), out.OpenedAt,
		string(out.Reason), out.Exit, out.Gross, out.Fees, out.Net, out.ClosedAt, string(meta),
	)
	return err
}
