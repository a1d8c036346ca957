package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tier_bot/internal/models"
	"tier_bot/internal/position"
)

type call struct {
	sql  string
	args []any
}

type fakeConn struct {
	calls []call
	err   error
}

func (f *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{sql: sql, args: args})
	return pgconn.NewCommandTag("UPDATE 1"), f.err
}

type fakeTx struct{ runs int }

func (f *fakeTx) RunMaster(context.Context, func(ctxTx context.Context, tx pgx.Tx) error) error {
	f.runs++
	return nil
}

var (
	_ Journal = Noop{}
	_ Journal = (*PG)(nil)
)

func TestRecordOpenInsertsRow(t *testing.T) {
	conn := &fakeConn{}
	j := NewPG(conn, &fakeTx{})
	opened := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := j.RecordOpen(context.Background(), position.Position{
		Key:      models.Key{Symbol: "BTC", Tier: models.TierAggressive},
		Side:     models.SideLong,
		Qty:      0.01,
		Entry:    100,
		TP:       101.5,
		Stop:     99,
		OpenedAt: opened,
		Status:   position.StatusOpen,
	})
	require.NoError(t, err)
	require.Len(t, conn.calls, 1)
	assert.Contains(t, conn.calls[0].sql, "INSERT INTO trades")
	assert.Equal(t, []any{"BTC", "aggressive", "long", opened, 0.01, 100.0, 101.5, 99.0, "OPEN"}, conn.calls[0].args)
}

func TestRecordCloseWritesMeta(t *testing.T) {
	conn := &fakeConn{}
	j := NewPG(conn, &fakeTx{})
	opened := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := j.RecordClose(context.Background(), position.Outcome{
		Key:       models.Key{Symbol: "ETH", Tier: models.TierModerate},
		Reason:    models.ReasonTrail,
		Qty:       0.6,
		ReturnPct: 1.5,
		OpenedAt:  opened,
		ClosedAt:  opened.Add(90 * time.Second),
	}, true)
	require.NoError(t, err)
	require.Len(t, conn.calls, 1)

	args := conn.calls[0].args
	assert.Equal(t, "TRAIL", args[3])

	var meta closeMeta
	require.NoError(t, sonic.UnmarshalString(args[9].(string), &meta))
	assert.Equal(t, int64(90), meta.DurationSec)
	assert.True(t, meta.ExecutionFailed)
	assert.Equal(t, 0.6, meta.ClosedQty)
}

func TestErrorsAreWrapped(t *testing.T) {
	conn := &fakeConn{err: errors.New("conn refused")}
	j := NewPG(conn, &fakeTx{})

	err := j.RecordClose(context.Background(), position.Outcome{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal.RecordClose")
}

func TestMigrateAndPartialRunInTx(t *testing.T) {
	tx := &fakeTx{}
	j := NewPG(&fakeConn{}, tx)

	require.NoError(t, j.Migrate(context.Background()))
	require.NoError(t, j.RecordPartial(context.Background(), position.Position{}, position.Partial{}))
	assert.Equal(t, 2, tx.runs)
}
