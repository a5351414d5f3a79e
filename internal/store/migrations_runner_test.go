package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakePool implements PgxPool against in-memory state.
type fakePool struct {
	applied  map[string]bool
	poolSQL  []string
	txs      []*fakeTx
	failWhen string // fail a tx Exec whose SQL contains this substring
}

func newFakePool() *fakePool {
	return &fakePool{applied: map[string]bool{}}
}

func (p *fakePool) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	p.poolSQL = append(p.poolSQL, sql)
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{scan: func(dest ...any) error {
		if strings.Contains(sql, "schema_migrations WHERE version") {
			name, _ := args[0].(string)
			*(dest[0].(*bool)) = p.applied[name]
			return nil
		}
		return errors.New("unexpected query: " + sql)
	}}
}

func (p *fakePool) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{pool: p}
	p.txs = append(p.txs, tx)
	return tx, nil
}

// fakeTx implements pgx.Tx; only Exec/Commit/Rollback are exercised.
type fakeTx struct {
	pool       *fakePool
	execs      []string
	pending    []string
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.pool.failWhen != "" && strings.Contains(sql, t.pool.failWhen) {
		return pgconn.CommandTag{}, errors.New("forced migration failure")
	}
	t.execs = append(t.execs, sql)
	if strings.Contains(sql, "INSERT INTO schema_migrations") {
		if name, ok := args[0].(string); ok {
			t.pending = append(t.pending, name)
		}
	}
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	for _, name := range t.pending {
		t.pool.applied[name] = true
	}
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { panic("not implemented") }
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { panic("not implemented") }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { panic("not implemented") }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { panic("not implemented") }
func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { panic("not implemented") }
func (t *fakeTx) Conn() *pgx.Conn                                         { panic("not implemented") }

func TestApplyMigrationsFreshDatabase(t *testing.T) {
	pool := newFakePool()

	require.NoError(t, ApplyMigrations(context.Background(), pool))

	names, err := listMigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.True(t, sort.StringsAreSorted(names))

	// One transaction per migration, all committed.
	require.Len(t, pool.txs, len(names))
	for i, tx := range pool.txs {
		assert.True(t, tx.committed, "tx %d not committed", i)
		assert.False(t, tx.rolledBack)
	}
	for _, name := range names {
		assert.True(t, pool.applied[name], "migration %s not recorded", name)
	}

	// The bookkeeping table is created outside any migration transaction.
	require.NotEmpty(t, pool.poolSQL)
	assert.Contains(t, pool.poolSQL[0], "CREATE TABLE IF NOT EXISTS schema_migrations")
}

func TestApplyMigrationsSkipsApplied(t *testing.T) {
	pool := newFakePool()
	names, err := listMigrationFiles()
	require.NoError(t, err)
	for _, name := range names {
		pool.applied[name] = true
	}

	require.NoError(t, ApplyMigrations(context.Background(), pool))
	assert.Empty(t, pool.txs, "no transactions expected when everything is applied")
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	pool := newFakePool()

	require.NoError(t, ApplyMigrations(context.Background(), pool))
	firstRun := len(pool.txs)

	require.NoError(t, ApplyMigrations(context.Background(), pool))
	assert.Equal(t, firstRun, len(pool.txs), "second run must not replay migrations")
}

func TestApplyMigrationsRollsBackOnFailure(t *testing.T) {
	pool := newFakePool()
	pool.failWhen = "CREATE TABLE users"

	err := ApplyMigrations(context.Background(), pool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_init.sql")

	require.Len(t, pool.txs, 1)
	assert.True(t, pool.txs[0].rolledBack)
	assert.False(t, pool.txs[0].committed)
	assert.Empty(t, pool.applied)
}
