//go:build unit

package uow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"merchant-backend/internal/infra/sqlc"
	"merchant-backend/internal/pkg/errs"
	"merchant-backend/internal/usecase/shared"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx only implements what the unit of work calls; anything else panics
// through the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

type fakePool struct {
	sqlc.DBTX

	mu       sync.Mutex
	options  []pgx.TxOptions
	txs      []*fakeTx
	beginErr error
}

func (p *fakePool) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	tx := &fakeTx{}
	p.options = append(p.options, opts)
	p.txs = append(p.txs, tx)
	return tx, nil
}

func newTestUoW(pool Pool) *PostgresUoW {
	u := NewPostgresUoW(pool, sqlc.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	u.backoff = time.Millisecond
	return u
}

func TestWithin_Commits(t *testing.T) {
	pool := &fakePool{}
	u := newTestUoW(pool)

	var seen sqlc.DBTX
	err := u.Within(context.Background(), func(_ context.Context, tx shared.Tx) error {
		seen = tx.DB()
		assert.NotNil(t, tx.Transactions())
		return nil
	})
	require.NoError(t, err)

	require.Len(t, pool.txs, 1)
	assert.Same(t, pool.txs[0], seen)
	assert.True(t, pool.txs[0].committed)
	assert.Equal(t, pgx.ReadCommitted, pool.options[0].IsoLevel)
}

func TestWithin_RetriesSerializationFailures(t *testing.T) {
	pool := &fakePool{}
	u := newTestUoW(pool)

	calls := 0
	err := u.Within(context.Background(), func(context.Context, shared.Tx) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: pgErrCodeSerializationFailure}
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	require.Len(t, pool.txs, 3)
	assert.True(t, pool.txs[0].rolledBack)
	assert.True(t, pool.txs[1].rolledBack)
	assert.True(t, pool.txs[2].committed)
}

func TestWithin_GivesUpAfterMaxRetries(t *testing.T) {
	pool := &fakePool{}
	u := newTestUoW(pool)

	err := u.Within(context.Background(), func(context.Context, shared.Tx) error {
		return &pgconn.PgError{Code: pgErrCodeDeadlockDetected}
	})
	assert.True(t, errs.Is(err, errMaxRetriesExceeded))
	assert.Len(t, pool.txs, maxRetries+1)
}

func TestWithin_DoesNotRetryOtherErrors(t *testing.T) {
	pool := &fakePool{}
	u := newTestUoW(pool)

	boom := errors.New("boom")
	err := u.Within(context.Background(), func(context.Context, shared.Tx) error { return boom })

	assert.ErrorIs(t, err, boom)
	require.Len(t, pool.txs, 1)
	assert.True(t, pool.txs[0].rolledBack)
}

func TestWithin_BeginFailure(t *testing.T) {
	pool := &fakePool{beginErr: errors.New("pool closed")}
	u := newTestUoW(pool)

	err := u.Within(context.Background(), func(context.Context, shared.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.True(t, errs.Is(err, errTransactionBegin))
}

func TestWithinReadOnly_UsesSnapshot(t *testing.T) {
	pool := &fakePool{}
	u := newTestUoW(pool)

	require.NoError(t, u.WithinReadOnly(context.Background(), func(context.Context, shared.Tx) error { return nil }))

	require.Len(t, pool.options, 1)
	assert.Equal(t, pgx.RepeatableRead, pool.options[0].IsoLevel)
	assert.Equal(t, pgx.ReadOnly, pool.options[0].AccessMode)
	assert.True(t, pool.txs[0].committed)
}

func TestWithDB_UsesPool(t *testing.T) {
	pool := &fakePool{}
	u := newTestUoW(pool)

	var seen sqlc.DBTX
	require.NoError(t, u.WithDB(context.Background(), func(_ context.Context, tx shared.Tx) error {
		seen = tx.DB()
		return nil
	}))

	assert.Same(t, pool, seen)
	assert.Empty(t, pool.txs)
}

func TestCalculateBackoff(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := time.Duration(1<<attempt) * backoffBase
		got := calculateBackoff(attempt, backoffBase)
		assert.GreaterOrEqual(t, got, base)
		assert.Less(t, got, base+base/5)
	}
}
