package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx registra commit e rollback; o restante de pgx.Tx não é usado.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
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

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (f *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func TestWithTx(t *testing.T) {
	boom := errors.New("boom")

	t.Run("commit", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{}}
		require.NoError(t, WithTx(context.Background(), b, func(context.Context, pgx.Tx) error { return nil }))
		assert.True(t, b.tx.committed)
		assert.False(t, b.tx.rolledBack)
	})

	t.Run("fn error rolls back", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{}}
		err := WithTx(context.Background(), b, func(context.Context, pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.True(t, b.tx.rolledBack)
		assert.False(t, b.tx.committed)
	})

	t.Run("commit error rolls back", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{commitErr: boom}}
		err := WithTx(context.Background(), b, func(context.Context, pgx.Tx) error { return nil })
		assert.ErrorIs(t, err, boom)
		assert.True(t, b.tx.rolledBack)
	})

	t.Run("begin error", func(t *testing.T) {
		b := &fakeBeginner{err: boom}
		err := WithTx(context.Background(), b, func(context.Context, pgx.Tx) error {
			t.Fatal("fn não deveria rodar")
			return nil
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("panic rolls back and propagates", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{}}
		assert.Panics(t, func() {
			_ = WithTx(context.Background(), b, func(context.Context, pgx.Tx) error { panic("falhou") })
		})
		assert.True(t, b.tx.rolledBack)
	})
}
