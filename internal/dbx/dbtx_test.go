package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// openKeyStore returns an in-memory database with a key_storage table
// shaped like the Postgres one.
func openKeyStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS key_storage (email TEXT PRIMARY KEY, secret_key TEXT NOT NULL);`)
	require.NoError(t, err)
	return db
}

func storedKeys(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM key_storage`).Scan(&n))
	return n
}

func saveKey(ctx context.Context, tx DBTX, email, key string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO key_storage(email, secret_key) VALUES (?, ?)`, email, key)
	return err
}

func TestWithTx_KeyVisibleAfterCommit(t *testing.T) {
	db := openKeyStore(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return saveKey(ctx, tx, "alice@example.com", "a2V5")
	})
	require.NoError(t, err)
	require.Equal(t, 1, storedKeys(t, db))
}

func TestWithTx_FailedPasswordUpdateDropsKey(t *testing.T) {
	db := openKeyStore(t)
	updateFailed := errors.New("password update failed")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, saveKey(ctx, tx, "alice@example.com", "a2V5"))
		return updateFailed
	})
	require.ErrorIs(t, err, updateFailed)
	require.Equal(t, 0, storedKeys(t, db))
}

func TestWithTx_PanicDropsKeyAndPropagates(t *testing.T) {
	db := openKeyStore(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, storedKeys(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, saveKey(ctx, tx, "alice@example.com", "a2V5"))
		panic("encrypt failed")
	})
}

func TestWithTx_ClosedPool(t *testing.T) {
	db := openKeyStore(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.ErrorContains(t, err, "begin tx")
	require.False(t, called)
}

func TestWithTx_DuplicateKeyUndoesEarlierWrite(t *testing.T) {
	db := openKeyStore(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if err := saveKey(ctx, tx, "alice@example.com", "k1"); err != nil {
			return err
		}
		return saveKey(ctx, tx, "alice@example.com", "k2")
	})
	require.Error(t, err)
	require.Equal(t, 0, storedKeys(t, db))
}
