package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    t.TempDir() + "/" + name + ".db",
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db, err := New(Config{
		Path: t.TempDir() + "/test.db",
		Name: "predictions",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, "predictions", db.Name())
}

func TestMigrate_CreatesTables(t *testing.T) {
	cases := []struct {
		name    string
		profile DatabaseProfile
		table   string
	}{
		{"predictions", ProfileStandard, "prediction_inputs"},
		{"ledger", ProfileLedger, "policy_decisions"},
		{"state", ProfileStandard, "hard_stop_state"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := newTestDB(t, tc.name, tc.profile)
			require.NoError(t, db.Migrate())

			var count int
			err := db.QueryRow(
				"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
				tc.table,
			).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())
}

func TestMigrate_UnknownNameSkips(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileCache)
	assert.NoError(t, db.Migrate())
}

func TestWithTransaction_Commit(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)
	_, err := db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO items (name) VALUES (?)", "one")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)
	_, err := db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	failure := errors.New("write rejected")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO items (name) VALUES (?)", "one"); err != nil {
			return err
		}
		return failure
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
}

func TestWithTransaction_NilConnection(t *testing.T) {
	assert.Error(t, WithTransaction(nil, func(tx *sql.Tx) error { return nil }))
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, "state", ProfileStandard)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.QuickCheck(context.Background()))
}

func TestWALCheckpoint(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.WALCheckpoint("TRUNCATE"))
	// Empty mode falls back to TRUNCATE
	assert.NoError(t, db.WALCheckpoint(""))
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t, "predictions", ProfileStandard)
	require.NoError(t, db.Migrate())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}
