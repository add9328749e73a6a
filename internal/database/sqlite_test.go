package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexcrux/bank-sms-ledger/internal/config"
)

func TestRunMigrations_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "data", "ledger.db"),
	}
	logger := zap.NewNop()

	db, err := OpenSQLite(cfg.SQLitePath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(cfg, logger))
	// a second run is a no-op
	require.NoError(t, RunMigrations(cfg, logger))

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'raw_sms'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "raw_sms", name)

	_, err = db.Exec(`INSERT INTO raw_sms (body, sender, received_at, event_id) VALUES ('a', 'b', 'c', 'dup')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO raw_sms (body, sender, received_at, event_id) VALUES ('x', 'y', 'z', 'dup')`)
	assert.ErrorContains(t, err, "UNIQUE constraint failed: raw_sms.event_id")

	assert.NoError(t, SQLPinger{DB: db}.Ping(context.Background()))
}

func TestRunMigrations_SQLiteFreshDirectory(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "data", "nested", "ledger.db"),
	}

	require.NoError(t, RunMigrations(cfg, zap.NewNop()))

	db, err := OpenSQLite(cfg.SQLitePath, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM raw_sms`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestSQLPinger_NilDB(t *testing.T) {
	assert.Error(t, SQLPinger{}.Ping(context.Background()))
	assert.Error(t, GormPinger{}.Ping(context.Background()))
}
