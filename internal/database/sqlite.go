package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens the SQLite database at path with a single connection.
// Writers therefore queue in the pool instead of failing with SQLITE_BUSY.
func OpenSQLite(path string, logger *zap.Logger) (*sql.DB, error) {
	if err := ensureDataDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if logger != nil {
		logger.Info("Opened SQLite database", zap.String("path", path))
	}

	return db, nil
}

// ensureDataDir creates the parent directory of a SQLite database file.
func ensureDataDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// SQLPinger adapts a *sql.DB to the health check Pinger contract.
type SQLPinger struct {
	DB *sql.DB
}

func (p SQLPinger) Ping(ctx context.Context) error {
	if p.DB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return p.DB.PingContext(ctx)
}
