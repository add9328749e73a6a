package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nexcrux/bank-sms-ledger/internal/models"
)

// SQLiteCreatedAtLayout matches the created_at default in the sqlite schema.
const SQLiteCreatedAtLayout = "2006-01-02T15:04:05.000Z"

// SQLiteStore writes raw_sms rows to a modernc SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on a database already migrated to the raw_sms schema
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert runs one INSERT ... RETURNING statement; the unique constraint decides duplicates.
func (s *SQLiteStore) Insert(ctx context.Context, sms models.RawSMS) (*models.RawSMS, error) {
	var (
		row       models.RawSMS
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, insertRawSMSQuery, sms.Body, sms.Sender, sms.ReceivedAt, sms.EventID).
		Scan(&row.ID, &row.Body, &row.Sender, &row.ReceivedAt, &row.EventID, &createdAt)
	if err != nil {
		if isSQLiteEventIDConflict(err) {
			return nil, ErrDuplicateEventID
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("insert raw sms: %w", errNoRowReturned)
		}
		return nil, fmt.Errorf("insert raw sms: %w", err)
	}

	// The row is committed at this point; an unreadable created_at stays zero rather than
	// turning a Created outcome into a failure.
	row.CreatedAt, _ = parseSQLiteTime(createdAt)

	return &row, nil
}

// sqliteTimeLayouts covers the schema default and SQLite's CURRENT_TIMESTAMP format.
var sqliteTimeLayouts = []string{
	SQLiteCreatedAtLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseSQLiteTime(value string) (time.Time, error) {
	var firstErr error
	for _, layout := range sqliteTimeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("parse created_at %q: %w", value, firstErr)
}

func isSQLiteEventIDConflict(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// extended codes (SQLITE_CONSTRAINT_UNIQUE) keep the primary code in the low byte
	if sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	return strings.Contains(sqliteErr.Error(), "raw_sms.event_id")
}
