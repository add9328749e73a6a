package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/nexcrux/bank-sms-ledger/internal/models"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore writes raw_sms rows through GORM.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore creates a store on an open GORM connection
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert runs one INSERT ... RETURNING statement; the unique constraint decides duplicates.
func (s *PostgresStore) Insert(ctx context.Context, sms models.RawSMS) (*models.RawSMS, error) {
	var row models.RawSMS
	result := s.db.WithContext(ctx).
		Raw(insertRawSMSQuery, sms.Body, sms.Sender, sms.ReceivedAt, sms.EventID).
		Scan(&row)

	if result.Error != nil {
		if isPostgresEventIDConflict(result.Error) {
			return nil, ErrDuplicateEventID
		}
		return nil, fmt.Errorf("insert raw sms: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("insert raw sms: %w", errNoRowReturned)
	}

	return &row, nil
}

func isPostgresEventIDConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == EventIDConstraint
}
