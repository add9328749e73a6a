// Package store persists RawSMS rows behind a uniqueness constraint on event_id.
package store

import (
	"context"
	"errors"

	"github.com/nexcrux/bank-sms-ledger/internal/models"
)

// EventIDConstraint is the name of the unique constraint on raw_sms.event_id.
const EventIDConstraint = "raw_sms_event_id_key"

// ErrDuplicateEventID is returned by Insert when a row with the same event_id already exists.
var ErrDuplicateEventID = errors.New("event_id already recorded")

// errNoRowReturned means the insert succeeded but the store sent back no row.
var errNoRowReturned = errors.New("insert returned no row")

// Store performs a single atomic insert of a RawSMS.
//
// Implementations must enforce event_id uniqueness in the storage layer and report a violation
// of that constraint as ErrDuplicateEventID. Any other failure is returned as-is (wrapped).
type Store interface {
	Insert(ctx context.Context, sms models.RawSMS) (*models.RawSMS, error)
}

const insertRawSMSQuery = `
	INSERT INTO raw_sms (body, sender, received_at, event_id)
	VALUES (?, ?, ?, ?)
	RETURNING id, body, sender, received_at, event_id, created_at
`
