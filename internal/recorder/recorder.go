// Package recorder records inbound SMS events exactly once per content identity.
package recorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexcrux/bank-sms-ledger/internal/eventid"
	"github.com/nexcrux/bank-sms-ledger/internal/models"
	"github.com/nexcrux/bank-sms-ledger/internal/store"
)

// ErrStorage wraps every store failure other than an event_id conflict.
var ErrStorage = errors.New("storage failure")

// Status is the result of a successful Record call.
type Status int

const (
	StatusCreated Status = iota + 1
	StatusDuplicate
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Outcome carries the stored row for StatusCreated. For StatusDuplicate only EventID is set.
type Outcome struct {
	Status  Status
	EventID string
	Record  *models.RawSMS
}

// Recorder derives the event identity and performs the single atomic insert.
type Recorder struct {
	store   store.Store
	deriver *eventid.Deriver
}

// New creates a Recorder; a nil deriver uses the default identity length
func New(s store.Store, deriver *eventid.Deriver) *Recorder {
	if deriver == nil {
		deriver, _ = eventid.NewDeriver(eventid.DefaultLength)
	}
	return &Recorder{store: s, deriver: deriver}
}

// Record stores (body, sender, receivedAt) unless an event with the same identity already exists.
// Concurrent calls with the same content are serialized by the store's unique constraint: exactly
// one returns StatusCreated, the rest StatusDuplicate.
func (r *Recorder) Record(ctx context.Context, body, sender, receivedAt string) (Outcome, error) {
	id := r.deriver.Derive(body, sender, receivedAt)

	row, err := r.store.Insert(ctx, models.RawSMS{
		Body:       body,
		Sender:     sender,
		ReceivedAt: receivedAt,
		EventID:    id,
	})
	switch {
	case err == nil:
		return Outcome{Status: StatusCreated, EventID: id, Record: row}, nil
	case errors.Is(err, store.ErrDuplicateEventID):
		return Outcome{Status: StatusDuplicate, EventID: id}, nil
	default:
		return Outcome{EventID: id}, fmt.Errorf("%w: record event %s: %w", ErrStorage, id, err)
	}
}
