package models

import (
	"errors"
	"strings"
	"time"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

const (
	MsgMissingFields    = "Missing required fields: body, sender, received_at"
	MsgInvalidTimestamp = "received_at must be a valid ISO 8601 timestamp"
)

// timestampLayouts are tried in order when checking received_at.
// Fractional seconds are accepted after any seconds field.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// ValidationError describes an inbound event rejected before it reaches the recorder.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IngestSMSInput is the payload accepted by POST /ingest and by the intake queue
type IngestSMSInput struct {
	Body       string `json:"body"`
	Sender     string `json:"sender"`
	ReceivedAt string `json:"received_at"`
}

// Validate checks field presence and that received_at parses as a point in time.
// Fields are not modified; the recorder hashes them verbatim.
func (in IngestSMSInput) Validate() error {
	if in.Body == "" || in.Sender == "" || in.ReceivedAt == "" {
		return &ValidationError{Message: MsgMissingFields}
	}
	if _, err := ParseTimestamp(in.ReceivedAt); err != nil {
		return &ValidationError{Message: MsgInvalidTimestamp}
	}
	return nil
}

// ParseTimestamp parses an ISO 8601 style timestamp.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
