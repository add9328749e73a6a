package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestSMSInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   IngestSMSInput
		wantMsg string
	}{
		{
			name:  "valid RFC3339",
			input: IngestSMSInput{Body: "Your OTP is 1234", Sender: "BANK-XYZ", ReceivedAt: "2024-01-15T10:30:00Z"},
		},
		{
			name:  "valid with offset and fraction",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "2024-01-15T10:30:00.123+03:00"},
		},
		{
			name:  "valid date only",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "2024-01-15"},
		},
		{
			name:  "minute precision without zone",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "2024-01-15T10:30"},
		},
		{
			name:  "minute precision UTC",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "2024-01-15T10:30Z"},
		},
		{
			name:  "minute precision with offset",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "2024-01-15T10:30+05:30"},
		},
		{
			name:  "basic format offset",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "2024-01-15T10:30:00+0300"},
		},
		{
			name:  "basic format offset with fraction",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "2024-01-15T10:30:00.250-0500"},
		},
		{
			name:  "fraction without zone",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "2024-01-15T10:30:00.5"},
		},
		{
			name:  "RFC 1123",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "Mon, 15 Jan 2024 10:30:00 GMT"},
		},
		{
			name:  "RFC 1123 numeric zone",
			input: IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "Mon, 15 Jan 2024 10:30:00 +0000"},
		},
		{
			name:    "missing body",
			input:   IngestSMSInput{Sender: "BANK-XYZ", ReceivedAt: "2024-01-15T10:30:00Z"},
			wantMsg: MsgMissingFields,
		},
		{
			name:    "missing sender",
			input:   IngestSMSInput{Body: "x", ReceivedAt: "2024-01-15T10:30:00Z"},
			wantMsg: MsgMissingFields,
		},
		{
			name:    "missing received_at",
			input:   IngestSMSInput{Body: "x", Sender: "y"},
			wantMsg: MsgMissingFields,
		},
		{
			name:    "malformed timestamp",
			input:   IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "yesterday"},
			wantMsg: MsgInvalidTimestamp,
		},
		{
			name:    "impossible date",
			input:   IngestSMSInput{Body: "x", Sender: "y", ReceivedAt: "2024-02-30T10:00:00Z"},
			wantMsg: MsgInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))

	got, err = ParseTimestamp("2024-01-15T13:30:00+0300")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))

	got, err = ParseTimestamp("2024-01-15T10:30Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))

	_, err = ParseTimestamp("15/01/2024")
	assert.Error(t, err)
}

func TestNewRecordedMessage(t *testing.T) {
	created := time.Date(2024, 1, 15, 10, 30, 5, 0, time.UTC)
	msg := NewRecordedMessage(&RawSMS{
		ID:         7,
		Body:       "secret body",
		Sender:     "BANK-XYZ",
		ReceivedAt: "2024-01-15T10:30:00Z",
		EventID:    "0123456789abcdef",
		CreatedAt:  created,
	})

	assert.Equal(t, RecordedMessage{
		ID:         7,
		EventID:    "0123456789abcdef",
		Sender:     "BANK-XYZ",
		ReceivedAt: "2024-01-15T10:30:00Z",
		CreatedAt:  created,
	}, msg)
}
