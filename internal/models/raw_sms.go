package models

import (
	"time"
)

// RawSMS is an SMS exactly as it was received. Rows are append-only and never updated.
type RawSMS struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Body       string    `gorm:"not null" json:"body"`
	Sender     string    `gorm:"not null" json:"sender"`
	ReceivedAt string    `gorm:"not null" json:"received_at"`
	EventID    string    `gorm:"not null;uniqueIndex:raw_sms_event_id_key" json:"event_id"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (RawSMS) TableName() string {
	return "raw_sms"
}

// RecordedMessage is published to the notification exchange when a new RawSMS row is created
type RecordedMessage struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	Sender     string    `json:"sender"`
	ReceivedAt string    `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRecordedMessage builds the notification payload for a stored row.
func NewRecordedMessage(sms *RawSMS) RecordedMessage {
	return RecordedMessage{
		ID:         sms.ID,
		EventID:    sms.EventID,
		Sender:     sms.Sender,
		ReceivedAt: sms.ReceivedAt,
		CreatedAt:  sms.CreatedAt,
	}
}
