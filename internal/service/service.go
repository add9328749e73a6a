package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nexcrux/bank-sms-ledger/internal/metrics"
	"github.com/nexcrux/bank-sms-ledger/internal/models"
	"github.com/nexcrux/bank-sms-ledger/internal/notifier"
	"github.com/nexcrux/bank-sms-ledger/internal/recorder"
)

// Sources label where an event entered the service.
const (
	SourceHTTP  = "http"
	SourceQueue = "queue"
)

// Recorder is implemented by *recorder.Recorder.
type Recorder interface {
	Record(ctx context.Context, body, sender, receivedAt string) (recorder.Outcome, error)
}

// Service is the ingest boundary shared by the HTTP handlers and the queue dispatcher.
type Service struct {
	recorder Recorder
	notifier notifier.Notifier
	metrics  *metrics.Ingest
	logger   *zap.Logger
}

// NewService wires the ingest dependencies. A nil notifier disables notifications.
func NewService(rec Recorder, n notifier.Notifier, m *metrics.Ingest, logger *zap.Logger) *Service {
	if n == nil {
		n = notifier.Noop{}
	}
	return &Service{
		recorder: rec,
		notifier: n,
		metrics:  m,
		logger:   logger,
	}
}

// Ingest validates input and records it. Validation failures return an error matching
// models.ErrValidation; store failures match recorder.ErrStorage. A duplicate is not an error.
func (s *Service) Ingest(ctx context.Context, source string, input models.IngestSMSInput) (recorder.Outcome, error) {
	if err := input.Validate(); err != nil {
		s.metrics.Observe(source, metrics.OutcomeInvalid)
		s.logger.Warn("Rejected invalid SMS",
			zap.String("source", source),
			zap.String("sender", input.Sender),
			zap.Error(err),
		)
		return recorder.Outcome{}, err
	}

	start := time.Now()
	outcome, err := s.recorder.Record(ctx, input.Body, input.Sender, input.ReceivedAt)
	s.metrics.ObserveDuration(source, time.Since(start))
	if err != nil {
		s.metrics.Observe(source, metrics.OutcomeFailed)
		s.logger.Error("Failed to record SMS",
			zap.String("source", source),
			zap.String("event_id", outcome.EventID),
			zap.Error(err),
		)
		return outcome, err
	}

	switch outcome.Status {
	case recorder.StatusDuplicate:
		s.metrics.Observe(source, metrics.OutcomeDuplicate)
		s.logger.Info("Duplicate SMS ignored",
			zap.String("source", source),
			zap.String("event_id", outcome.EventID),
		)
	case recorder.StatusCreated:
		s.metrics.Observe(source, metrics.OutcomeCreated)
		s.logger.Info("SMS recorded",
			zap.String("source", source),
			zap.String("event_id", outcome.EventID),
			zap.Int64("id", outcome.Record.ID),
			zap.String("sender", outcome.Record.Sender),
		)
		s.notify(ctx, outcome.Record)
	}

	return outcome, nil
}

// notify never fails the ingest; the row is already committed.
func (s *Service) notify(ctx context.Context, record *models.RawSMS) {
	err := s.notifier.Notify(ctx, record)
	if _, noop := s.notifier.(notifier.Noop); !noop {
		s.metrics.ObserveNotify(err)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Failed to publish recorded SMS notification",
			zap.String("event_id", record.EventID),
			zap.Error(err),
		)
	}
}
