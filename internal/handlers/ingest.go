package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nexcrux/bank-sms-ledger/internal/models"
	"github.com/nexcrux/bank-sms-ledger/internal/recorder"
	"github.com/nexcrux/bank-sms-ledger/internal/service"
)

const (
	MsgIngested  = "SMS ingested successfully"
	MsgDuplicate = "SMS already processed (duplicate)"
	MsgInvalid   = "Invalid JSON body"
	MsgInternal  = "Internal server error"
)

// Ingester is implemented by *service.Service.
type Ingester interface {
	Ingest(ctx context.Context, source string, input models.IngestSMSInput) (recorder.Outcome, error)
}

// IngestHandler serves POST /ingest
type IngestHandler struct {
	ingester Ingester
	timeout  time.Duration
	logger   *zap.Logger
}

// NewIngestHandler creates the handler; a positive timeout bounds each ingest call
func NewIngestHandler(ingester Ingester, timeout time.Duration, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		ingester: ingester,
		timeout:  timeout,
		logger:   logger,
	}
}

// IngestResponse is returned with 201 Created.
type IngestResponse struct {
	Message string         `json:"message"`
	Data    *models.RawSMS `json:"data"`
}

// DuplicateResponse is returned with 200 OK when the event was already recorded.
type DuplicateResponse struct {
	Message   string `json:"message"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"event_id"`
}

// Ingest handles POST /ingest
func (h *IngestHandler) Ingest(c *fiber.Ctx) error {
	var input models.IngestSMSInput
	if err := json.Unmarshal(c.Body(), &input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": MsgInvalid,
		})
	}

	ctx := c.UserContext()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	outcome, err := h.ingester.Ingest(ctx, service.SourceHTTP, input)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": verr.Message,
			})
		}

		h.logger.Error("Error ingesting SMS",
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
		message := err.Error()
		if errors.Is(err, recorder.ErrStorage) {
			message = recorder.ErrStorage.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   MsgInternal,
			"message": message,
		})
	}

	if outcome.Status == recorder.StatusDuplicate {
		return c.Status(fiber.StatusOK).JSON(DuplicateResponse{
			Message:   MsgDuplicate,
			Duplicate: true,
			EventID:   outcome.EventID,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(IngestResponse{
		Message: MsgIngested,
		Data:    outcome.Record,
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
