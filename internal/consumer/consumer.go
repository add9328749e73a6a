package consumer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EncodingBase64 is the content-encoding producers set when the body is base64-wrapped.
const EncodingBase64 = "base64"

// ErrRetry marks handler failures that should be redelivered instead of dropped.
var ErrRetry = errors.New("retry later")

// MessageHandler handles a decoded delivery body.
// Returning nil acks the delivery. An error wrapping ErrRetry requeues it; any other error rejects it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, body []byte) error
}

// ProcessMessage decodes one delivery, hands it to handler and settles it.
func ProcessMessage(ctx context.Context, logger *zap.Logger, queue string, msg amqp.Delivery, handler MessageHandler) {
	logger.Debug("Received message from queue",
		zap.String("queue", queue),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
		zap.Bool("redelivered", msg.Redelivered),
	)

	body, err := decodeBody(msg)
	if err != nil {
		logger.Error("Failed to decode message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		nack(logger, msg, false)
		return
	}

	if err := handler.HandleMessage(ctx, body); err != nil {
		requeue := errors.Is(err, ErrRetry)
		logger.Error("Failed to process message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		nack(logger, msg, requeue)
		return
	}

	if err := msg.Ack(false); err != nil {
		// The broker will redeliver; the recorder turns the repeat into a duplicate.
		logger.Error("Failed to ack message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		return
	}

	logger.Debug("Message from queue processed",
		zap.String("queue", queue),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)
}

func decodeBody(msg amqp.Delivery) ([]byte, error) {
	if msg.ContentEncoding != EncodingBase64 {
		return msg.Body, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(string(msg.Body))
	if err != nil {
		return nil, fmt.Errorf("decode base64 body: %w", err)
	}
	return decoded, nil
}

func nack(logger *zap.Logger, msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		logger.Error("Failed to nack message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
	}
}
