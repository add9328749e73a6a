// Package notifier announces newly recorded messages to downstream consumers.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nexcrux/bank-sms-ledger/internal/models"
)

// Notifier is told about every message that was stored for the first time.
type Notifier interface {
	Notify(ctx context.Context, record *models.RawSMS) error
}

// Publisher is the subset of rabbitmq.Connection the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, headers amqp.Table, body []byte) error
}

// AMQPNotifier publishes a RecordedMessage to an exchange.
type AMQPNotifier struct {
	publisher  Publisher
	exchange   string
	routingKey string
	secret     string
}

// NewAMQPNotifier publishes to exchange with routingKey. An empty secret disables signing.
func NewAMQPNotifier(publisher Publisher, exchange, routingKey, secret string) *AMQPNotifier {
	return &AMQPNotifier{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
		secret:     secret,
	}
}

// Notify publishes the record. When a secret is configured the body is signed in the X-Signature header.
func (n *AMQPNotifier) Notify(ctx context.Context, record *models.RawSMS) error {
	body, err := json.Marshal(models.NewRecordedMessage(record))
	if err != nil {
		return fmt.Errorf("failed to marshal recorded message: %w", err)
	}

	headers := amqp.Table{"event_id": record.EventID}
	if n.secret != "" {
		signature, err := Sign(body, n.secret)
		if err != nil {
			return fmt.Errorf("failed to sign recorded message: %w", err)
		}
		headers[SignatureHeader] = signature
	}

	if err := n.publisher.Publish(ctx, n.exchange, n.routingKey, headers, body); err != nil {
		return fmt.Errorf("failed to publish recorded message %s: %w", record.EventID, err)
	}
	return nil
}

// Noop discards notifications. Used when RabbitMQ is disabled.
type Noop struct{}

func (Noop) Notify(context.Context, *models.RawSMS) error { return nil }
