package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/nexcrux/bank-sms-ledger/internal/consumer"
	"github.com/nexcrux/bank-sms-ledger/internal/models"
	"github.com/nexcrux/bank-sms-ledger/internal/recorder"
	"github.com/nexcrux/bank-sms-ledger/internal/service"
)

const (
	resubscribeDelay = 2 * time.Second
	// DefaultDrainTimeout bounds how long Stop waits for the in-flight delivery.
	DefaultDrainTimeout = 10 * time.Second
)

// Broker is the subset of rabbitmq.Connection used for intake.
type Broker interface {
	SetQoS(prefetchCount int) error
	Consume(queue, consumerTag string) (<-chan amqp.Delivery, error)
	CancelConsumer(consumerTag string) error
}

// Ingester is implemented by *service.Service.
type Ingester interface {
	Ingest(ctx context.Context, source string, input models.IngestSMSInput) (recorder.Outcome, error)
}

// Dispatcher consumes inbound SMS events from the intake queue and records them.
type Dispatcher struct {
	queue       string
	prefetch    int
	broker      Broker
	ingester    Ingester
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	stopping    chan struct{}
	stopOnce    sync.Once
	consumerTag string
	wg          sync.WaitGroup

	// DrainTimeout is how long Stop lets the in-flight delivery finish before cancelling it.
	DrainTimeout time.Duration
}

// NewDispatcher creates a dispatcher for queue; call Start to begin consuming
func NewDispatcher(queue string, prefetch int, broker Broker, ingester Ingester, logger *zap.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queue:        queue,
		prefetch:     prefetch,
		broker:       broker,
		ingester:     ingester,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		stopping:     make(chan struct{}),
		consumerTag:  "sms-ledger-" + uuid.NewString(),
		DrainTimeout: DefaultDrainTimeout,
	}
}

// Start subscribes to the intake queue. The queue must already exist.
func (d *Dispatcher) Start() error {
	if d.queue == "" {
		return errors.New("ingest queue is required")
	}

	messages, err := d.subscribe()
	if err != nil {
		return err
	}

	d.wg.Add(1)
	go d.run(messages)

	d.logger.Info("Dispatcher started",
		zap.String("queue", d.queue),
		zap.String("consumer_tag", d.consumerTag),
		zap.Int("prefetch", d.prefetch),
	)
	return nil
}

func (d *Dispatcher) subscribe() (<-chan amqp.Delivery, error) {
	if err := d.broker.SetQoS(d.prefetch); err != nil {
		return nil, err
	}
	messages, err := d.broker.Consume(d.queue, d.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming from queue %s (queue may not exist): %w", d.queue, err)
	}
	return messages, nil
}

// Stop cancels the consumer and lets the in-flight delivery settle. The processing context is
// cancelled only if that takes longer than DrainTimeout.
func (d *Dispatcher) Stop() {
	d.logger.Info("Stopping dispatcher", zap.String("consumer_tag", d.consumerTag))
	d.stopOnce.Do(func() { close(d.stopping) })

	if err := d.broker.CancelConsumer(d.consumerTag); err != nil {
		d.logger.Warn("Failed to cancel consumer",
			zap.String("consumer_tag", d.consumerTag),
			zap.Error(err),
		)
	}

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(d.DrainTimeout):
		d.logger.Warn("In-flight delivery did not finish in time, cancelling",
			zap.Duration("drain_timeout", d.DrainTimeout),
		)
	}
	d.cancel()
	<-drained

	d.logger.Info("Dispatcher stopped")
}

// run processes deliveries and resubscribes whenever the channel is replaced by a reconnect.
func (d *Dispatcher) run(messages <-chan amqp.Delivery) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopping:
			return
		case msg, ok := <-messages:
			if ok {
				consumer.ProcessMessage(d.ctx, d.logger, d.queue, msg, d)
				continue
			}

			d.logger.Warn("Delivery channel closed, waiting for reconnection", zap.String("queue", d.queue))
			next, ok := d.resubscribe()
			if !ok {
				return
			}
			messages = next
		}
	}
}

func (d *Dispatcher) resubscribe() (<-chan amqp.Delivery, bool) {
	for attempt := 1; ; attempt++ {
		select {
		case <-d.stopping:
			return nil, false
		case <-time.After(resubscribeDelay):
		}

		messages, err := d.subscribe()
		if err == nil {
			d.logger.Info("Resumed consuming", zap.String("queue", d.queue), zap.Int("attempt", attempt))
			return messages, true
		}
		d.logger.Error("Failed to resume consuming",
			zap.String("queue", d.queue),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}

// HandleMessage implements consumer.MessageHandler.
func (d *Dispatcher) HandleMessage(ctx context.Context, body []byte) error {
	var input models.IngestSMSInput
	if err := json.Unmarshal(body, &input); err != nil {
		return fmt.Errorf("failed to unmarshal inbound SMS: %w", err)
	}

	outcome, err := d.ingester.Ingest(ctx, service.SourceQueue, input)
	if err != nil {
		if errors.Is(err, recorder.ErrStorage) {
			return fmt.Errorf("%w: %w", consumer.ErrRetry, err)
		}
		return err
	}

	d.logger.Debug("Inbound SMS handled",
		zap.String("event_id", outcome.EventID),
		zap.Stringer("status", outcome.Status),
	)
	return nil
}
