package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/nexcrux/bank-sms-ledger/internal/config"
)

// ErrNotConnected is returned when the channel is closed or not yet opened.
var ErrNotConnected = errors.New("rabbitmq channel is not initialized or closed")

// Connection owns one AMQP connection and channel and re-establishes them when the broker drops us.
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
	logger  *zap.Logger

	mu           sync.RWMutex
	stopChan     chan struct{}
	closeOnce    sync.Once
	reconnectMu  sync.Mutex
	reconnecting bool
}

// NewConnection creates a Connection; call Connect to dial
func NewConnection(cfg *config.RabbitMQConfig, logger *zap.Logger) *Connection {
	return &Connection{
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Connect dials the broker, retrying up to MaxInitialAttempts, then starts the recovery monitor.
func (c *Connection) Connect() error {
	maxAttempts := c.cfg.MaxInitialAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := c.dial()
		if err == nil {
			c.logger.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			break
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxAttempts, err)
		}

		delay := reconnectDelay(attempt)
		c.logger.Warn("RabbitMQ connection failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", delay),
		)
		select {
		case <-c.stopChan:
			return fmt.Errorf("connection closed while connecting: %w", err)
		case <-time.After(delay):
		}
	}

	go c.monitor()
	return nil
}

func (c *Connection) dial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		_ = c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Close()
	}

	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": c.cfg.ConnectionName,
		},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = ch
	return nil
}

// monitor waits for the connection or channel to close and reconnects until Close is called.
func (c *Connection) monitor() {
	for {
		c.mu.RLock()
		if c.conn == nil || c.channel == nil {
			c.mu.RUnlock()
			return
		}
		connClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		channelClose := c.channel.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		var amqpErr *amqp.Error
		select {
		case <-c.stopChan:
			return
		case amqpErr = <-connClose:
		case amqpErr = <-channelClose:
		}

		if amqpErr == nil {
			// graceful close initiated by us
			select {
			case <-c.stopChan:
				return
			default:
			}
		}

		c.logger.Error("RabbitMQ connection lost, reconnecting", zap.Error(amqpErr))
		if !c.reconnect() {
			return
		}
	}
}

// reconnect retries dial with backoff. It returns false if the connection was closed meanwhile.
func (c *Connection) reconnect() bool {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return true
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	for attempt := 1; ; attempt++ {
		select {
		case <-c.stopChan:
			return false
		default:
		}

		if err := c.dial(); err != nil {
			delay := reconnectDelay(attempt)
			c.logger.Warn("RabbitMQ reconnect failed, retrying",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
			)
			select {
			case <-c.stopChan:
				return false
			case <-time.After(delay):
			}
			continue
		}

		c.logger.Info("Reconnected to RabbitMQ", zap.Int("attempt", attempt))
		return true
	}
}

// Close stops recovery and closes the channel and connection
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.stopChan)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.logger.Info("RabbitMQ connection closed")
	}
}

// Publish sends a persistent JSON message, retrying briefly while the channel is being recovered.
func (c *Connection) Publish(ctx context.Context, exchange, routingKey string, headers amqp.Table, body []byte) error {
	const maxRetries = 3
	retryDelay := 100 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ch := c.GetChannel()
		if ch == nil || ch.IsClosed() {
			lastErr = ErrNotConnected
		} else {
			lastErr = ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
				Headers:      headers,
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now().UTC(),
				Body:         body,
			})
			if lastErr == nil {
				return nil
			}
			if !ch.IsClosed() {
				return fmt.Errorf("failed to publish message: %w", lastErr)
			}
		}

		if attempt < maxRetries {
			c.logger.Warn("RabbitMQ channel unavailable for publish, retrying",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}
	}

	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries, lastErr)
}

// Consume registers a manual-ack consumer on queue.
func (c *Connection) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	ch := c.GetChannel()
	if ch == nil || ch.IsClosed() {
		return nil, ErrNotConnected
	}

	deliveries, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}
	return deliveries, nil
}

// SetQoS sets the prefetch count for the channel
func (c *Connection) SetQoS(prefetchCount int) error {
	ch := c.GetChannel()
	if ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	return nil
}

// CancelConsumer stops deliveries for consumerTag.
func (c *Connection) CancelConsumer(consumerTag string) error {
	ch := c.GetChannel()
	if ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}
	return ch.Cancel(consumerTag, false)
}

func (c *Connection) GetChannel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// IsHealthy checks if the connection and channel are open
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

// Ping implements the health check Pinger contract.
func (c *Connection) Ping(context.Context) error {
	if !c.IsHealthy() {
		return errors.New("connection closed")
	}
	return nil
}
