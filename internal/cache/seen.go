// Package cache remembers event identities that are already recorded.
//
// The cache only ever holds identities in their terminal state, so a hit can be answered as a
// duplicate. A miss says nothing: the underlying store's unique constraint still decides whether
// an identity is new.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nexcrux/bank-sms-ledger/internal/models"
	"github.com/nexcrux/bank-sms-ledger/internal/store"
)

const keyPrefix = "sms-ledger:seen:"

// SeenStore is a store.Store decorator backed by Redis.
type SeenStore struct {
	next   store.Store
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSeenStore wraps next; identities are remembered for ttl.
func NewSeenStore(next store.Store, client *redis.Client, ttl time.Duration, logger *zap.Logger) *SeenStore {
	return &SeenStore{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Insert answers known identities from Redis and delegates everything else.
// Redis failures are logged and never change the outcome of the store.
func (s *SeenStore) Insert(ctx context.Context, sms models.RawSMS) (*models.RawSMS, error) {
	key := keyPrefix + sms.EventID

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Warn("Seen cache lookup failed, falling through to store",
			zap.String("event_id", sms.EventID),
			zap.Error(err),
		)
	} else if n > 0 {
		return nil, store.ErrDuplicateEventID
	}

	row, err := s.next.Insert(ctx, sms)
	if err == nil || errors.Is(err, store.ErrDuplicateEventID) {
		s.markSeen(ctx, key)
	}
	return row, err
}

func (s *SeenStore) markSeen(ctx context.Context, key string) {
	if err := s.client.Set(ctx, key, 1, s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to mark event as seen",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// RedisPinger adapts a Redis client to the health check Pinger contract.
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
