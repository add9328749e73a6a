package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexcrux/bank-sms-ledger/internal/models"
	"github.com/nexcrux/bank-sms-ledger/internal/store"
)

type stubStore struct {
	calls int
	err   error
}

func (s *stubStore) Insert(_ context.Context, sms models.RawSMS) (*models.RawSMS, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	sms.ID = int64(s.calls)
	return &sms, nil
}

func newSeen(t *testing.T, next store.Store) (*SeenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewSeenStore(next, client, time.Hour, zap.NewNop()), mr
}

func TestSeenStore_HitSkipsStore(t *testing.T) {
	next := &stubStore{}
	s, mr := newSeen(t, next)
	sms := models.RawSMS{Body: "b", Sender: "s", ReceivedAt: "r", EventID: "0123456789abcdef"}

	row, err := s.Insert(context.Background(), sms)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.ID)
	assert.True(t, mr.Exists(keyPrefix+sms.EventID))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+sms.EventID))

	_, err = s.Insert(context.Background(), sms)
	assert.ErrorIs(t, err, store.ErrDuplicateEventID)
	assert.Equal(t, 1, next.calls)
}

func TestSeenStore_StoreDuplicateIsRemembered(t *testing.T) {
	next := &stubStore{err: store.ErrDuplicateEventID}
	s, mr := newSeen(t, next)

	_, err := s.Insert(context.Background(), models.RawSMS{EventID: "abc"})
	assert.ErrorIs(t, err, store.ErrDuplicateEventID)
	assert.True(t, mr.Exists(keyPrefix+"abc"))
}

func TestSeenStore_StorageFailureIsNotCached(t *testing.T) {
	boom := errors.New("connection refused")
	next := &stubStore{err: boom}
	s, mr := newSeen(t, next)

	_, err := s.Insert(context.Background(), models.RawSMS{EventID: "abc"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(keyPrefix+"abc"))
}

func TestSeenStore_RedisDownFallsThrough(t *testing.T) {
	next := &stubStore{}
	s, mr := newSeen(t, next)
	mr.Close()

	row, err := s.Insert(context.Background(), models.RawSMS{EventID: "abc"})
	require.NoError(t, err)
	assert.NotNil(t, row)
	assert.Equal(t, 1, next.calls)
}

func TestRedisPinger(t *testing.T) {
	_, mr := newSeen(t, &stubStore{})
	client, err := NewClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, RedisPinger{Client: client}.Ping(context.Background()))
	mr.Close()
	assert.Error(t, RedisPinger{Client: client}.Ping(context.Background()))
}
