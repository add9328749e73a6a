package consumer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeAcknowledger struct {
	acked    []uint64
	nacked   []uint64
	requeued []bool
	ackErr   error
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	f.requeued = append(f.requeued, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type handlerFunc func(ctx context.Context, body []byte) error

func (h handlerFunc) HandleMessage(ctx context.Context, body []byte) error { return h(ctx, body) }

func delivery(ack *fakeAcknowledger, body []byte, encoding string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger:    ack,
		DeliveryTag:     42,
		ContentEncoding: encoding,
		Body:            body,
	}
}

func TestProcessMessage_AckOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	var got []byte
	h := handlerFunc(func(_ context.Context, body []byte) error {
		got = body
		return nil
	})

	ProcessMessage(context.Background(), zap.NewNop(), "sms.ingest", delivery(ack, []byte(`{"body":"x"}`), ""), h)

	assert.Equal(t, []uint64{42}, ack.acked)
	assert.Empty(t, ack.nacked)
	assert.JSONEq(t, `{"body":"x"}`, string(got))
}

func TestProcessMessage_Base64Body(t *testing.T) {
	ack := &fakeAcknowledger{}
	var got []byte
	h := handlerFunc(func(_ context.Context, body []byte) error {
		got = body
		return nil
	})
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"sender":"HDFCBK"}`))

	ProcessMessage(context.Background(), zap.NewNop(), "q", delivery(ack, []byte(encoded), EncodingBase64), h)

	assert.Equal(t, `{"sender":"HDFCBK"}`, string(got))
	assert.Equal(t, []uint64{42}, ack.acked)
}

func TestProcessMessage_BadBase64IsRejected(t *testing.T) {
	ack := &fakeAcknowledger{}
	called := false
	h := handlerFunc(func(context.Context, []byte) error {
		called = true
		return nil
	})

	ProcessMessage(context.Background(), zap.NewNop(), "q", delivery(ack, []byte("%%%"), EncodingBase64), h)

	assert.False(t, called)
	assert.Equal(t, []uint64{42}, ack.nacked)
	assert.Equal(t, []bool{false}, ack.requeued)
}

func TestProcessMessage_HandlerErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		requeue bool
	}{
		{"permanent", errors.New("invalid payload"), false},
		{"retryable", fmt.Errorf("%w: db down", ErrRetry), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			h := handlerFunc(func(context.Context, []byte) error { return tt.err })

			ProcessMessage(context.Background(), zap.NewNop(), "q", delivery(ack, []byte("{}"), ""), h)

			assert.Empty(t, ack.acked)
			assert.Equal(t, []bool{tt.requeue}, ack.requeued)
		})
	}
}

func TestProcessMessage_AckFailureDoesNotNack(t *testing.T) {
	ack := &fakeAcknowledger{ackErr: errors.New("channel closed")}
	h := handlerFunc(func(context.Context, []byte) error { return nil })

	ProcessMessage(context.Background(), zap.NewNop(), "q", delivery(ack, []byte("{}"), ""), h)

	assert.Empty(t, ack.nacked)
}
