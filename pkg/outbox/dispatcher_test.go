package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureProducer struct {
	msgs []kafka.Message
	err  error
}

func (c *captureProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatch_PublishesEvent(t *testing.T) {
	producer := &captureProducer{}
	d := NewDispatcher(testLogger(), producer, "payment.events")

	err := d.Dispatch(context.Background(), Event{
		ID:          7,
		AggregateID: "pay-1",
		Type:        "PaymentSucceeded",
		Payload:     []byte(`{"paymentId":"pay-1"}`),
		Headers:     map[string]string{"source": "payments-service"},
		Traceparent: "00-abc-def-01",
	})
	require.NoError(t, err)

	require.Len(t, producer.msgs, 1)
	msg := producer.msgs[0]
	assert.Equal(t, "payment.events", msg.Topic)
	assert.Equal(t, []byte("pay-1"), msg.Key)
	assert.JSONEq(t, `{"paymentId":"pay-1"}`, string(msg.Value))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "PaymentSucceeded", headers["event_type"])
	assert.Equal(t, "00-abc-def-01", headers["traceparent"])
	assert.Equal(t, "payments-service", headers["source"])
}

func TestDispatch_ProducerError(t *testing.T) {
	producer := &captureProducer{err: errors.New("broker unavailable")}
	d := NewDispatcher(testLogger(), producer, "payment.events")

	err := d.Dispatch(context.Background(), Event{ID: 1, AggregateID: "pay-1"})
	assert.Error(t, err)
}
