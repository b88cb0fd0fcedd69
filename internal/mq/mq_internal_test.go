package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/septivank/meter-reconciler/internal/reading"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []published
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error { f.acked++; return nil }

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(uint64, bool) error { return nil }

var testPublisherConfig = PublisherConfig{
	Exchange:          "events",
	ReadingRoutingKey: "meter.reading.reconciled",
	RunDoneRoutingKey: "reconciliation.run.completed",
}

func TestPublisher_PublishReading(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, testPublisherConfig, zap.NewNop())

	event := ReconciledReadingEvent{
		RunID:   "run-1",
		SiteID:  4242,
		Reading: reading.NewMeterReading(1, "mr-1", "cold water", "0012"),
	}
	require.NoError(t, p.PublishReading(context.Background(), event))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "events", got.exchange)
	assert.Equal(t, "meter.reading.reconciled", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, "12", decoded["reading"].(map[string]any)["serial_normalized"])
}

func TestPublisher_PublishRunCompleted(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, testPublisherConfig, zap.NewNop())

	require.NoError(t, p.PublishRunCompleted(context.Background(), RunCompletedEvent{
		RunID:     "run-1",
		Total:     3,
		Matched:   2,
		Unmatched: 1,
		SyncTime:  time.Date(2025, 12, 29, 10, 0, 0, 0, time.UTC),
	}))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "reconciliation.run.completed", ch.published[0].key)
	assert.Contains(t, string(ch.published[0].msg.Body), `"matched":2`)
}

func TestPublisher_Error(t *testing.T) {
	p := newPublisher(&fakeChannel{err: errors.New("channel closed")}, testPublisherConfig, zap.NewNop())

	err := p.PublishRunCompleted(context.Background(), RunCompletedEvent{RunID: "run-1"})
	assert.ErrorContains(t, err, "channel closed")
}

func TestPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, testPublisherConfig, zap.NewNop())

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestConsumer_AcksOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	var got []byte
	c := &Consumer{logger: zap.NewNop(), handler: func(_ context.Context, body []byte) error {
		got = body
		return nil
	}}

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(`{"request_id":"r"}`)})

	assert.Equal(t, `{"request_id":"r"}`, string(got))
	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)
}

func TestConsumer_DeadLettersOnFailure(t *testing.T) {
	ack := &fakeAcknowledger{requeue: true}
	c := &Consumer{logger: zap.NewNop(), handler: func(context.Context, []byte) error {
		return errors.New("stage failed")
	}}

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack})

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestConsumer_StopsOnContextCancel(t *testing.T) {
	c := &Consumer{logger: zap.NewNop(), handler: func(context.Context, []byte) error { return nil }}
	ctx, cancel := context.WithCancel(context.Background())
	msgs := make(chan amqp.Delivery)

	done := make(chan struct{})
	go func() {
		c.consume(ctx, msgs)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}
