package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_KeysByTicketID(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, log: zap.NewNop()}

	p.ProduceTicketEvent(context.Background(), TicketEvent{Event: EventTicketCreated, TicketID: "1714", Status: "Mới tiếp nhận", Revenue: 10})

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "1714", string(w.msgs[0].Key))
	var ev TicketEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, EventTicketCreated, ev.Event)
	assert.Equal(t, int64(10), ev.Revenue)
	assert.False(t, ev.At.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_WriteFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, log: zap.New(core)}

	p.ProduceTicketEvent(context.Background(), TicketEvent{Event: EventTicketDeleted, TicketID: "9"})
	assert.Equal(t, 1, logs.FilterMessage("kafka: write ticket event").Len())
}

func TestNewProducer_NoopWithoutBrokers(t *testing.T) {
	p := NewProducer(nil, "topic", nil)
	assert.False(t, p.Enabled())
	p.ProduceTicketEvent(context.Background(), TicketEvent{TicketID: "1"})
	assert.NoError(t, p.Close())

	assert.False(t, NewProducer([]string{"b:9092"}, "", nil).Enabled())
	assert.True(t, NewProducer([]string{"b:9092"}, "t", nil).Enabled())
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, ParseBrokers(""))
}
