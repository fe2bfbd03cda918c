package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightbid/internal/types"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func sampleEvent() Event {
	amount := types.USD(50000)
	return Event{Type: BidSubmitted, BookingID: uuid.New(), ActorID: "car-1", Amount: &amount}
}

func TestKafkaPublisher_KeysByBooking(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw)
	ev := sampleEvent()

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, ev.BookingID.String(), string(fw.msgs[0].Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &decoded))
	assert.Equal(t, BidSubmitted, decoded.Type)
	assert.Equal(t, int64(50000), decoded.Amount.Amount)
}

func TestRabbitPublisher_DeclaresAndPublishes(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewRabbitPublisherWithChannel(ch, "freight.events")
	require.NoError(t, err)
	assert.Equal(t, []string{"freight.events"}, ch.declared)

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, ch.published, 1)
	assert.Equal(t, "freight.events", ch.keys[0])
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, string(BidSubmitted), ch.published[0].Type)
}

func TestEmit_LogsFailuresWithoutReturning(t *testing.T) {
	log, hook := test.NewNullLogger()
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: errors.New("broker down")})

	Emit(context.Background(), p, log, sampleEvent())

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, BidSubmitted, hook.LastEntry().Data["event"])
}

func TestEmit_StampsTime(t *testing.T) {
	fw := &fakeWriter{}
	log, _ := test.NewNullLogger()
	Emit(context.Background(), NewKafkaPublisherWithWriter(fw), log, sampleEvent())

	var decoded Event
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &decoded))
	assert.False(t, decoded.OccurredAt.IsZero())
}
