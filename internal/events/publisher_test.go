package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	skafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter records messages written.
type fakeWriter struct {
	msgs []skafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), "SH1", LifecycleEvent{
		ID: "e1", Type: TypeStatusChanged, ShipmentNumber: "SH1", Status: "in_transit", OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "SH1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeStatusChanged, string(msg.Headers[0].Value))

	var got LifecycleEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "in_transit", got.Status)
}

func TestPublishWriteError(t *testing.T) {
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: errors.New("broker down")})
	err := p.Publish(context.Background(), "SH1", LifecycleEvent{Type: TypeAutoApproved})
	assert.ErrorContains(t, err, "broker down")
}
