// Package events publishes shipment lifecycle events to Kafka so that
// downstream systems (reporting, notifications) can follow shipments
// without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	skafka "github.com/segmentio/kafka-go"
)

const (
	TypeShipmentCreated = "shipment.created"
	TypeStatusChanged   = "shipment.status_changed"
	TypeApprovalDecided = "shipment.approval_decided"
	TypeAutoApproved    = "shipment.auto_approved"
	TypeTrackingStarted = "driver.tracking_started"
	TypeTrackingStopped = "driver.tracking_stopped"
)

type LifecycleEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	ShipmentID     string    `json:"shipmentID,omitempty"`
	ShipmentNumber string    `json:"shipmentNumber,omitempty"`
	DriverID       string    `json:"driverID,omitempty"`
	Status         string    `json:"status,omitempty"`
	Party          string    `json:"party,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
	ActorID        string    `json:"actorID,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Writer is the subset of kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, key string, event LifecycleEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &skafka.Writer{
		Addr:                   skafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &skafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish writes the event keyed by key, so all events of one shipment land
// on the same partition and keep their order.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, event LifecycleEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	msg := skafka.Message{
		Key:   []byte(key),
		Value: b,
		Headers: []skafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, LifecycleEvent) error { return nil }
func (NopPublisher) Close() error { return nil }
