// Package realtime turns store writes into change-feed events. With Redis
// configured, events travel through a pub/sub channel so that every API
// instance fans them out to its own websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"waste-tracking-api-server/internal/logger"
	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/socket"
)

// Notifier is what services call after a successful write.
type Notifier interface {
	Notify(ctx context.Context, table, changeType, recordID string)
}

type Broker struct {
	hub     *socket.Hub
	redis   *redis.Client
	channel string
	now     func() time.Time
	// relaying is true while Run is subscribed and feeding the local hub.
	relaying atomic.Bool
}

// NewBroker returns a broker that broadcasts locally. Pass a non-nil client
// to route events through Redis instead.
func NewBroker(hub *socket.Hub, client *redis.Client, channel string) *Broker {
	return &Broker{hub: hub, redis: client, channel: channel, now: time.Now}
}

func (b *Broker) Notify(ctx context.Context, table, changeType, recordID string) {
	event := models.ChangeEvent{
		ID:         uuid.NewString(),
		Table:      table,
		Type:       changeType,
		RecordID:   recordID,
		OccurredAt: b.now().UTC(),
	}
	if b.redis == nil {
		b.hub.Broadcast(event)
		return
	}
	relaying := b.relaying.Load()
	if !relaying {
		// Nothing relays the bus back to this instance.
		b.hub.Broadcast(event)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("marshal change event", "err", err)
		return
	}
	if err := b.redis.Publish(ctx, b.channel, payload).Err(); err != nil {
		logger.Warn("redis publish failed", "err", err, "table", table)
		if relaying {
			b.hub.Broadcast(event)
		}
	}
}

// Relaying reports whether events published to Redis reach the local hub.
func (b *Broker) Relaying() bool {
	return b.relaying.Load()
}

// Run relays events from Redis to the local hub until ctx is done.
// It returns immediately when no Redis client is configured.
func (b *Broker) Run(ctx context.Context) error {
	if b.redis == nil {
		return nil
	}
	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.relaying.Store(true)
	defer b.relaying.Store(false)
	logger.Info("change feed subscribed", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn("bad change event on bus", "err", err)
				continue
			}
			b.hub.Broadcast(event)
		}
	}
}
