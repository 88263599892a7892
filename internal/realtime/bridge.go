package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lalith-99/agora/internal/engine"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChangeChannel is the Redis pub/sub channel change events travel on.
const ChangeChannel = "agora:changes"

const publishTimeout = 2 * time.Second

// Bridge fans change events across nodes over Redis pub/sub. Local
// subscribers are served directly through the hub; the Redis hop exists so
// a vote committed on one node refreshes subscriptions held on another.
//
// Duplicate delivery (local publish + own message echoed back) is
// harmless: the hub coalesces dirty signals per subscription.
type Bridge struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewBridge(client *redis.Client, hub *Hub, logger *zap.Logger) *Bridge {
	return &Bridge{client: client, hub: hub, logger: logger}
}

var _ engine.Publisher = (*Bridge)(nil)

// Publish delivers locally first, then best-effort to the other nodes.
// A Redis outage degrades to single-node liveness, never to a failed write.
func (b *Bridge) Publish(change engine.Change) {
	b.hub.Publish(change)

	raw, err := json.Marshal(change)
	if err != nil {
		b.logger.Error("marshal change event", zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := b.client.Publish(ctx, ChangeChannel, raw).Err(); err != nil {
			b.logger.Warn("publish change to redis", zap.Error(err))
		}
	}()
}

// Run consumes remote change events until ctx is cancelled. Call it in its
// own goroutine at startup.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, ChangeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change engine.Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.Warn("malformed change event", zap.Error(err))
				continue
			}
			b.hub.Publish(change)
		}
	}
}
