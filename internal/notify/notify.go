// Package notify hands events to the external notification dispatcher.
// Delivery is fire-and-forget over Redis pub/sub: the dispatcher service
// consumes the channel; a failure here never fails the write that
// triggered the notification.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lalith-99/agora/internal/engine"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel the dispatcher listens on.
const Channel = "agora:notifications"

const publishTimeout = 2 * time.Second

type Dispatcher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewDispatcher(client *redis.Client, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{client: client, logger: logger}
}

var _ engine.Notifier = (*Dispatcher)(nil)

// Notify publishes the notification best-effort and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, n engine.Notification) {
	raw, err := json.Marshal(n)
	if err != nil {
		d.logger.Error("marshal notification", zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := d.client.Publish(ctx, Channel, raw).Err(); err != nil {
			d.logger.Warn("publish notification",
				zap.Error(err),
				zap.String("kind", n.Kind),
			)
		}
	}()
}
