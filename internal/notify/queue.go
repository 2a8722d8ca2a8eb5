package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/redis"
)

const pollTimeout = 5 * time.Second

// Queue hands tickets to cmd/notifier-service through a Redis list.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

func (q *Queue) Dispatch(ctx context.Context, t Ticket) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode ticket: %w", err)
	}
	return q.client.Enqueue(ctx, q.key, payload)
}

// Consume delivers queued tickets until ctx is canceled.
func Consume(ctx context.Context, client *redis.Client, key string, d Deliverer, logger *zap.Logger) {
	logger.Info("notification worker started", zap.String("queue", key))

	for {
		if ctx.Err() != nil {
			logger.Info("notification worker stopped")
			return
		}

		payload, err := client.Dequeue(ctx, key, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error("failed to read notification queue", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if payload == nil {
			continue
		}

		var t Ticket
		if err := json.Unmarshal(payload, &t); err != nil {
			logger.Error("dropping malformed notification", zap.Error(err))
			continue
		}

		if err := d.Deliver(ctx, t); err != nil {
			logger.Error("failed to deliver ticket email",
				zap.Uint("sale_id", t.SaleID),
				zap.String("buyer_email", t.BuyerEmail),
				zap.Error(err),
			)
		}
	}
}
