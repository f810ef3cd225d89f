package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	redis "github.com/redis/go-redis/v9"

	"github.com/agentrange/deal-server/config"
	"github.com/agentrange/deal-server/errortypes"
)

const availsKeyTemplate = "avails:%s"

// NewRedisLedger builds a Redis-backed ledger shared across server instances.
// Avails are seeded externally under "avails:{productID}" keys.
func NewRedisLedger(cfg config.RedisLedger) Ledger {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout == 0 {
		timeout = 200 * time.Millisecond
	}

	return &redisLedger{
		client:  redis.NewClient(opts),
		timeout: timeout,
	}
}

type redisLedger struct {
	client  *redis.Client
	timeout time.Duration
}

// Reserve decrements the avails counter and rolls the decrement back when it
// oversells. DECRBY is atomic, so concurrent reservations cannot both observe
// the same remaining volume.
func (l *redisLedger) Reserve(ctx context.Context, productID string, volume int64) error {
	opCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := fmt.Sprintf(availsKeyTemplate, productID)
	remaining, err := l.client.DecrBy(opCtx, key, volume).Result()
	if err != nil {
		return fmt.Errorf("redis reserve failed: %w", err)
	}
	if remaining < 0 {
		if err := l.client.IncrBy(opCtx, key, volume).Err(); err != nil {
			glog.Errorf("Failed to roll back oversold reservation for product %s: %v", productID, err)
		}
		return &errortypes.AllocationUnavailable{
			Message: fmt.Sprintf("product %s cannot cover %d impressions", productID, volume),
		}
	}
	return nil
}

func (l *redisLedger) Release(ctx context.Context, productID string, volume int64) error {
	opCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := fmt.Sprintf(availsKeyTemplate, productID)
	if err := l.client.IncrBy(opCtx, key, volume).Err(); err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}
