package ledger

import (
	"context"
	"dispatch-coordination-service/internal/ports"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dispatch:alert:pinged:"

var _ ports.PingLedger = (*RedisPingLedger)(nil)

// RedisPingLedger keeps auto-ping markers in Redis so every dispatcher process
// shares them and they survive restarts.
type RedisPingLedger struct {
	client redis.UniversalClient
}

func NewRedisPingLedger(client redis.UniversalClient) *RedisPingLedger {
	return &RedisPingLedger{client: client}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

// MarkPinged sets the marker only if absent. SETNX makes the first caller win
// even across processes.
func (l *RedisPingLedger) MarkPinged(ctx context.Context, alertID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+alertID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark pinged %s: %w", alertID, err)
	}
	return ok, nil
}
