package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPingLedgerFirstCallWins(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisPingLedger(client)
	ctx := context.Background()

	first, err := l.MarkPinged(ctx, "a1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := l.MarkPinged(ctx, "a1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := l.MarkPinged(ctx, "a2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	mr.FastForward(2 * time.Hour)
	afterTTL, err := l.MarkPinged(ctx, "a1", time.Hour)
	require.NoError(t, err)
	assert.True(t, afterTTL)
}

func TestRedisPingLedgerSurfacesErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisPingLedger(client).MarkPinged(context.Background(), "a1", time.Hour)
	assert.Error(t, err)
}

func TestMemoryPingLedger(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := NewMemoryPingLedger(func() time.Time { return now })
	ctx := context.Background()

	first, _ := l.MarkPinged(ctx, "a1", time.Hour)
	again, _ := l.MarkPinged(ctx, "a1", time.Hour)
	assert.True(t, first)
	assert.False(t, again)

	now = now.Add(time.Hour)
	expired, _ := l.MarkPinged(ctx, "a1", time.Hour)
	assert.True(t, expired)
}
