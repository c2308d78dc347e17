package ledger

import (
	"context"
	"dispatch-coordination-service/internal/ports"
	"sync"
	"time"
)

var _ ports.PingLedger = (*MemoryPingLedger)(nil)

// MemoryPingLedger is the single-process ledger used when Redis is not configured.
type MemoryPingLedger struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time
}

func NewMemoryPingLedger(now func() time.Time) *MemoryPingLedger {
	if now == nil {
		now = time.Now
	}
	return &MemoryPingLedger{now: now, entries: map[string]time.Time{}}
}

func (l *MemoryPingLedger) MarkPinged(_ context.Context, alertID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.entries[alertID]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}

	for id, exp := range l.entries {
		if !exp.IsZero() && !now.Before(exp) {
			delete(l.entries, id)
		}
	}

	// A zero expiry never lapses.
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	l.entries[alertID] = exp
	return true, nil
}
