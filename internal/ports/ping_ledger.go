package ports

import (
	"context"
	"time"
)

// PingLedger records which alerts already fired their auto-ping side effect.
// Entries are keyed by alert id and must outlive any single evaluation or process.
type PingLedger interface {
	// MarkPinged records the ping and reports whether this call was the first.
	MarkPinged(ctx context.Context, alertID string, ttl time.Duration) (bool, error)
}

// Clock supplies the current time so the core never reads the wall clock directly.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
