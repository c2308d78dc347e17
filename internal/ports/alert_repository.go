package ports

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"time"
)

// Port: storage for alerts. Status writes are idempotent.
type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *domain.Alert) error
	GetAlert(ctx context.Context, id string) (*domain.Alert, error)
	// Retrieve alerts created at or after since.
	ListAlertsSince(ctx context.Context, since time.Time) ([]*domain.Alert, error)
	AcknowledgeAlerts(ctx context.Context, ids []string, at time.Time) (int, error)
	ResolveAlert(ctx context.Context, id string, at time.Time) error
}
