package ports

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"time"
)

// ConfirmOutcome describes the mutations a successful confirmation committed.
type ConfirmOutcome struct {
	Blast            *domain.Blast
	Load             *domain.Load
	ExpiredResponses int
}

// SweepOutcome describes one stale blast closed by the expiry sweep.
type SweepOutcome struct {
	Blast *domain.Blast
	Load  *domain.Load
	Alert *domain.Alert
}

// Port: storage for blasts and their responses.
//
// Every multi-row method is a single atomic unit at the storage layer.
// ConfirmAssignment in particular must be a compare-and-swap on the blast status:
// exactly one concurrent caller observes success.
type BlastRepository interface {
	// Insert the blast and one pending response per courier, moving the load to blasted.
	CreateBlast(ctx context.Context, blast *domain.Blast, courierIDs []string) (*domain.BlastDetail, error)
	GetBlast(ctx context.Context, id string) (*domain.BlastDetail, error)
	MarkViewed(ctx context.Context, blastID, courierID string, at time.Time) (*domain.Response, error)
	ExpressInterest(ctx context.Context, blastID, courierID string, loc *domain.Coordinates, at time.Time) (*domain.Response, error)
	ConfirmAssignment(ctx context.Context, blastID, courierID string, at time.Time) (*ConfirmOutcome, error)
	// changed is false when the courier had already declined.
	DeclineBlast(ctx context.Context, blastID, courierID, reason string, at time.Time) (resp *domain.Response, changed bool, err error)
	CancelBlast(ctx context.Context, blastID string) (*domain.Blast, error)
	// Close every active blast whose expiry is at or before now.
	ExpireStale(ctx context.Context, now time.Time) ([]SweepOutcome, error)
	// Read-only history used for analytics.
	ListBlastHistory(ctx context.Context, since time.Time) ([]*domain.Blast, []*domain.Response, error)
}
