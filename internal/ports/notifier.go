package ports

import (
	"context"
	"dispatch-coordination-service/internal/domain"
)

// PushMessage is a best-effort notification to a set of recipients.
type PushMessage struct {
	RecipientIDs []string
	Title        string
	Body         string
	Metadata     map[string]string
}

// Contract for the external push-notification service.
// Delivery is fire-and-forget; callers treat errors as UpstreamUnavailable and move on.
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) error
}

// Contract for resolving a free-text address to coordinates.
// A nil result with a nil error means the address could not be resolved.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*domain.Coordinates, error)
}
