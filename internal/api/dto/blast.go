package dto

import (
	"dispatch-coordination-service/internal/domain"
	"time"
)

type CreateBlastRequest struct {
	LoadID      string   `json:"load_id"`
	CreatedBy   string   `json:"created_by"`
	CourierIDs  []string `json:"courier_ids"`
	Priority    string   `json:"priority"`
	RadiusMiles float64  `json:"radius_miles"`
	TTLSeconds  int      `json:"ttl_seconds"`
}

// CourierActionRequest is the body of every per-courier blast action.
// Location is only read by interest and Reason only by decline.
type CourierActionRequest struct {
	CourierID string       `json:"courier_id"`
	Location  *Coordinates `json:"location,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

type BlastResponse struct {
	ID            string     `json:"id"`
	LoadID        string     `json:"load_id"`
	CreatedBy     string     `json:"created_by,omitempty"`
	Priority      string     `json:"priority"`
	RadiusMiles   float64    `json:"radius_miles,omitempty"`
	Status        string     `json:"status"`
	AcceptedBy    string     `json:"accepted_by,omitempty"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
	NotifiedCount int        `json:"notified_count"`
	ViewedCount   int        `json:"viewed_count"`
	DeclinedCount int        `json:"declined_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

func FromBlast(b *domain.Blast) BlastResponse {
	return BlastResponse{
		ID:            b.ID,
		LoadID:        b.LoadID,
		CreatedBy:     b.CreatedBy,
		Priority:      string(b.Priority),
		RadiusMiles:   b.RadiusMiles,
		Status:        string(b.Status),
		AcceptedBy:    b.AcceptedBy,
		AcceptedAt:    b.AcceptedAt,
		ExpiresAt:     b.ExpiresAt,
		NotifiedCount: b.NotifiedCount,
		ViewedCount:   b.ViewedCount,
		DeclinedCount: b.DeclinedCount,
		CreatedAt:     b.CreatedAt,
	}
}

type CourierResponse struct {
	ID              string       `json:"id"`
	BlastID         string       `json:"blast_id"`
	CourierID       string       `json:"courier_id"`
	Status          string       `json:"status"`
	ResponseSeconds *float64     `json:"response_seconds,omitempty"`
	DeclineReason   string       `json:"decline_reason,omitempty"`
	Location        *Coordinates `json:"location,omitempty"`
	RespondedAt     *time.Time   `json:"responded_at,omitempty"`
}

func FromResponse(r *domain.Response) CourierResponse {
	out := CourierResponse{
		ID:              r.ID,
		BlastID:         r.BlastID,
		CourierID:       r.CourierID,
		Status:          string(r.Status),
		ResponseSeconds: r.ResponseSeconds,
		DeclineReason:   r.DeclineReason,
		RespondedAt:     r.RespondedAt,
	}
	if r.Location != nil {
		out.Location = &Coordinates{Lat: r.Location.Lat, Lon: r.Location.Lon}
	}
	return out
}

type BlastDetailResponse struct {
	Blast     BlastResponse     `json:"blast"`
	Responses []CourierResponse `json:"responses"`
}

func FromBlastDetail(d *domain.BlastDetail) BlastDetailResponse {
	out := BlastDetailResponse{
		Blast:     FromBlast(d.Blast),
		Responses: make([]CourierResponse, 0, len(d.Responses)),
	}
	for _, r := range d.Responses {
		out.Responses = append(out.Responses, FromResponse(r))
	}
	return out
}

type ConfirmResponse struct {
	Blast            BlastResponse `json:"blast"`
	Load             LoadResponse  `json:"load"`
	ExpiredResponses int           `json:"expired_responses"`
}

type AnalyticsResponse struct {
	Since              time.Time `json:"since"`
	TotalBlasts        int       `json:"total_blasts"`
	ActiveBlasts       int       `json:"active_blasts"`
	AcceptedBlasts     int       `json:"accepted_blasts"`
	AssignmentRate     float64   `json:"assignment_rate"`
	AvgResponseSeconds float64   `json:"avg_response_seconds"`
	TotalNotified      int       `json:"total_notified"`
}
