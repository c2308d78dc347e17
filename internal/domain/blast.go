package domain

import "time"

type BlastStatus string

const (
	BlastActive    BlastStatus = "active"
	BlastAccepted  BlastStatus = "accepted"
	BlastExpired   BlastStatus = "expired"
	BlastCancelled BlastStatus = "cancelled"
)

type BlastPriority string

const (
	PriorityNormal BlastPriority = "normal"
	PriorityHigh   BlastPriority = "high"
	PriorityUrgent BlastPriority = "urgent"
)

func (p BlastPriority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// DefaultBlastTTL is how long an offer stays open when the caller does not say.
const DefaultBlastTTL = 30 * time.Minute

// Blast is a broadcast offer of one load to a set of couriers.
// At most one of its responses is ever confirmed; once that happens the blast is
// accepted and every sibling response is expired.
type Blast struct {
	ID            string
	LoadID        string
	CreatedBy     string
	Priority      BlastPriority
	RadiusMiles   float64
	Status        BlastStatus
	AcceptedBy    string
	AcceptedAt    *time.Time
	ExpiresAt     time.Time
	NotifiedCount int
	ViewedCount   int
	DeclinedCount int
	CreatedAt     time.Time
}

// IsStale reports whether an active blast has outlived its expiry.
// Expiry is advisory; readers treat stale blasts as closed.
func (b *Blast) IsStale(now time.Time) bool {
	return b.Status == BlastActive && !now.Before(b.ExpiresAt)
}

type ResponseStatus string

const (
	ResponsePending    ResponseStatus = "pending"
	ResponseViewed     ResponseStatus = "viewed"
	ResponseInterested ResponseStatus = "interested"
	ResponseDeclined   ResponseStatus = "declined"
	ResponseExpired    ResponseStatus = "expired"
)

// IsFinal reports whether the response can no longer move on its own.
func (s ResponseStatus) IsFinal() bool {
	return s == ResponseDeclined || s == ResponseExpired
}

// Response is one courier's standing invitation under a blast.
type Response struct {
	ID              string
	BlastID         string
	CourierID       string
	Status          ResponseStatus
	ResponseSeconds *float64
	DeclineReason   string
	Location        *Coordinates
	RespondedAt     *time.Time
	CreatedAt       time.Time
}

// BlastDetail is the read-side aggregate of a blast and all of its responses.
type BlastDetail struct {
	Blast     *Blast
	Responses []*Response
}

// Response returns the courier's response, or nil when the courier was not invited.
func (d *BlastDetail) Response(courierID string) *Response {
	for _, r := range d.Responses {
		if r.CourierID == courierID {
			return r
		}
	}
	return nil
}

// BlastAnalytics summarizes blast history. It is derived, never stored.
type BlastAnalytics struct {
	TotalBlasts        int
	ActiveBlasts       int
	AcceptedBlasts     int
	AssignmentRate     float64
	AvgResponseSeconds float64
	TotalNotified      int
}

// ComputeBlastAnalytics aggregates persisted blasts and responses.
// Mean latency only counts responses that reached interested.
func ComputeBlastAnalytics(blasts []*Blast, responses []*Response) BlastAnalytics {
	var out BlastAnalytics
	out.TotalBlasts = len(blasts)

	for _, b := range blasts {
		switch b.Status {
		case BlastActive:
			out.ActiveBlasts++
		case BlastAccepted:
			out.AcceptedBlasts++
		}
		out.TotalNotified += b.NotifiedCount
	}
	if out.TotalBlasts > 0 {
		out.AssignmentRate = float64(out.AcceptedBlasts) / float64(out.TotalBlasts)
	}

	var sum float64
	var n int
	for _, r := range responses {
		if r.Status != ResponseInterested || r.ResponseSeconds == nil {
			continue
		}
		sum += *r.ResponseSeconds
		n++
	}
	if n > 0 {
		out.AvgResponseSeconds = sum / float64(n)
	}

	return out
}
