package dto

import "time"

type RaiseAlertRequest struct {
	LoadID    string `json:"load_id"`
	CourierID string `json:"courier_id"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Title     string `json:"title"`
	Message   string `json:"message"`
}

type AlertResponse struct {
	ID                string     `json:"id"`
	LoadID            string     `json:"load_id,omitempty"`
	CourierID         string     `json:"courier_id,omitempty"`
	Type              string     `json:"type"`
	Severity          string     `json:"severity"`
	EscalatedSeverity string     `json:"escalated_severity"`
	AgeMinutes        int        `json:"age_minutes"`
	Title             string     `json:"title"`
	Message           string     `json:"message,omitempty"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	AcknowledgedAt    *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

type ListAlertsResponse struct {
	Alerts []AlertResponse `json:"alerts"`
}

type DismissAlertsRequest struct {
	IDs []string `json:"ids"`
}

type DismissAlertsResponse struct {
	Acknowledged int `json:"acknowledged"`
}
