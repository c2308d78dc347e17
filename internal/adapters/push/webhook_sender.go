package push

import (
	"bytes"
	"context"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/obs"
	"dispatch-coordination-service/internal/ports"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var _ ports.PushSender = (*WebhookSender)(nil)

// WebhookSender posts push messages as JSON to an HTTP endpoint that fans them
// out to devices.
type WebhookSender struct {
	client *http.Client
	url    string
	apiKey string
}

func NewWebhookSender(url, apiKey string) *WebhookSender {
	return &WebhookSender{
		client: &http.Client{Timeout: 5 * time.Second},
		url:    url,
		apiKey: apiKey,
	}
}

type webhookPayload struct {
	Recipients []string          `json:"recipients"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
}

func (s *WebhookSender) Send(ctx context.Context, msg ports.PushMessage) (err error) {
	defer obs.Time(ctx, "push.Send")(&err)

	if len(msg.RecipientIDs) == 0 {
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		Recipients: msg.RecipientIDs,
		Title:      msg.Title,
		Body:       msg.Body,
		Data:       msg.Metadata,
	})
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Upstream("push", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return domain.Upstream("push", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}
	return nil
}
