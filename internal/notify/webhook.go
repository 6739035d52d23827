package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// CompletionNotice is the payload posted when a tour completes. The receiving
// endpoint is expected to tolerate duplicate notices for the same showing.
type CompletionNotice struct {
	ShowingRequestID string    `json:"showing_request_id"`
	CompletedAt      time.Time `json:"completed_at,omitempty"`
}

// IWebhookNotifier posts workflow notifications to the configured endpoint.
type IWebhookNotifier interface {
	NotifyTourCompleted(ctx context.Context, notice CompletionNotice) error
}

// WebhookNotifier is a fire-and-forget HTTP client: the response body is
// discarded beyond the status code and failures are only ever logged by
// callers, never retried synchronously.
type WebhookNotifier struct {
	endpoint string
	client   *http.Client
}

// NewWebhookNotifier creates a notifier for the given endpoint. An empty
// endpoint disables notification (NotifyTourCompleted becomes a logged no-op).
func NewWebhookNotifier(endpoint string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// NotifyTourCompleted posts the completion notice.
func (n *WebhookNotifier) NotifyTourCompleted(ctx context.Context, notice CompletionNotice) error {
	if n.endpoint == "" {
		log.Printf("Completion webhook not configured, skipping notice for showing %s", notice.ShowingRequestID)
		return nil
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal completion notice for showing %s: %w", notice.ShowingRequestID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build completion webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("completion webhook call failed for showing %s: %w", notice.ShowingRequestID, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("completion webhook returned status %d for showing %s", resp.StatusCode, notice.ShowingRequestID)
	}
	return nil
}
