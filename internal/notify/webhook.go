package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// WebhookSink delivers notifications as JSON POSTs to a configured URL.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink creates a webhook sink. Returns an error if the URL is not
// a plausible HTTP endpoint.
func NewWebhookSink(url string) (*WebhookSink, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", url)
	}
	return &WebhookSink{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// webhookPayload is the wire shape posted to the webhook endpoint.
type webhookPayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	SentAt string `json:"sent_at"`
}

// Notify posts the message to the webhook URL. Non-2xx responses are errors.
func (s *WebhookSink) Notify(ctx context.Context, title, body string) error {
	payload := webhookPayload{
		Title:  title,
		Body:   body,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Debug("Failed to send webhook notification", "error", err, "webhook_url", s.url)
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	slog.Debug("Sent webhook notification", "webhook_url", s.url, "title", title)
	return nil
}
