package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
)

// WebhookSender posts alerts as JSON to an HTTP endpoint with a bearer
// token. Any 2xx response is an acknowledgment; everything else is a
// delivery failure for the dispatcher to retry.
type WebhookSender struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

// NewWebhookSender создаёт HTTP-отправитель уведомлений
func NewWebhookSender(url, token string) *WebhookSender {
	return &WebhookSender{
		URL:        url,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// webhookPayload is the outbound message shape.
type webhookPayload struct {
	StreamID  string            `json:"stream_id"`
	Kind      models.HazardKind `json:"hazard_kind"`
	Severity  models.Severity   `json:"severity"`
	Renewal   bool              `json:"renewal,omitempty"`
	Message   string            `json:"message"`
	Snapshot  string            `json:"snapshot,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func (s *WebhookSender) Send(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(webhookPayload{
		StreamID:  alert.StreamID,
		Kind:      alert.Kind,
		Severity:  alert.Severity,
		Renewal:   alert.Renewal,
		Message:   Message(alert),
		Snapshot:  alert.Snapshot,
		Timestamp: alert.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bad status: %s, error: %s", resp.Status, bodyBytes)
	}
	return nil
}

// Message renders the operator-facing warning text for an alert.
func Message(alert models.Alert) string {
	var text string
	switch alert.Kind {
	case models.HazardMissingHardhat:
		text = "Warning: Someone is not wearing a hardhat!"
	case models.HazardMissingMask:
		text = "Warning: Someone is not wearing a mask!"
	case models.HazardMissingVest:
		text = "Warning: Someone is not wearing a safety vest!"
	case models.HazardMachineryProximity:
		text = "Warning: There is a person approaching the machinery or vehicle!"
	default:
		text = fmt.Sprintf("Warning: %s", alert.Kind)
	}
	return fmt.Sprintf("[%s] %s Location: [%.0f, %.0f, %.0f, %.0f]",
		alert.Timestamp.Format("2006-01-02 15:04:05"), text,
		alert.Person.Box.X1, alert.Person.Box.Y1, alert.Person.Box.X2, alert.Person.Box.Y2)
}
