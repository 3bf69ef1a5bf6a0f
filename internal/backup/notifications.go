package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookPayload is the JSON document posted to the webhook endpoint
type WebhookPayload struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Storage    string    `json:"storage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
	Uploaded   int       `json:"uploaded"`
	Unchanged  int       `json:"unchanged"`
	Failed     int       `json:"failed"`
	Fatal      string    `json:"fatal,omitempty"`

	Failures []WebhookFailure `json:"failures,omitempty"`
}

// WebhookFailure describes one failed database in the payload
type WebhookFailure struct {
	Host     string `json:"host"`
	Database string `json:"database"`
	Error    string `json:"error"`
}

// WebhookNotifier posts run reports to a configured HTTP endpoint
type WebhookNotifier struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhookNotifier creates a notifier for the given webhook configuration
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enabled reports whether a webhook URL is configured
func (wn *WebhookNotifier) Enabled() bool {
	return wn.config.URL != ""
}

// ShouldNotify checks whether the report outcome matches the trigger mode
func (wn *WebhookNotifier) ShouldNotify(report *RunReport) bool {
	if !wn.Enabled() {
		return false
	}
	if wn.config.On == WebhookOnAlways {
		return true
	}
	return report.Failed() > 0 || report.Fatal != ""
}

// Notify posts the report as a JSON payload. Delivery failures are
// returned to the caller for logging and never affect the run outcome.
func (wn *WebhookNotifier) Notify(ctx context.Context, report *RunReport) error {
	if wn.config.URL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	payload, err := json.Marshal(buildWebhookPayload(report))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}

	return nil
}

// buildWebhookPayload flattens a run report into the wire document
func buildWebhookPayload(report *RunReport) WebhookPayload {
	payload := WebhookPayload{
		RunID:      report.RunID,
		Status:     report.Status,
		Storage:    report.Storage,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Duration:   report.Duration.Round(time.Millisecond).String(),
		Uploaded:   report.Uploaded(),
		Unchanged:  report.Unchanged(),
		Failed:     report.Failed(),
		Fatal:      report.Fatal,
	}

	for _, result := range report.Databases {
		if result.Status != StatusFailed {
			continue
		}
		payload.Failures = append(payload.Failures, WebhookFailure{
			Host:     result.Host,
			Database: result.Database,
			Error:    result.Error,
		})
	}

	return payload
}
