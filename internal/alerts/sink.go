// Package alerts provides delivery of hard-stop alerts to configured sinks.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Alert is the payload emitted when the hard-stop kill-switch triggers
type Alert struct {
	Timestamp         time.Time `json:"timestamp"`
	Reason            string    `json:"reason"`
	TraceID           string    `json:"trace_id"`
	DailyLoss         float64   `json:"daily_loss"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	BankrollPercent   float64   `json:"bankroll_percent"`
}

// Sink delivers alerts. Implementations must not block the decision path for
// long; delivery failures are the sink's problem, not the caller's.
type Sink interface {
	Send(ctx context.Context, alert Alert) error
}

// LogSink writes alerts to the structured log
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a log-backed alert sink
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{
		log: log.With().Str("component", "alert_log_sink").Logger(),
	}
}

// Send logs the alert at warn level
func (s *LogSink) Send(_ context.Context, alert Alert) error {
	s.log.Warn().
		Str("reason", alert.Reason).
		Str("trace_id", alert.TraceID).
		Float64("daily_loss", alert.DailyLoss).
		Int("consecutive_losses", alert.ConsecutiveLosses).
		Float64("bankroll_percent", alert.BankrollPercent).
		Msg("HARD STOP triggered")
	return nil
}

// WebhookSink POSTs alerts as JSON to a configured URL
type WebhookSink struct {
	client *http.Client
	url    string
	log    zerolog.Logger
}

// NewWebhookSink creates a webhook-backed alert sink
func NewWebhookSink(url string, timeout time.Duration, log zerolog.Logger) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		client: &http.Client{Timeout: timeout},
		url:    url,
		log:    log.With().Str("component", "alert_webhook_sink").Logger(),
	}
}

// Send delivers the alert to the webhook endpoint
func (s *WebhookSink) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// MultiSink fans out to several sinks, best effort. Delivery failures are
// logged and swallowed so a broken sink never blocks risk handling.
type MultiSink struct {
	sinks []Sink
	log   zerolog.Logger
}

// NewMultiSink creates a fan-out sink
func NewMultiSink(log zerolog.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{
		sinks: sinks,
		log:   log.With().Str("component", "alert_multi_sink").Logger(),
	}
}

// Send delivers the alert to every configured sink
func (s *MultiSink) Send(ctx context.Context, alert Alert) error {
	for _, sink := range s.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			s.log.Error().Err(err).Str("reason", alert.Reason).Msg("Alert delivery failed")
		}
	}
	return nil
}
