// Package notify delivers fire-and-forget governance event notifications to
// downstream collaborators. Delivery is best-effort: a failed notification
// never fails the operation that emitted it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Event kinds emitted by the lifecycle controller.
const (
	KindProposalCreated   = "proposal_created"
	KindVoteCast          = "vote_cast"
	KindProposalQueued    = "proposal_queued"
	KindProposalExecuted  = "proposal_executed"
	KindProposalCancelled = "proposal_cancelled"
)

// Event describes one governance occurrence.
type Event struct {
	ProposalID string `json:"proposal_id"`
	ExternalID string `json:"external_id,omitempty"`
	Actor      string `json:"actor"`
	Kind       string `json:"kind"`
}

// Notifier publishes governance events.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LogNotifier writes events to the log. Used when no webhook is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event Event) {
	n.logger.Info().
		Str("kind", event.Kind).
		Str("proposal_id", event.ProposalID).
		Str("external_id", event.ExternalID).
		Str("actor", event.Actor).
		Msg("governance event")
}

// WebhookNotifier POSTs events as JSON to a configured endpoint from a
// background goroutine so callers never block on delivery.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	logger  zerolog.Logger
	timeout time.Duration
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "webhook_notifier").Logger(),
		timeout: timeout,
	}
}

// Notify implements Notifier. Errors are logged and dropped.
func (n *WebhookNotifier) Notify(_ context.Context, event Event) {
	go func() {
		body, err := json.Marshal(event)
		if err != nil {
			n.logger.Error().Err(err).Msg("failed to encode notification")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			n.logger.Error().Err(err).Msg("failed to build notification request")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Warn().Err(err).Str("kind", event.Kind).Msg("notification delivery failed")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			n.logger.Warn().
				Int("status", resp.StatusCode).
				Str("kind", event.Kind).
				Msg("notification endpoint returned non-success status")
		}
	}()
}
