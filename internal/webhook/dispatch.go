package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"adscope/internal/domain"
	"adscope/internal/infra"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Type          string          `json:"event"`
	AdID          string          `json:"ad_id"`
	Brand         string          `json:"brand,omitempty"`
	IsAnomaly     bool            `json:"is_anomaly"`
	AnomalyReason string          `json:"anomaly_reason,omitempty"`
	Digest        json.RawMessage `json:"digest,omitempty"`
}

// DispatcherOptions configures webhook delivery.
type DispatcherOptions struct {
	Repo       domain.WebhookRepository
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     infra.Logger
}

// Dispatcher fans events out to active subscriptions. Delivery is best-effort
// and at-most-once: a failed POST is logged and dropped, never retried, and a
// delivery failure never fails the job that produced the event.
type Dispatcher struct {
	repo       domain.WebhookRepository
	httpClient *http.Client
	timeout    time.Duration
	logger     infra.Logger
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		repo:       opts.Repo,
		httpClient: client,
		timeout:    timeout,
		logger:     opts.Logger,
	}
}

// Dispatch delivers the event to every active subscription that listens for
// its type. Subscriptions are posted sequentially; the per-subscription
// timeout bounds how long one slow endpoint can hold the worker.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	if d.repo == nil {
		return
	}
	subs, err := d.repo.ListActive(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Str("event", event.Type).Msg("webhook subscription lookup failed")
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Warn().Err(err).Str("event", event.Type).Msg("webhook payload marshal failed")
		return
	}

	for _, sub := range subs {
		if !sub.WantsEvent(event.Type) {
			continue
		}
		if err := d.deliver(ctx, sub, event.Type, body); err != nil {
			d.logger.Warn().Err(err).
				Str("event", event.Type).
				Str("subscription_id", sub.ID).
				Str("url", sub.URL).
				Msg("webhook delivery failed")
			continue
		}
		d.logger.Debug().
			Str("event", event.Type).
			Str("subscription_id", sub.ID).
			Msg("webhook delivered")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sub domain.WebhookSubscription, eventType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Adscope-Event", eventType)
	if sub.Secret != "" {
		req.Header.Set("X-Adscope-Secret", sub.Secret)
		req.Header.Set("X-Adscope-Signature", Sign(sub.Secret, body))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of the payload with the subscription
// secret. Receivers recompute it to authenticate the delivery.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}
