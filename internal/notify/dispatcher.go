package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/strideapp/stride/internal/metrics"
	"github.com/strideapp/stride/internal/stride"
)

// Dispatcher delivers signed payloads to subscribers with a bounded
// timeout and at-most-one attempt per subscriber per event.
type Dispatcher struct {
	client *http.Client
	log    *slog.Logger
}

// NewDispatcher creates a Dispatcher. timeout bounds each delivery
// attempt end to end.
func NewDispatcher(timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		log:    logger,
	}
}

// Deliver POSTs the canonical payload to one subscriber with its
// signature in the header.
func (d *Dispatcher) Deliver(ctx context.Context, sub stride.WebhookSubscription, p Payload) error {
	body, err := CanonicalBody(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(body, sub.Secret))

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", sub.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver to %s: status %d", sub.URL, resp.StatusCode)
	}
	return nil
}

// DispatchEvent delivers the event to every subscriber. Failures are
// logged and counted but never propagated: one subscriber's outage
// must not block the others or the caller.
func (d *Dispatcher) DispatchEvent(ctx context.Context, subs []stride.WebhookSubscription, ev stride.Event) {
	payload := NewPayload(ev)
	for _, sub := range subs {
		if err := d.Deliver(ctx, sub, payload); err != nil {
			metrics.WebhookDeliveries.WithLabelValues("failure").Inc()
			d.log.Warn("webhook delivery failed",
				"event", ev.Name, "event_id", ev.ID, "url", sub.URL, "error", err)
			continue
		}
		metrics.WebhookDeliveries.WithLabelValues("success").Inc()
	}
}
