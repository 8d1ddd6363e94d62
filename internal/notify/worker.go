package notify

import (
	"context"
	"log/slog"

	"github.com/strideapp/stride/internal/queue"
	"github.com/strideapp/stride/internal/stride"
)

// SubscriptionLister provides the current webhook subscriptions.
type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context) ([]stride.WebhookSubscription, error)
}

// Worker consumes the discipline event stream and fans each event out
// to subscribers. Every event is acknowledged after its single
// delivery pass, successful or not.
type Worker struct {
	queue      *queue.Queue
	subs       SubscriptionLister
	dispatcher *Dispatcher
	log        *slog.Logger
}

// NewWorker creates a delivery worker.
func NewWorker(q *queue.Queue, subs SubscriptionLister, d *Dispatcher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{queue: q, subs: subs, dispatcher: d, log: logger}
}

// Run blocks on the event stream, delivering events as they arrive,
// until the context is canceled.
func (w *Worker) Run(ctx context.Context, consumer string) error {
	if err := w.queue.EnsureStream(ctx); err != nil {
		return err
	}

	for {
		ev, msgID, err := w.queue.Read(ctx, consumer)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("event read failed", "error", err)
			continue
		}

		subs, err := w.subs.ListSubscriptions(ctx)
		if err != nil {
			w.log.Error("list subscriptions failed", "event_id", ev.ID, "error", err)
		} else {
			w.dispatcher.DispatchEvent(ctx, subs, *ev)
		}

		if err := w.queue.Ack(ctx, msgID); err != nil {
			w.log.Error("event ack failed", "event_id", ev.ID, "error", err)
		}
	}
}
