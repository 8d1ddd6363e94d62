// Package discipline is the scoring and enforcement engine. All state
// for one user (score, classification, trend, enforcement mode, audit
// entry) changes inside a single per-user transaction; notification
// events are queued only after that transaction commits.
package discipline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/strideapp/stride/internal/audit"
	"github.com/strideapp/stride/internal/config"
	"github.com/strideapp/stride/internal/metrics"
	"github.com/strideapp/stride/internal/stride"
)

// Publisher queues an event for asynchronous webhook delivery.
type Publisher interface {
	Publish(ctx context.Context, ev stride.Event) error
}

// Engine evaluates action outcomes and drives the enforcement state
// machine.
type Engine struct {
	store  stride.UserStore
	audit  *audit.Recorder
	events Publisher
	policy *config.Policy
	log    *slog.Logger
	now    func() time.Time
}

// New creates an Engine. events may be nil when no dispatch target is
// wired (events are then dropped with a warning).
func New(store stride.UserStore, rec *audit.Recorder, events Publisher, policy *config.Policy, logger *slog.Logger) *Engine {
	if policy == nil {
		policy = config.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		audit:  rec,
		events: events,
		policy: policy,
		log:    logger,
		now:    time.Now,
	}
}

// HandleMissedAction runs one full enforcement evaluation for a missed
// action: score decrement, classification refresh, trend degradation,
// possible one-step escalation, audit entry, and change events.
func (e *Engine) HandleMissedAction(ctx context.Context, userID, source string) error {
	return e.evaluate(ctx, userID, stride.OutcomeMissed, source)
}

// HandleCompletedAction is the symmetric evaluation for a completed
// action: score increment, classification refresh, trend recovery, and
// possible one-step de-escalation.
func (e *Engine) HandleCompletedAction(ctx context.Context, userID, source string) error {
	return e.evaluate(ctx, userID, stride.OutcomeCompleted, source)
}

func (e *Engine) evaluate(ctx context.Context, userID string, outcome stride.Outcome, source string) error {
	var pending []stride.Event

	err := e.store.WithUser(ctx, userID, func(tx stride.Tx) error {
		u, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		before := u.Snapshot()
		now := e.now().UTC()

		e.applyOutcome(u, outcome)
		classChanged := e.applyClassification(u, now)

		switch outcome {
		case stride.OutcomeMissed:
			u.Trend = u.Trend.Degrade()
			if u.Trend.Breached() {
				u.Mode = u.Mode.Escalate()
			}
		case stride.OutcomeCompleted:
			u.Trend = u.Trend.Recover()
			if u.Classification == stride.ClassHighReliability || u.Trend == stride.TrendStable {
				u.Mode = u.Mode.Deescalate()
			}
		}
		modeChanged := u.Mode != before.Mode

		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}

		eventType := stride.AuditActionMissed
		if outcome == stride.OutcomeCompleted {
			eventType = stride.AuditActionCompleted
		}
		entry := &stride.AuditEntry{
			UserID:     userID,
			EventType:  eventType,
			Actor:      source,
			Before:     before,
			After:      u.Snapshot(),
			OccurredAt: now,
		}
		if err := e.audit.Record(ctx, tx, entry); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		if classChanged {
			pending = append(pending, stride.Event{
				ID:         uuid.New().String(),
				Name:       stride.EventClassificationChanged,
				UserID:     userID,
				OccurredAt: now,
				Data: map[string]any{
					"user_id":                 userID,
					"score":                   u.Score,
					"classification":          string(u.Classification),
					"previous_classification": string(before.Classification),
					"source":                  source,
				},
			})
		}
		if modeChanged {
			pending = append(pending, stride.Event{
				ID:         uuid.New().String(),
				Name:       stride.EventEnforcementChanged,
				UserID:     userID,
				OccurredAt: now,
				Data: map[string]any{
					"user_id":       userID,
					"mode":          string(u.Mode),
					"previous_mode": string(before.Mode),
					"trend":         string(u.Trend),
					"source":        source,
				},
			})
		}
		return nil
	})
	if err != nil {
		metrics.EnforcementEvaluations.WithLabelValues("error").Inc()
		return fmt.Errorf("evaluate user %s: %w", userID, err)
	}
	metrics.EnforcementEvaluations.WithLabelValues("ok").Inc()

	e.publish(ctx, pending)
	return nil
}

// publish queues events after the state transaction has committed.
// Queue failures are logged, never propagated: delivery is decoupled
// from the core transition.
func (e *Engine) publish(ctx context.Context, events []stride.Event) {
	for _, ev := range events {
		if e.events == nil {
			e.log.Warn("no event publisher wired, dropping event", "event", ev.Name, "user_id", ev.UserID)
			continue
		}
		if err := e.events.Publish(ctx, ev); err != nil {
			e.log.Warn("event publish failed", "event", ev.Name, "user_id", ev.UserID, "error", err)
		}
	}
}
