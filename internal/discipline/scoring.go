package discipline

import (
	"context"
	"fmt"

	"github.com/strideapp/stride/internal/stride"
)

// RecordOutcome adjusts the user's discipline score for one outcome,
// refreshes the classification, and returns the new score. The score
// is clamped to [0, 100] regardless of streak length.
func (e *Engine) RecordOutcome(ctx context.Context, userID string, outcome stride.Outcome) (int, error) {
	var score int
	err := e.store.WithUser(ctx, userID, func(tx stride.Tx) error {
		u, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		before := u.Snapshot()
		now := e.now().UTC()

		e.applyOutcome(u, outcome)
		e.applyClassification(u, now)
		score = u.Score

		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}

		eventType := stride.AuditActionMissed
		if outcome == stride.OutcomeCompleted {
			eventType = stride.AuditActionCompleted
		}
		return e.audit.Record(ctx, tx, &stride.AuditEntry{
			UserID:     userID,
			EventType:  eventType,
			Actor:      userID,
			Before:     before,
			After:      u.Snapshot(),
			OccurredAt: now,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("record outcome for user %s: %w", userID, err)
	}
	return score, nil
}

func (e *Engine) applyOutcome(u *stride.User, outcome stride.Outcome) {
	switch outcome {
	case stride.OutcomeMissed:
		u.Score = clampScore(u.Score - e.policy.MissPenalty)
	case stride.OutcomeCompleted:
		u.Score = clampScore(u.Score + e.policy.CompletionReward)
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
