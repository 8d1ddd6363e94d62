// Package sweep detects overdue pending action instances, marks them
// missed, and drives one enforcement evaluation per affected user.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/strideapp/stride/internal/metrics"
	"github.com/strideapp/stride/internal/stride"
)

// InstanceStore performs the bulk PENDING-to-MISSED transition and
// reports the owning user of every transitioned instance.
type InstanceStore interface {
	MarkOverdueMissed(ctx context.Context, now time.Time) ([]string, error)
}

// Evaluator runs one enforcement evaluation for a missed action.
type Evaluator interface {
	HandleMissedAction(ctx context.Context, userID, source string) error
}

// Summary reports what one sweep did.
type Summary struct {
	Marked    int
	Evaluated int
	Failed    int
}

// Sweeper is the batch job. The evaluator is an explicit constructor
// dependency, wired at startup.
type Sweeper struct {
	store  InstanceStore
	engine Evaluator
	log    *slog.Logger
	now    func() time.Time
}

// New creates a Sweeper.
func New(store InstanceStore, engine Evaluator, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, engine: engine, log: logger, now: time.Now}
}

// ResolveMissedActions marks every overdue pending instance missed in
// one atomic statement, then evaluates each affected user exactly once
// regardless of how many instances that user missed. One user's
// evaluation failure is logged and does not stop the others.
func (s *Sweeper) ResolveMissedActions(ctx context.Context) (Summary, error) {
	userIDs, err := s.store.MarkOverdueMissed(ctx, s.now())
	if err != nil {
		return Summary{}, fmt.Errorf("resolve missed actions: %w", err)
	}

	summary := Summary{Marked: len(userIDs)}
	metrics.InstancesMarkedMissed.Add(float64(len(userIDs)))

	seen := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		if err := s.engine.HandleMissedAction(ctx, userID, stride.SourceBatchJob); err != nil {
			summary.Failed++
			s.log.Error("enforcement evaluation failed", "user_id", userID, "error", err)
			continue
		}
		summary.Evaluated++
	}

	s.log.Info("sweep complete",
		"instances_marked_missed", summary.Marked,
		"users_evaluated", summary.Evaluated,
		"users_failed", summary.Failed)
	return summary, nil
}

// Run executes the sweep on the given interval until the context is
// canceled. A sweep-level failure is logged and the loop continues.
func (s *Sweeper) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := s.ResolveMissedActions(ctx); err != nil {
			s.log.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
