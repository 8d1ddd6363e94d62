package discipline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strideapp/stride/internal/stride"
)

// UpdateClassification recomputes the user's classification from the
// current score and persists it only if it changed. Calling it again
// with no intervening score change writes nothing, so repeated calls
// produce no audit noise and leave classification_updated_at untouched.
func (e *Engine) UpdateClassification(ctx context.Context, userID string) error {
	err := e.store.WithUser(ctx, userID, func(tx stride.Tx) error {
		u, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		if !e.applyClassification(u, e.now().UTC()) {
			return nil
		}
		return tx.SaveUser(ctx, u)
	})
	if err != nil {
		return fmt.Errorf("update classification for user %s: %w", userID, err)
	}
	return nil
}

// ClassificationFor returns the user's classification. A missing user
// classifies as UNRELIABLE: the fail-safe default, not an error.
func (e *Engine) ClassificationFor(ctx context.Context, userID string) (stride.Classification, error) {
	var class stride.Classification
	err := e.store.WithUser(ctx, userID, func(tx stride.Tx) error {
		u, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		class = stride.ClassifyScore(u.Score)
		return nil
	})
	if errors.Is(err, stride.ErrNotFound) {
		return stride.ClassUnreliable, nil
	}
	if err != nil {
		return stride.ClassUnreliable, fmt.Errorf("classification for user %s: %w", userID, err)
	}
	return class, nil
}

func (e *Engine) applyClassification(u *stride.User, now time.Time) bool {
	next := stride.ClassifyScore(u.Score)
	if next == u.Classification {
		return false
	}
	u.Classification = next
	u.ClassificationUpdatedAt = now
	return true
}
