// Package store is the PostgreSQL persistence collaborator for the
// discipline engine. Per-user evaluations are serialized with a
// transaction-scoped advisory lock so concurrent evaluations for the
// same user never interleave partial reads and writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strideapp/stride/internal/stride"
)

// Store wraps a pgx pool with the queries the engine needs.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Store from a connection pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// WithUser runs fn inside a transaction holding the user's advisory
// lock. All writes made through the Tx commit or roll back as a unit;
// the lock releases at transaction end.
func (s *Store) WithUser(ctx context.Context, userID string, fn func(stride.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin user transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashTo64Bit(userID)); err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}

	if err := fn(&userTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit user transaction: %w", err)
	}
	return nil
}

// userTx implements stride.Tx over an open pgx transaction.
type userTx struct {
	tx pgx.Tx
}

func (t *userTx) User(ctx context.Context, userID string) (*stride.User, error) {
	var u stride.User
	err := t.tx.QueryRow(ctx, `
		SELECT id, discipline_score, classification, classification_updated_at,
		       trend, enforcement_mode, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&u.ID, &u.Score, &u.Classification, &u.ClassificationUpdatedAt,
		&u.Trend, &u.Mode, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, stride.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	return &u, nil
}

func (t *userTx) SaveUser(ctx context.Context, u *stride.User) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE users
		SET discipline_score = $1,
		    classification = $2,
		    classification_updated_at = $3,
		    trend = $4,
		    enforcement_mode = $5,
		    updated_at = NOW()
		WHERE id = $6
	`, u.Score, u.Classification, u.ClassificationUpdatedAt, u.Trend, u.Mode, u.ID)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save user %s: %w", u.ID, stride.ErrNotFound)
	}
	return nil
}

func (t *userTx) InsertAuditLog(ctx context.Context, e *stride.AuditEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO audit_log (id, user_id, event_type, actor, before_state, after_state, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.UserID, e.EventType, e.Actor, e.Before, e.After, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// MarkOverdueMissed transitions every PENDING instance past its
// scheduled end to MISSED in one statement and returns the owning user
// id of each transitioned instance. The affected-user set is derived
// from the same statement, so no instance becomes MISSED without its
// owner appearing in the result.
func (s *Store) MarkOverdueMissed(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE action_instances
		SET status = 'MISSED', resolved_at = NOW()
		WHERE status = 'PENDING' AND scheduled_end < $1
		RETURNING user_id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("mark overdue instances missed: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan affected user: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read affected users: %w", err)
	}
	return userIDs, nil
}

// CompleteInstance transitions a PENDING instance to COMPLETED and
// returns the owning user id. A missed or already-completed instance is
// never reversed; completing one reports ErrNotFound.
func (s *Store) CompleteInstance(ctx context.Context, instanceID string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx, `
		UPDATE action_instances
		SET status = 'COMPLETED', resolved_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING user_id
	`, instanceID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("pending instance %s: %w", instanceID, stride.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("complete instance %s: %w", instanceID, err)
	}
	return userID, nil
}

// ListSubscriptions returns all webhook subscriptions.
func (s *Store) ListSubscriptions(ctx context.Context) ([]stride.WebhookSubscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, url, secret, created_at
		FROM webhook_subscriptions
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []stride.WebhookSubscription
	for rows.Next() {
		var sub stride.WebhookSubscription
		if err := rows.Scan(&sub.ID, &sub.URL, &sub.Secret, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// AddSubscription registers a webhook delivery target.
func (s *Store) AddSubscription(ctx context.Context, sub stride.WebhookSubscription) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO webhook_subscriptions (id, url, secret, created_at)
		VALUES ($1, $2, $3, NOW())
	`, sub.ID, sub.URL, sub.Secret)
	if err != nil {
		return fmt.Errorf("add subscription: %w", err)
	}
	return nil
}

func hashTo64Bit(s string) int64 {
	var h uint64 = 14695981039346656037
	for _, c := range []byte(s) {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return int64(h)
}
