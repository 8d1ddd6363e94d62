package discipline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideapp/stride/internal/audit"
	"github.com/strideapp/stride/internal/config"
	"github.com/strideapp/stride/internal/stride"
)

// memStore is an in-memory stride.UserStore with transaction
// semantics: writes inside WithUser commit together or not at all.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*stride.User
	audits   []*stride.AuditEntry
	saves    int
	saveErr  error
	auditErr error
}

func newMemStore(users ...*stride.User) *memStore {
	m := &memStore{users: make(map[string]*stride.User)}
	for _, u := range users {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *memStore) WithUser(_ context.Context, userID string, fn func(stride.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, userID: userID}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.staged != nil {
		m.users[userID] = tx.staged
		m.saves++
	}
	m.audits = append(m.audits, tx.stagedAudits...)
	return nil
}

func (m *memStore) user(id string) *stride.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

type memTx struct {
	store        *memStore
	userID       string
	staged       *stride.User
	stagedAudits []*stride.AuditEntry
}

func (t *memTx) User(_ context.Context, userID string) (*stride.User, error) {
	u, ok := t.store.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, stride.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (t *memTx) SaveUser(_ context.Context, u *stride.User) error {
	if t.store.saveErr != nil {
		return t.store.saveErr
	}
	cp := *u
	t.staged = &cp
	return nil
}

func (t *memTx) InsertAuditLog(_ context.Context, e *stride.AuditEntry) error {
	if t.store.auditErr != nil {
		return t.store.auditErr
	}
	t.stagedAudits = append(t.stagedAudits, e)
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []stride.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, ev stride.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for _, ev := range p.events {
		names = append(names, ev.Name)
	}
	return names
}

func newTestEngine(store *memStore, pub Publisher) *Engine {
	e := New(store, audit.NewRecorder(), pub, config.DefaultPolicy(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func stableUser(id string, score int) *stride.User {
	return &stride.User{
		ID:             id,
		Score:          score,
		Classification: stride.ClassifyScore(score),
		Trend:          stride.TrendStable,
		Mode:           stride.ModeNone,
	}
}

func TestMissDropsScoreAndReclassifies(t *testing.T) {
	store := newMemStore(stableUser("u1", 82))
	pub := &capturePublisher{}
	e := newTestEngine(store, pub)

	require.NoError(t, e.HandleMissedAction(context.Background(), "u1", stride.SourceBatchJob))

	u := store.user("u1")
	assert.Equal(t, 77, u.Score)
	assert.Equal(t, stride.ClassRecovering, u.Classification)
	assert.Equal(t, stride.TrendDrifting, u.Trend)
	assert.Equal(t, stride.ModeNone, u.Mode)

	require.Len(t, store.audits, 1)
	entry := store.audits[0]
	assert.Equal(t, stride.AuditActionMissed, entry.EventType)
	assert.Equal(t, stride.SourceBatchJob, entry.Actor)
	assert.Equal(t, 82, entry.Before.Score)
	assert.Equal(t, 77, entry.After.Score)

	require.Equal(t, []string{stride.EventClassificationChanged}, pub.names())
	ev := pub.events[0]
	assert.Equal(t, "RECOVERING", ev.Data["classification"])
	assert.Equal(t, "STABLE", ev.Data["previous_classification"])
}

func TestEscalationRequiresSustainedBreach(t *testing.T) {
	store := newMemStore(stableUser("u1", 60))
	pub := &capturePublisher{}
	e := newTestEngine(store, pub)
	ctx := context.Background()

	require.NoError(t, e.HandleMissedAction(ctx, "u1", stride.SourceBatchJob))
	assert.Equal(t, stride.ModeNone, store.user("u1").Mode, "one miss must not escalate")

	require.NoError(t, e.HandleMissedAction(ctx, "u1", stride.SourceBatchJob))
	assert.Equal(t, stride.TrendBreach, store.user("u1").Trend)
	assert.Equal(t, stride.ModeSoft, store.user("u1").Mode)

	require.NoError(t, e.HandleMissedAction(ctx, "u1", stride.SourceBatchJob))
	assert.Equal(t, stride.TrendStrict, store.user("u1").Trend)
	assert.Equal(t, stride.ModeHard, store.user("u1").Mode)
}

func TestModeNeverSkipsAStep(t *testing.T) {
	u := stableUser("u1", 40)
	u.Trend = stride.TrendBreach
	store := newMemStore(u)
	e := newTestEngine(store, &capturePublisher{})

	// Already at BREACH: a miss escalates exactly one step, NONE to
	// SOFT, never straight to HARD.
	require.NoError(t, e.HandleMissedAction(context.Background(), "u1", stride.SourceBatchJob))
	assert.Equal(t, stride.ModeSoft, store.user("u1").Mode)
}

func TestCompletionRecoversOneStepAtATime(t *testing.T) {
	u := stableUser("u1", 50)
	u.Trend = stride.TrendStrict
	u.Mode = stride.ModeHard
	store := newMemStore(u)
	e := newTestEngine(store, &capturePublisher{})
	ctx := context.Background()

	require.NoError(t, e.HandleCompletedAction(ctx, "u1", "u1"))
	assert.Equal(t, stride.TrendBreach, store.user("u1").Trend)
	assert.Equal(t, stride.ModeHard, store.user("u1").Mode, "trend still degraded, no de-escalation yet")

	require.NoError(t, e.HandleCompletedAction(ctx, "u1", "u1"))
	assert.Equal(t, stride.TrendDrifting, store.user("u1").Trend)
	assert.Equal(t, stride.ModeHard, store.user("u1").Mode)

	require.NoError(t, e.HandleCompletedAction(ctx, "u1", "u1"))
	assert.Equal(t, stride.TrendStable, store.user("u1").Trend)
	assert.Equal(t, stride.ModeSoft, store.user("u1").Mode, "recovered trend de-escalates one step")

	require.NoError(t, e.HandleCompletedAction(ctx, "u1", "u1"))
	assert.Equal(t, stride.ModeNone, store.user("u1").Mode)
}

func TestHighReliabilityDeescalatesDespiteTrend(t *testing.T) {
	u := stableUser("u1", 96)
	u.Trend = stride.TrendBreach
	u.Mode = stride.ModeSoft
	store := newMemStore(u)
	e := newTestEngine(store, &capturePublisher{})

	require.NoError(t, e.HandleCompletedAction(context.Background(), "u1", "u1"))
	assert.Equal(t, stride.ModeNone, store.user("u1").Mode)
}

func TestAuditFailureAbortsTransition(t *testing.T) {
	store := newMemStore(stableUser("u1", 82))
	store.auditErr = fmt.Errorf("audit insert failed")
	pub := &capturePublisher{}
	e := newTestEngine(store, pub)

	err := e.HandleMissedAction(context.Background(), "u1", stride.SourceBatchJob)
	require.Error(t, err)

	assert.Equal(t, 82, store.user("u1").Score, "state change must not survive a failed audit write")
	assert.Empty(t, pub.events)
}

func TestMissingUserEvaluationFails(t *testing.T) {
	e := newTestEngine(newMemStore(), &capturePublisher{})
	err := e.HandleMissedAction(context.Background(), "ghost", stride.SourceBatchJob)
	require.ErrorIs(t, err, stride.ErrNotFound)
}

func TestPublishFailureDoesNotFailEvaluation(t *testing.T) {
	store := newMemStore(stableUser("u1", 82))
	pub := &capturePublisher{err: fmt.Errorf("redis down")}
	e := newTestEngine(store, pub)

	require.NoError(t, e.HandleMissedAction(context.Background(), "u1", stride.SourceBatchJob))
	assert.Equal(t, 77, store.user("u1").Score)
}

func TestRecordOutcomeClampsScore(t *testing.T) {
	store := newMemStore(stableUser("low", 3), stableUser("high", 99))
	e := newTestEngine(store, &capturePublisher{})
	ctx := context.Background()

	score, err := e.RecordOutcome(ctx, "low", stride.OutcomeMissed)
	require.NoError(t, err)
	assert.Equal(t, 0, score)

	score, err = e.RecordOutcome(ctx, "high", stride.OutcomeCompleted)
	require.NoError(t, err)
	assert.Equal(t, 100, score)

	// Further misses and completions stay inside the bounds.
	for i := 0; i < 5; i++ {
		score, err = e.RecordOutcome(ctx, "low", stride.OutcomeMissed)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, score)
}

func TestUpdateClassificationIdempotent(t *testing.T) {
	// Stored classification is stale relative to the score.
	u := stableUser("u1", 77)
	u.Classification = stride.ClassStable
	store := newMemStore(u)
	e := newTestEngine(store, &capturePublisher{})
	ctx := context.Background()

	require.NoError(t, e.UpdateClassification(ctx, "u1"))
	assert.Equal(t, stride.ClassRecovering, store.user("u1").Classification)
	assert.Equal(t, 1, store.saves)
	stamp := store.user("u1").ClassificationUpdatedAt

	// Second call with no score change: no write, timestamp untouched.
	require.NoError(t, e.UpdateClassification(ctx, "u1"))
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, stamp, store.user("u1").ClassificationUpdatedAt)
}

func TestClassificationForMissingUser(t *testing.T) {
	e := newTestEngine(newMemStore(), &capturePublisher{})
	class, err := e.ClassificationFor(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, stride.ClassUnreliable, class)
}
