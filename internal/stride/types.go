package stride

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// InstanceStatus is the lifecycle status of a scheduled action instance.
// Transitions are one-way: PENDING to COMPLETED or PENDING to MISSED.
type InstanceStatus string

const (
	InstancePending   InstanceStatus = "PENDING"
	InstanceCompleted InstanceStatus = "COMPLETED"
	InstanceMissed    InstanceStatus = "MISSED"
)

// Outcome is the recorded result of one action instance.
type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeMissed    Outcome = "MISSED"
)

// Classification is the long-horizon reliability tier derived from the
// discipline score.
type Classification string

const (
	ClassUnreliable      Classification = "UNRELIABLE"
	ClassRecovering      Classification = "RECOVERING"
	ClassStable          Classification = "STABLE"
	ClassHighReliability Classification = "HIGH_RELIABILITY"
)

// ClassifyScore maps a discipline score to its reliability tier.
// Thresholds are fixed; callers that cannot load a user fall back to
// UNRELIABLE rather than guessing.
func ClassifyScore(score int) Classification {
	switch {
	case score >= 95:
		return ClassHighReliability
	case score >= 80:
		return ClassStable
	case score >= 50:
		return ClassRecovering
	default:
		return ClassUnreliable
	}
}

// Trend is the short-horizon discipline signal that drives enforcement
// transitions, separate from the classification tier.
type Trend string

const (
	TrendStable   Trend = "STABLE"
	TrendDrifting Trend = "DRIFTING"
	TrendBreach   Trend = "BREACH"
	TrendStrict   Trend = "STRICT"
)

// Degrade moves the trend one step toward STRICT after a miss.
func (t Trend) Degrade() Trend {
	switch t {
	case TrendStable:
		return TrendDrifting
	case TrendDrifting:
		return TrendBreach
	case TrendBreach, TrendStrict:
		return TrendStrict
	default:
		return TrendDrifting
	}
}

// Recover moves the trend one step back toward STABLE after a completion.
func (t Trend) Recover() Trend {
	switch t {
	case TrendStrict:
		return TrendBreach
	case TrendBreach:
		return TrendDrifting
	case TrendDrifting, TrendStable:
		return TrendStable
	default:
		return TrendStable
	}
}

// Breached reports whether the trend is at or past BREACH, the point at
// which an enforcement escalation is warranted.
func (t Trend) Breached() bool {
	return t == TrendBreach || t == TrendStrict
}

// EnforcementMode is the severity of active restrictions. Modes are
// ordered NONE < SOFT < HARD and only ever move one step per evaluation.
type EnforcementMode string

const (
	ModeNone EnforcementMode = "NONE"
	ModeSoft EnforcementMode = "SOFT"
	ModeHard EnforcementMode = "HARD"
)

// Escalate returns the next-stricter mode. HARD stays HARD.
func (m EnforcementMode) Escalate() EnforcementMode {
	switch m {
	case ModeNone:
		return ModeSoft
	case ModeSoft, ModeHard:
		return ModeHard
	default:
		return ModeSoft
	}
}

// Deescalate returns the next-looser mode. NONE stays NONE.
func (m EnforcementMode) Deescalate() EnforcementMode {
	switch m {
	case ModeHard:
		return ModeSoft
	case ModeSoft, ModeNone:
		return ModeNone
	default:
		return ModeNone
	}
}

// Restriction names a concrete limitation applied to a user.
type Restriction string

const (
	// RestrictNewActions blocks creating new commitments.
	RestrictNewActions Restriction = "new_actions_blocked"
	// RestrictEditWindows blocks rescheduling or editing pending instances.
	RestrictEditWindows Restriction = "edit_windows_blocked"
	// RestrictGraceExtensions removes grace-period extensions on deadlines.
	RestrictGraceExtensions Restriction = "grace_extensions_revoked"
)

// Restrictions returns the active restriction set for a mode. HARD is a
// strict superset of SOFT.
func (m EnforcementMode) Restrictions() []Restriction {
	soft := []Restriction{RestrictNewActions}
	switch m {
	case ModeNone:
		return nil
	case ModeSoft:
		return soft
	case ModeHard:
		return append(soft, RestrictEditWindows, RestrictGraceExtensions)
	default:
		return nil
	}
}

// ActionInstance is one scheduled occurrence of a recurring commitment.
type ActionInstance struct {
	ID           string         `json:"id" db:"id"`
	UserID       string         `json:"user_id" db:"user_id"`
	ScheduledEnd time.Time      `json:"scheduled_end" db:"scheduled_end"`
	Status       InstanceStatus `json:"status" db:"status"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// User is the per-user discipline aggregate owned by the scoring,
// classification, and enforcement components.
type User struct {
	ID                      string          `json:"id" db:"id"`
	Score                   int             `json:"discipline_score" db:"discipline_score"`
	Classification          Classification  `json:"classification" db:"classification"`
	ClassificationUpdatedAt time.Time       `json:"classification_updated_at" db:"classification_updated_at"`
	Trend                   Trend           `json:"trend" db:"trend"`
	Mode                    EnforcementMode `json:"enforcement_mode" db:"enforcement_mode"`
	UpdatedAt               time.Time       `json:"updated_at" db:"updated_at"`
}

// Snapshot captures the discipline state of a user at a point in time,
// used as the before/after halves of an audit entry.
type Snapshot struct {
	Score          int             `json:"score"`
	Classification Classification  `json:"classification"`
	Trend          Trend           `json:"trend"`
	Mode           EnforcementMode `json:"mode"`
}

// Snapshot returns the user's current discipline state.
func (u *User) Snapshot() Snapshot {
	return Snapshot{
		Score:          u.Score,
		Classification: u.Classification,
		Trend:          u.Trend,
		Mode:           u.Mode,
	}
}

// SourceBatchJob is the actor tag for changes driven by the sweep job.
const SourceBatchJob = "BATCH_JOB"

// AuditEntry is an immutable record of one discipline state change.
type AuditEntry struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	EventType  string    `json:"event_type" db:"event_type"`
	Actor      string    `json:"actor" db:"actor"`
	Before     Snapshot  `json:"before"`
	After      Snapshot  `json:"after"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// Audit event types.
const (
	AuditActionMissed       = "action.missed"
	AuditActionCompleted    = "action.completed"
	AuditClassificationMove = "classification.changed"
	AuditEnforcementMove    = "enforcement.changed"
)

// Event is a notification emitted after a discipline state change
// commits. Data carries the event-specific fields delivered to
// webhook subscribers.
type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	UserID     string         `json:"user_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// Notification event names.
const (
	EventClassificationChanged = "classification.changed"
	EventEnforcementChanged    = "enforcement.changed"
)

// WebhookSubscription registers a delivery target for dispatched events.
// The dispatcher treats subscriptions as read-only.
type WebhookSubscription struct {
	ID        string    `json:"id" db:"id"`
	URL       string    `json:"url" db:"url"`
	Secret    string    `json:"secret" db:"secret"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Tx is the transactional view of the persistence collaborator handed to
// a per-user evaluation. All writes through one Tx commit or roll back
// as a unit.
type Tx interface {
	User(ctx context.Context, userID string) (*User, error)
	SaveUser(ctx context.Context, u *User) error
	InsertAuditLog(ctx context.Context, e *AuditEntry) error
}

// UserStore serializes discipline evaluations per user: fn runs inside a
// transaction holding the user's lock, so concurrent evaluations for the
// same user never interleave.
type UserStore interface {
	WithUser(ctx context.Context, userID string, fn func(Tx) error) error
}
