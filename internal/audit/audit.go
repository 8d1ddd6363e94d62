// Package audit records immutable entries for every discipline state
// change. The database insert runs inside the caller's transaction:
// if the audit write fails, the triggering state transition fails with
// it. An optional mirror writer emits each entry as a JSON line for
// operator tailing; the mirror is advisory and never fails the caller.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strideapp/stride/internal/stride"
)

// Writer is the transactional sink an entry is appended to.
type Writer interface {
	InsertAuditLog(ctx context.Context, e *stride.AuditEntry) error
}

// Recorder appends audit entries.
type Recorder struct {
	mu     sync.Mutex
	mirror io.Writer
}

// NewRecorder creates a Recorder with no mirror.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NewRecorderWithMirror creates a Recorder that also writes each entry
// as a JSON line to w.
func NewRecorderWithMirror(w io.Writer) *Recorder {
	return &Recorder{mirror: w}
}

// Record fills in the entry's id and timestamp if unset and appends it
// through the given transactional writer. The returned error is the
// writer's: a failed insert must abort the enclosing transaction.
func (r *Recorder) Record(ctx context.Context, w Writer, e *stride.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	if err := w.InsertAuditLog(ctx, e); err != nil {
		return err
	}

	if r.mirror != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		line, err := json.Marshal(e)
		if err == nil {
			r.mirror.Write(append([]byte("AUDIT: "), append(line, '\n')...))
		}
	}
	return nil
}
