// Package audit carries the per-execution record the executor emits for
// every request, whatever its outcome.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/vizly/internal/errs"
)

// Status is the outcome of one execution.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusTimeout  Status = "timeout"
	StatusRejected Status = "rejected"
)

const (
	// SlowThreshold marks executions worth a second look.
	SlowThreshold = 5 * time.Second

	// PreviewLength bounds the statement text kept on a record.
	PreviewLength = 200
)

// Record describes one execution request. Error text is sanitized; the
// raw driver error never lands here.
type Record struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	Dialect      string    `json:"dialect"`
	Kind         string    `json:"kind"`
	Status       Status    `json:"status"`
	Privileged   bool      `json:"privileged"`
	Statement    string    `json:"statement"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMs   int64     `json:"duration_ms"`
	Slow         bool      `json:"slow"`
	RowCount     int64     `json:"row_count"`
	Truncated    bool      `json:"truncated"`
	MaxRows      int       `json:"max_rows"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorClass   string    `json:"error_class,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Record kinds.
const (
	KindExecute = "execute"
	KindProbe   = "probe"
)

// NewRecord starts a record for a statement about to run.
func NewRecord(kind, connectionID, dialect, statement string, start time.Time) *Record {
	return &Record{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Dialect:      dialect,
		Kind:         kind,
		Statement:    Preview(statement),
		StartedAt:    start,
	}
}

// Finish stamps completion time and outcome. A nil err means success.
func (r *Record) Finish(end time.Time, err error) {
	r.CompletedAt = end
	d := end.Sub(r.StartedAt)
	r.DurationMs = d.Milliseconds()
	r.Slow = d > SlowThreshold

	if err == nil {
		r.Status = StatusSuccess
		return
	}

	kind := errs.KindOf(err)
	switch kind {
	case errs.ErrKindRejected:
		r.Status = StatusRejected
	case errs.ErrKindTimeout:
		r.Status = StatusTimeout
	default:
		r.Status = StatusError
	}
	r.ErrorKind = kind.String()
	r.ErrorClass = string(errs.ClassOf(err))
	r.ErrorMessage = errs.PublicMessage(err)
}

// Preview truncates statement to PreviewLength characters.
func Preview(statement string) string {
	r := []rune(statement)
	if len(r) <= PreviewLength {
		return statement
	}
	return string(r[:PreviewLength])
}
