package audit

import (
	"context"

	"github.com/koustreak/vizly/internal/logger"
)

// Recorder receives finished execution records. Implementations must not
// block the caller for long; a slow sink should buffer.
type Recorder interface {
	Record(ctx context.Context, rec *Record)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec *Record)

func (f RecorderFunc) Record(ctx context.Context, rec *Record) { f(ctx, rec) }

// Nop discards records.
func Nop() Recorder {
	return RecorderFunc(func(context.Context, *Record) {})
}

// LogRecorder writes records as structured log lines. Slow and failed
// executions log at warn level.
type LogRecorder struct {
	log *logger.Logger
}

// NewLogRecorder returns a Recorder that logs through l.
func NewLogRecorder(l *logger.Logger) *LogRecorder {
	return &LogRecorder{log: l}
}

func (r *LogRecorder) Record(_ context.Context, rec *Record) {
	l := r.log.With().
		Str(logger.FieldExecutionID, rec.ID).
		Str(logger.FieldConnectionID, rec.ConnectionID).
		Str(logger.FieldDialect, rec.Dialect).
		Str("kind", rec.Kind).
		Str("status", string(rec.Status)).
		Int64(logger.FieldDurationMs, rec.DurationMs).
		Int64("row_count", rec.RowCount).
		Bool("truncated", rec.Truncated).
		Bool("slow", rec.Slow).
		Logger()

	switch {
	case rec.Status != StatusSuccess:
		l.With().
			Str("error_kind", rec.ErrorKind).
			Str("error_class", rec.ErrorClass).
			Str("error", rec.ErrorMessage).
			Logger().
			Warn("execution failed")
	case rec.Slow:
		l.Warn("slow execution")
	default:
		l.Info("execution completed")
	}
}

// Multi fans a record out to several recorders in order.
func Multi(recorders ...Recorder) Recorder {
	return RecorderFunc(func(ctx context.Context, rec *Record) {
		for _, r := range recorders {
			r.Record(ctx, rec)
		}
	})
}
