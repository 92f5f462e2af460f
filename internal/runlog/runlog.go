// Package runlog emits structured, privacy-aware progress logging for a
// triage run. Log lines are never part of any persisted report (reports are
// written by internal/atomicfile), so attaching a random run id here does not
// threaten the byte-determinism the rest of the engine guarantees.
package runlog

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/opctriage/corpus/internal/privacy"
)

// Logger wraps slog with a run-correlation id, following the structured
// key/value logging convention standardbeagle/lci uses for its own
// internal/debug package.
type Logger struct {
	base  *slog.Logger
	runID string
	mode  privacy.Mode
}

// New builds a Logger that writes JSON lines to w (os.Stderr by default when
// w is nil), tagged with a fresh random run id.
func New(mode privacy.Mode) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Logger{
		base:  slog.New(h),
		runID: uuid.NewString(),
		mode:  mode,
	}
}

// WorkbookStarted logs the start of one workbook's pipeline. displayName is
// redacted under private mode before it ever reaches the log line.
func (l *Logger) WorkbookStarted(ctx context.Context, displayName string) {
	l.base.InfoContext(ctx, "triage.workbook.started",
		slog.String("run_id", l.runID),
		slog.String("display_name", privacy.RedactLogName(l.mode, displayName)),
	)
}

// WorkbookFinished logs the end of one workbook's pipeline along with its
// terminal failure category, if any.
func (l *Logger) WorkbookFinished(ctx context.Context, displayName string, failureCategory string) {
	args := []any{
		slog.String("run_id", l.runID),
		slog.String("display_name", privacy.RedactLogName(l.mode, displayName)),
	}
	if failureCategory != "" {
		args = append(args, slog.String("failure_category", failureCategory))
	}
	l.base.InfoContext(ctx, "triage.workbook.finished", args...)
}

// Warn logs a non-fatal condition encountered while driving the corpus run.
func (l *Logger) Warn(ctx context.Context, msg string, kv ...any) {
	args := append([]any{slog.String("run_id", l.runID)}, kv...)
	l.base.WarnContext(ctx, msg, args...)
}

// RunID returns the random correlation id for this process's run. It is
// never written into reports/index.json/summary.json.
func (l *Logger) RunID() string { return l.runID }
