package runlog

import (
	"context"
	"testing"

	"github.com/opctriage/corpus/internal/privacy"
	"github.com/stretchr/testify/assert"
)

func TestNewAssignsRandomRunID(t *testing.T) {
	a := New(privacy.Public)
	b := New(privacy.Public)
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestWorkbookLifecycleMethodsDoNotPanic(t *testing.T) {
	l := New(privacy.Private)
	ctx := context.Background()
	assert.NotPanics(t, func() {
		l.WorkbookStarted(ctx, "book.xlsx")
		l.WorkbookFinished(ctx, "book.xlsx", "round_trip_worksheet")
		l.WorkbookFinished(ctx, "book.xlsx", "")
		l.Warn(ctx, "something odd", "key", "value")
	})
}
