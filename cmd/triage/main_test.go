package main

import (
	"fmt"
	"testing"

	"github.com/opctriage/corpus/internal/aggregate"
	"github.com/opctriage/corpus/internal/config"
	"github.com/opctriage/corpus/internal/fixture"
	"github.com/opctriage/corpus/internal/report"
	"github.com/opctriage/corpus/internal/triage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMsIfOKOnlyReturnsForOKStepsWithDuration(t *testing.T) {
	ms := int64(42)
	assert.NotNil(t, msIfOK(report.Step{Status: "ok", DurationMs: &ms}))
	assert.Nil(t, msIfOK(report.Step{Status: "failed", DurationMs: &ms}))
	assert.Nil(t, msIfOK(report.Step{Status: "ok"}))
}

func TestEffectiveJobs(t *testing.T) {
	assert.Equal(t, 4, effectiveJobs(4, 0), "no reports still reports the requested jobs")
	assert.Equal(t, 3, effectiveJobs(8, 3), "never more workers than work items")
	assert.Equal(t, 2, effectiveJobs(2, 10))
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"zebra": 1, "apple": 2, "mango": 3}
	assert.Equal(t, []string{"apple", "mango", "zebra"}, sortedKeys(m))
}

func TestSortedKeysEmpty(t *testing.T) {
	assert.Empty(t, sortedKeys(map[string]int{}))
}

func TestWriteCountEntriesSkipsEmpty(t *testing.T) {
	var out string
	w := func(format string, args ...any) {
		out += fmt.Sprintf(format, args...)
	}
	writeCountEntries(w, "Nothing here", nil)
	assert.Empty(t, out)

	writeCountEntries(w, "Parts", []aggregate.CountEntry{{Key: "xl/styles.xml", Count: 3}})
	assert.Contains(t, out, "Parts")
	assert.Contains(t, out, "xl/styles.xml: 3")
}

func TestBuildDiffConfigAppliesEngineOverrides(t *testing.T) {
	eng := config.Default()
	eng.DiffLimit = 10
	eng.RoundTripFailOn = "warning"
	eng.StrictCalcChain = true
	eng.IgnorePresets = []string{"strict-rel-order"}
	eng.IgnoreGlob = []string{"xl/worksheets/**"}
	eng.IgnorePart = []string{"xl/custom.xml"}

	cfg := buildDiffConfig(eng)
	assert.Equal(t, 10, cfg.DiffLimit)
	assert.Equal(t, "warning", cfg.RoundTripFailOn)
	assert.True(t, cfg.StrictCalcChain)
	assert.Equal(t, []string{"strict-rel-order"}, cfg.IgnorePresets)
	assert.Equal(t, []string{"xl/worksheets/**"}, cfg.IgnoreGlob)
	assert.True(t, cfg.IgnorePart["xl/custom.xml"])
	// Defaults carried over from DefaultConfig should still be present.
	assert.True(t, cfg.IgnorePart["docProps/core.xml"])
}

func TestCountPackageParts(t *testing.T) {
	data, err := fixture.Minimal()
	require.NoError(t, err)
	n := countPackageParts(triage.Input{Data: data})
	assert.Greater(t, n, 0)
}

func TestCountPackagePartsReturnsZeroOnUnopenable(t *testing.T) {
	assert.Equal(t, 0, countPackageParts(triage.Input{Data: []byte("not a zip")}))
}

func TestBuildSamplesDerivesPartsTotalAndTimings(t *testing.T) {
	data, err := fixture.Minimal()
	require.NoError(t, err)

	loadMs := int64(5)
	r := report.TriageReport{
		DisplayName: "book.xlsx",
		Result:      report.Result{OpenOK: true, RoundTripOK: true},
		Steps: report.Steps{
			Load: report.Step{Status: "ok", DurationMs: &loadMs},
		},
	}
	samples := buildSamples([]triage.Input{{Data: data}}, []report.TriageReport{r})
	require.Len(t, samples, 1)
	assert.Greater(t, samples[0].PartsTotal, 0)
	require.NotNil(t, samples[0].LoadMs)
	assert.Equal(t, 5.0, *samples[0].LoadMs)
}

func TestRenderSummaryMarkdownIncludesOverallCounts(t *testing.T) {
	s := aggregate.Aggregate(nil)
	md := renderSummaryMarkdown(s, nil)
	assert.Contains(t, md, "# Corpus triage summary")
	assert.Contains(t, md, "## Overall")
	assert.Contains(t, md, "total: 0")
}

func TestRenderSummaryMarkdownIncludesPerWorkbookTable(t *testing.T) {
	s := aggregate.Aggregate(nil)
	r := report.TriageReport{
		DisplayName: "book.xlsx",
		Result:      report.Result{OpenOK: true, RoundTripOK: true, CalculateOK: report.Skipped},
	}
	md := renderSummaryMarkdown(s, []report.TriageReport{r})
	assert.Contains(t, md, "## Per-workbook table")
	assert.Contains(t, md, "book.xlsx")
	assert.Contains(t, md, "| true | true |")
}
