package expect

import (
	"testing"

	"github.com/opctriage/corpus/internal/report"
	"github.com/stretchr/testify/assert"
)

func TestCompareDetectsRegression(t *testing.T) {
	reports := []report.TriageReport{
		{
			DisplayName: "a.xlsx",
			Result:      report.Result{OpenOK: false, RoundTripOK: true},
		},
	}
	exp := Expectations{"a.xlsx": {"open_ok": true}}

	res := Compare(reports, exp)
	assert.Len(t, res.Regressions, 1)
	assert.Empty(t, res.Improvements)
}

func TestCompareDetectsImprovement(t *testing.T) {
	reports := []report.TriageReport{
		{
			DisplayName: "a.xlsx",
			Result:      report.Result{OpenOK: true, RoundTripOK: true},
		},
	}
	exp := Expectations{"a.xlsx": {"open_ok": false}}

	res := Compare(reports, exp)
	assert.Len(t, res.Improvements, 1)
	assert.Empty(t, res.Regressions)
}

func TestCompareSkipsUnknownDisplayNames(t *testing.T) {
	reports := []report.TriageReport{
		{DisplayName: "unlisted.xlsx", Result: report.Result{OpenOK: false}},
	}
	exp := Expectations{"a.xlsx": {"open_ok": true}}

	res := Compare(reports, exp)
	assert.Empty(t, res.Regressions)
	assert.Empty(t, res.Improvements)
}

func TestCompareSkipsSkippedTriStateFields(t *testing.T) {
	reports := []report.TriageReport{
		{
			DisplayName: "a.xlsx",
			Result: report.Result{
				OpenOK:      true,
				RoundTripOK: true,
				CalculateOK: report.Skipped,
			},
		},
	}
	exp := Expectations{"a.xlsx": {"calculate_ok": true}}

	res := Compare(reports, exp)
	assert.Empty(t, res.Regressions, "skipped tri-state field is absent from resultFields, never a mismatch")
	assert.Empty(t, res.Improvements)
}

func TestCompareHonorsCalculateAndRenderWhenPresent(t *testing.T) {
	reports := []report.TriageReport{
		{
			DisplayName: "a.xlsx",
			Result: report.Result{
				OpenOK:      true,
				RoundTripOK: true,
				CalculateOK: report.False,
				RenderOK:    report.True,
			},
		},
	}
	exp := Expectations{"a.xlsx": {"calculate_ok": true, "render_ok": true}}

	res := Compare(reports, exp)
	assert.Equal(t, []string{"a.xlsx: expected calculate_ok=true, got false"}, res.Regressions)
	assert.Empty(t, res.Improvements)
}

func TestCompareSkipsExpectationKeysNotInResult(t *testing.T) {
	reports := []report.TriageReport{
		{DisplayName: "a.xlsx", Result: report.Result{OpenOK: true, RoundTripOK: true}},
	}
	exp := Expectations{"a.xlsx": {"nonexistent_key": true}}

	res := Compare(reports, exp)
	assert.Empty(t, res.Regressions)
	assert.Empty(t, res.Improvements)
}
