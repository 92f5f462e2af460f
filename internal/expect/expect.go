// Package expect compares a run's freshly produced reports against an
// optional expectations file, surfacing regressions (expected pass, got
// fail) and improvements (expected fail, got pass) as the CI gating signal
// distinct from the Differ's own round-trip verdicts.
package expect

import (
	"fmt"

	"github.com/opctriage/corpus/internal/report"
)

// Expectations maps a report's display_name to the subset of result.* keys
// a caller wants pinned, e.g. {"round_trip_ok": true, "render_ok": false}.
type Expectations map[string]map[string]bool

// Result is the expectations-result.json payload.
type Result struct {
	Regressions []string `json:"regressions"`
	Improvements []string `json:"improvements"`
}

// Compare walks reports in order and checks each one present in exp. A
// result.* key expected true but observed false is a regression; expected
// false but observed true is an improvement. Keys not present in a report's
// result are skipped (nothing to compare against).
func Compare(reports []report.TriageReport, exp Expectations) Result {
	var res Result
	for _, r := range reports {
		expected, ok := exp[r.DisplayName]
		if !ok {
			continue
		}
		actual := resultFields(r.Result)
		for key, wantTrue := range expected {
			got, present := actual[key]
			if !present {
				continue
			}
			if wantTrue && !got {
				res.Regressions = append(res.Regressions, fmt.Sprintf("%s: expected %s=true, got false", r.DisplayName, key))
			}
			if !wantTrue && got {
				res.Improvements = append(res.Improvements, fmt.Sprintf("%s: expected %s=false, got true", r.DisplayName, key))
			}
		}
	}
	return res
}

// resultFields flattens the tri-state/bool result fields that expectations
// can reasonably pin down to a plain bool map; skipped tri-state fields are
// omitted so a missing expectation never counts as a mismatch.
func resultFields(r report.Result) map[string]bool {
	out := map[string]bool{
		"open_ok":       r.OpenOK,
		"round_trip_ok": r.RoundTripOK,
	}
	if r.CalculateOK != report.Skipped {
		out["calculate_ok"] = r.CalculateOK == report.True
	}
	if r.RenderOK != report.Skipped {
		out["render_ok"] = r.RenderOK == report.True
	}
	return out
}
