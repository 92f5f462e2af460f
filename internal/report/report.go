// Package report defines the persisted schema: TriageReport, the
// TrendEntry, and the tri-state boolean used for every "*_ok" field that
// can be skipped rather than merely true/false.
package report

import "encoding/json"

// TriBool is {true, false, null=skipped}, represented as a tagged variant
// so skip is distinguishable from false at the type level, not just in JSON.
type TriBool int

const (
	Skipped TriBool = iota
	False
	True
)

// FromBool lifts a plain bool into a non-skipped TriBool.
func FromBool(b bool) TriBool {
	if b {
		return True
	}
	return False
}

func (t TriBool) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *TriBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*t = True
	case "false":
		*t = False
	case "null":
		*t = Skipped
	default:
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*t = FromBool(b)
	}
	return nil
}

// Step is one pipeline step's outcome.
type Step struct {
	Status     string          `json:"status"` // ok|failed|skipped
	DurationMs *int64          `json:"duration_ms,omitempty"`
	Error      string          `json:"error,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// Steps bundles the six pipeline steps.
type Steps struct {
	Load      Step  `json:"load"`
	Features  Step  `json:"features"`
	RoundTrip Step  `json:"round_trip"`
	Diff      Step  `json:"diff"`
	Recalc    *Step `json:"recalc,omitempty"`
	Render    *Step `json:"render,omitempty"`
}

// Result is the tri-state outcome summary for one workbook.
type Result struct {
	OpenOK          bool    `json:"open_ok"`
	CalculateOK     TriBool `json:"calculate_ok,omitempty"`
	RenderOK        TriBool `json:"render_ok,omitempty"`
	RoundTripOK     bool    `json:"round_trip_ok"`
	DiffCriticalCnt int     `json:"diff_critical_count"`
	DiffWarningCnt  int     `json:"diff_warning_count"`
	DiffInfoCnt     int     `json:"diff_info_count"`
	RoundTripFailOn string  `json:"round_trip_fail_on"`
}

// TriageReport is the persisted per-workbook report.
type TriageReport struct {
	DisplayName          string          `json:"display_name"`
	SHA256               string          `json:"sha256"`
	SizeBytes            int64           `json:"size_bytes"`
	Timestamp            string          `json:"timestamp"`
	Commit               string          `json:"commit,omitempty"`
	RunURL               string          `json:"run_url,omitempty"`
	Features             json.RawMessage `json:"features"`
	Functions            map[string]int  `json:"functions"`
	StyleStats           json.RawMessage `json:"style_stats,omitempty"`
	CellImages           json.RawMessage `json:"cell_images,omitempty"`
	Steps                Steps           `json:"steps"`
	Result               Result          `json:"result"`
	FailureCategory      string          `json:"failure_category,omitempty"`
	RoundTripFailureKind string          `json:"round_trip_failure_kind,omitempty"`
}

// IndexEntry is one entry in index.json's reports list.
type IndexEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	File        string `json:"file"`
}

// Index is the corpus-level index.json.
type Index struct {
	Timestamp        string       `json:"timestamp"`
	Commit           string       `json:"commit,omitempty"`
	RunURL           string       `json:"run_url,omitempty"`
	Jobs             int          `json:"jobs"`
	JobsEffective    int          `json:"jobs_effective"`
	RayonNumThreads  int          `json:"rayon_num_threads"`
	Reports          []IndexEntry `json:"reports"`
}

// TrendEntry is the compact per-run summary appended to trend.json.
type TrendEntry struct {
	Timestamp                       string         `json:"timestamp"`
	Commit                          string         `json:"commit,omitempty"`
	RunURL                          string         `json:"run_url,omitempty"`
	Rates                           map[string]*float64 `json:"rates"`
	Counts                          map[string]int `json:"counts"`
	DiffTotals                      map[string]int `json:"diff_totals"`
	FailuresByCategory              map[string]int `json:"failures_by_category"`
	FailuresByRoundTripFailureKind  map[string]int `json:"failures_by_round_trip_failure_kind"`
	TopDiffPartsCritical            []string       `json:"top_diff_parts_critical,omitempty"`
	TopDiffPartGroupsCritical       []string       `json:"top_diff_part_groups_critical,omitempty"`
	LoadP50Ms                       *float64       `json:"load_p50_ms,omitempty"`
	LoadP90Ms                       *float64       `json:"load_p90_ms,omitempty"`
	RoundTripP50Ms                  *float64       `json:"round_trip_p50_ms,omitempty"`
	RoundTripP90Ms                  *float64       `json:"round_trip_p90_ms,omitempty"`
}
