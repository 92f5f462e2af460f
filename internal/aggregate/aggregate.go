// Package aggregate implements the Aggregator: combines an ordered list of
// per-workbook triage reports into a corpus scorecard, computes percentiles
// with a stable linear-interpolation (type-7) definition, and manages the
// append-with-cap trend file.
package aggregate

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/opctriage/corpus/internal/atomicfile"
	"github.com/opctriage/corpus/internal/report"
	"github.com/opctriage/corpus/internal/xsort"
)

// Percentile returns the type-7 linear-interpolation percentile of samples
// for p in [0,1]. samples must already be sorted ascending and non-empty.
func Percentile(samples []float64, p float64) float64 {
	n := len(samples)
	if n == 1 {
		return samples[0]
	}
	idx := p * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	frac := idx - float64(lo)
	return samples[lo]*(1-frac) + samples[hi]*frac
}

// TimingStat is the {count, mean_ms, p50_ms, p90_ms, max_ms} block.
type TimingStat struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
	MaxMs  float64 `json:"max_ms"`
}

func computeTimingStat(samples []float64) *TimingStat {
	if len(samples) == 0 {
		return nil
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	var sum float64
	for _, s := range sorted {
		sum += s
	}
	return &TimingStat{
		Count:  len(sorted),
		MeanMs: sum / float64(len(sorted)),
		P50Ms:  Percentile(sorted, 0.5),
		P90Ms:  Percentile(sorted, 0.9),
		MaxMs:  sorted[len(sorted)-1],
	}
}

// OverheadStat is the round_trip_size_overhead distribution.
type OverheadStat struct {
	Count         int     `json:"count"`
	Mean          float64 `json:"mean"`
	P50           float64 `json:"p50"`
	P90           float64 `json:"p90"`
	Max           float64 `json:"max"`
	CountOver105  int     `json:"count_over_1_05"`
	CountOver110  int     `json:"count_over_1_10"`
}

// CountEntry is a (key, count) pair for top-N lists.
type CountEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary is the full summary.json payload.
type Summary struct {
	Counts                       map[string]int            `json:"counts"`
	Rates                        map[string]*float64        `json:"rates"`
	FailuresByCategory           map[string]int            `json:"failures_by_category"`
	FailuresByRoundTripFailureKind map[string]int           `json:"failures_by_round_trip_failure_kind"`
	DiffTotals                   map[string]int            `json:"diff_totals"`
	Timings                      map[string]*TimingStat     `json:"timings"`
	RoundTripSizeOverhead        *OverheadStat              `json:"round_trip_size_overhead,omitempty"`
	TopDiffPartsCritical         []CountEntry               `json:"top_diff_parts_critical"`
	TopDiffPartsTotal            []CountEntry               `json:"top_diff_parts_total"`
	TopDiffPartGroupsCritical    []CountEntry               `json:"top_diff_part_groups_critical"`
	TopDiffPartGroupsTotal       []CountEntry               `json:"top_diff_part_groups_total"`
	TopFunctionsInFailures       []CountEntry               `json:"top_functions_in_failures"`
	TopFeaturesInFailures        []CountEntry               `json:"top_features_in_failures"`
	TopDiffFingerprintsInFailures []CountEntry              `json:"top_diff_fingerprints_in_failures"`
	PartChangeRatio               *RatioStat                `json:"part_change_ratio,omitempty"`
	PartChangeRatioCritical       *RatioStat                `json:"part_change_ratio_critical,omitempty"`
	Style                        *StyleComplexityReport     `json:"style,omitempty"`
}

// StyleComplexityReport is the `style` summary section: cellXfs complexity
// split by pass/fail, plus the failing workbooks with the most cellXfs.
type StyleComplexityReport struct {
	CellXfs             StyleComplexity       `json:"cellXfs"`
	TopFailingByCellXfs []FailingCellXfsEntry `json:"top_failing_by_cellXfs"`
}

// RatioStat is a distribution over parts_changed/parts_total per workbook.
type RatioStat struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
}

// WorkbookSample is the subset of a TriageReport's data the Aggregator
// consumes; built by the triage runner from its own internal Result so the
// Aggregator does not need to re-derive group totals from raw JSON.
type WorkbookSample struct {
	Report            report.TriageReport
	LoadMs            *float64
	RoundTripMs       *float64
	DiffMs            *float64
	RecalcMs          *float64
	RenderMs          *float64
	OutputSizeBytes   *int64
	PartsTotal        int
	PartsChanged      int
	PartsChangedCrit  int
	DiffPartCounts    map[string]int
	DiffPartCritCounts map[string]int
	DiffGroupCounts   map[string]int
	DiffGroupCritCounts map[string]int
	Fingerprints      map[string]int
	CellXfs           *int
}

// StyleGroupStat is the {count, avg, median} block for one pass/fail group
// in StyleComplexity.
type StyleGroupStat struct {
	Count  int     `json:"count"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
}

// StyleComplexity is the style.cellXfs section: cellXfs-count distribution
// split by whether the workbook's overall triage result passed or failed.
type StyleComplexity struct {
	Passing *StyleGroupStat `json:"passing,omitempty"`
	Failing *StyleGroupStat `json:"failing,omitempty"`
}

// FailingCellXfsEntry is one row of top_failing_by_cellXfs.
type FailingCellXfsEntry struct {
	WorkbookID string `json:"workbook_id"`
	CellXfs    int    `json:"cellXfs"`
}

// Aggregate computes the corpus scorecard from an ordered sample list.
func Aggregate(samples []WorkbookSample) Summary {
	s := Summary{
		Counts:              map[string]int{},
		FailuresByCategory:  map[string]int{},
		FailuresByRoundTripFailureKind: map[string]int{},
		DiffTotals:          map[string]int{"critical": 0, "warning": 0, "info": 0},
		Timings:             map[string]*TimingStat{},
	}

	var loadMs, rtMs, diffMs, recalcMs, renderMs []float64
	var overheadRatios []float64
	var overCount105, overCount110 int
	var partChangeRatios, partChangeRatiosCrit []float64

	diffPartTotals := map[string]int{}
	diffPartCritTotals := map[string]int{}
	diffGroupTotals := map[string]int{}
	diffGroupCritTotals := map[string]int{}
	funcInFailures := map[string]int{}
	featInFailures := map[string]int{}
	fingerprintInFailures := map[string]int{}

	var cellXfsPassing, cellXfsFailing []float64
	var failingCellXfs []FailingCellXfsEntry

	s.Counts["total"] = len(samples)
	var openOK, rtOK, calcOK, calcAttempt, renderOK, renderAttempt int

	for _, sm := range samples {
		r := sm.Report
		if r.Result.OpenOK {
			openOK++
		}
		if r.Result.RoundTripOK {
			rtOK++
		}
		if r.Result.CalculateOK != report.Skipped {
			calcAttempt++
			if r.Result.CalculateOK == report.True {
				calcOK++
			}
		}
		if r.Result.RenderOK != report.Skipped {
			renderAttempt++
			if r.Result.RenderOK == report.True {
				renderOK++
			}
		}

		if r.FailureCategory != "" {
			s.FailuresByCategory[r.FailureCategory]++
		}
		if r.FailureCategory == "round_trip_diff" && r.RoundTripFailureKind != "" {
			s.FailuresByRoundTripFailureKind[r.RoundTripFailureKind]++
		}

		s.DiffTotals["critical"] += r.Result.DiffCriticalCnt
		s.DiffTotals["warning"] += r.Result.DiffWarningCnt
		s.DiffTotals["info"] += r.Result.DiffInfoCnt

		if sm.LoadMs != nil {
			loadMs = append(loadMs, *sm.LoadMs)
		}
		if sm.RoundTripMs != nil {
			rtMs = append(rtMs, *sm.RoundTripMs)
		}
		if sm.DiffMs != nil {
			diffMs = append(diffMs, *sm.DiffMs)
		}
		if sm.RecalcMs != nil {
			recalcMs = append(recalcMs, *sm.RecalcMs)
		}
		if sm.RenderMs != nil {
			renderMs = append(renderMs, *sm.RenderMs)
		}

		if r.Result.RoundTripOK && sm.OutputSizeBytes != nil && r.SizeBytes > 0 {
			ratio := float64(*sm.OutputSizeBytes) / float64(r.SizeBytes)
			overheadRatios = append(overheadRatios, ratio)
			if ratio > 1.05 {
				overCount105++
			}
			if ratio > 1.10 {
				overCount110++
			}
		}

		if sm.PartsTotal > 0 {
			partChangeRatios = append(partChangeRatios, float64(sm.PartsChanged)/float64(sm.PartsTotal))
			partChangeRatiosCrit = append(partChangeRatiosCrit, float64(sm.PartsChangedCrit)/float64(sm.PartsTotal))
		}

		for _, k := range xsort.Keys(sm.DiffPartCounts) {
			diffPartTotals[k] += sm.DiffPartCounts[k]
		}
		for _, k := range xsort.Keys(sm.DiffPartCritCounts) {
			diffPartCritTotals[k] += sm.DiffPartCritCounts[k]
		}
		for _, k := range xsort.Keys(sm.DiffGroupCounts) {
			diffGroupTotals[k] += sm.DiffGroupCounts[k]
		}
		for _, k := range xsort.Keys(sm.DiffGroupCritCounts) {
			diffGroupCritTotals[k] += sm.DiffGroupCritCounts[k]
		}

		failed := !r.Result.OpenOK || !r.Result.RoundTripOK || r.Result.CalculateOK == report.False || r.Result.RenderOK == report.False
		if failed {
			var feats map[string]bool
			_ = json.Unmarshal(r.Features, &feats)
			for _, k := range xsort.Keys(feats) {
				if feats[k] {
					featInFailures[k]++
				}
			}
			for _, k := range xsort.Keys(r.Functions) {
				funcInFailures[k] += r.Functions[k]
			}
			for _, k := range xsort.Keys(sm.Fingerprints) {
				fingerprintInFailures[k] += sm.Fingerprints[k]
			}
		}

		if sm.CellXfs != nil {
			if failed {
				cellXfsFailing = append(cellXfsFailing, float64(*sm.CellXfs))
				failingCellXfs = append(failingCellXfs, FailingCellXfsEntry{
					WorkbookID: r.DisplayName,
					CellXfs:    *sm.CellXfs,
				})
			} else {
				cellXfsPassing = append(cellXfsPassing, float64(*sm.CellXfs))
			}
		}
	}

	s.Counts["open_ok"] = openOK
	s.Counts["round_trip_ok"] = rtOK
	s.Counts["calculate_ok"] = calcOK
	s.Counts["calculate_attempted"] = calcAttempt
	s.Counts["render_ok"] = renderOK
	s.Counts["render_attempted"] = renderAttempt

	s.Rates = map[string]*float64{
		"open":       ratePtr(openOK, len(samples)),
		"round_trip": ratePtr(rtOK, len(samples)),
	}
	if calcAttempt > 0 {
		s.Rates["calculate"] = ratePtr(calcOK, calcAttempt)
	} else {
		s.Rates["calculate"] = nil
	}
	if renderAttempt > 0 {
		s.Rates["render"] = ratePtr(renderOK, renderAttempt)
	} else {
		s.Rates["render"] = nil
	}

	s.Timings["load"] = computeTimingStat(loadMs)
	s.Timings["round_trip"] = computeTimingStat(rtMs)
	s.Timings["diff"] = computeTimingStat(diffMs)
	s.Timings["recalc"] = computeTimingStat(recalcMs)
	s.Timings["render"] = computeTimingStat(renderMs)

	if len(overheadRatios) > 0 {
		sorted := append([]float64(nil), overheadRatios...)
		sort.Float64s(sorted)
		var sum float64
		for _, v := range sorted {
			sum += v
		}
		s.RoundTripSizeOverhead = &OverheadStat{
			Count:        len(sorted),
			Mean:         sum / float64(len(sorted)),
			P50:          Percentile(sorted, 0.5),
			P90:          Percentile(sorted, 0.9),
			Max:          sorted[len(sorted)-1],
			CountOver105: overCount105,
			CountOver110: overCount110,
		}
	}

	s.TopDiffPartsCritical = topN(diffPartCritTotals, 10)
	s.TopDiffPartsTotal = topN(diffPartTotals, 10)
	s.TopDiffPartGroupsCritical = topN(diffGroupCritTotals, 10)
	s.TopDiffPartGroupsTotal = topN(diffGroupTotals, 10)
	s.TopFunctionsInFailures = topN(funcInFailures, 10)
	s.TopFeaturesInFailures = topN(featInFailures, 10)
	s.TopDiffFingerprintsInFailures = topN(fingerprintInFailures, 10)

	s.PartChangeRatio = ratioStat(partChangeRatios)
	s.PartChangeRatioCritical = ratioStat(partChangeRatiosCrit)

	if len(cellXfsPassing) > 0 || len(cellXfsFailing) > 0 {
		s.Style = &StyleComplexityReport{
			CellXfs: StyleComplexity{
				Passing: styleGroupStat(cellXfsPassing),
				Failing: styleGroupStat(cellXfsFailing),
			},
			TopFailingByCellXfs: topFailingByCellXfs(failingCellXfs, 10),
		}
	}

	return s
}

func styleGroupStat(values []float64) *StyleGroupStat {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return &StyleGroupStat{
		Count:  len(sorted),
		Avg:    sum / float64(len(sorted)),
		Median: Percentile(sorted, 0.5),
	}
}

// topFailingByCellXfs returns the n failing workbooks with the highest
// cellXfs count, descending, ties broken by ascending workbook id.
func topFailingByCellXfs(entries []FailingCellXfsEntry, n int) []FailingCellXfsEntry {
	sorted := append([]FailingCellXfsEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CellXfs != sorted[j].CellXfs {
			return sorted[i].CellXfs > sorted[j].CellXfs
		}
		return sorted[i].WorkbookID < sorted[j].WorkbookID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func ratePtr(num, denom int) *float64 {
	if denom == 0 {
		v := 0.0
		return &v
	}
	v := float64(num) / float64(denom)
	return &v
}

func ratioStat(values []float64) *RatioStat {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return &RatioStat{
		Count: len(sorted),
		Mean:  sum / float64(len(sorted)),
		P50:   Percentile(sorted, 0.5),
		P90:   Percentile(sorted, 0.9),
	}
}

func topN(counts map[string]int, n int) []CountEntry {
	entries := xsort.TopN(counts, n)
	out := make([]CountEntry, len(entries))
	for i, e := range entries {
		out[i] = CountEntry{Key: e.Key, Count: e.Count}
	}
	return out
}

// AppendTrend appends entry to the JSON array stored at path, capping the
// result at maxEntries (keeping the newest), and rewrites the file
// atomically. A corrupt existing file is treated as empty.
func AppendTrend(path string, existing []byte, entry report.TrendEntry, maxEntries int) ([]byte, error) {
	var entries []report.TrendEntry
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &entries)
	}
	entries = append(entries, entry)
	if maxEntries > 0 && len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := atomicfile.WriteJSON(path, out, 0o644); err != nil {
		return nil, err
	}
	return out, nil
}
