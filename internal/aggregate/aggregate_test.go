package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/opctriage/corpus/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }
func i64(v int64) *int64   { return &v }
func ci(v int) *int        { return &v }

func TestPercentileSingleSample(t *testing.T) {
	assert.Equal(t, 42.0, Percentile([]float64{42}, 0.9))
}

func TestPercentileLinearInterpolation(t *testing.T) {
	samples := []float64{10, 20, 30, 40}
	// type-7: idx = p*(n-1); p50 -> idx=1.5 -> interpolate between 20,30.
	assert.InDelta(t, 25.0, Percentile(samples, 0.5), 1e-9)
	assert.Equal(t, 10.0, Percentile(samples, 0))
	assert.Equal(t, 40.0, Percentile(samples, 1))
}

func sampleReport(displayName string, openOK, rtOK bool, failureCat string) report.TriageReport {
	return report.TriageReport{
		DisplayName:     displayName,
		SizeBytes:       1000,
		FailureCategory: failureCat,
		Result: report.Result{
			OpenOK:      openOK,
			RoundTripOK: rtOK,
		},
	}
}

func TestAggregateCountsAndRates(t *testing.T) {
	samples := []WorkbookSample{
		{Report: sampleReport("a.xlsx", true, true, "")},
		{Report: sampleReport("b.xlsx", true, false, "round_trip_diff")},
		{Report: sampleReport("c.xlsx", false, false, "parse_error")},
	}

	s := Aggregate(samples)
	assert.Equal(t, 3, s.Counts["total"])
	assert.Equal(t, 2, s.Counts["open_ok"])
	assert.Equal(t, 1, s.Counts["round_trip_ok"])
	require.NotNil(t, s.Rates["open"])
	assert.InDelta(t, 2.0/3.0, *s.Rates["open"], 1e-9)
	require.NotNil(t, s.Rates["round_trip"])
	assert.InDelta(t, 1.0/3.0, *s.Rates["round_trip"], 1e-9)
	assert.Nil(t, s.Rates["calculate"], "no calc attempts means nil rate, not zero")
	assert.Equal(t, 1, s.FailuresByCategory["round_trip_diff"])
	assert.Equal(t, 1, s.FailuresByCategory["parse_error"])
}

func TestAggregateCalculateRateOnlyCountsAttempted(t *testing.T) {
	r1 := sampleReport("a.xlsx", true, true, "")
	r1.Result.CalculateOK = report.True
	r2 := sampleReport("b.xlsx", true, true, "")
	r2.Result.CalculateOK = report.False
	r3 := sampleReport("c.xlsx", true, true, "")
	r3.Result.CalculateOK = report.Skipped

	s := Aggregate([]WorkbookSample{{Report: r1}, {Report: r2}, {Report: r3}})
	assert.Equal(t, 2, s.Counts["calculate_attempted"])
	assert.Equal(t, 1, s.Counts["calculate_ok"])
	require.NotNil(t, s.Rates["calculate"])
	assert.InDelta(t, 0.5, *s.Rates["calculate"], 1e-9)
}

func TestAggregateTimingStats(t *testing.T) {
	samples := []WorkbookSample{
		{Report: sampleReport("a.xlsx", true, true, ""), LoadMs: f(100)},
		{Report: sampleReport("b.xlsx", true, true, ""), LoadMs: f(200)},
		{Report: sampleReport("c.xlsx", true, true, ""), LoadMs: f(300)},
	}
	s := Aggregate(samples)
	require.NotNil(t, s.Timings["load"])
	assert.Equal(t, 3, s.Timings["load"].Count)
	assert.InDelta(t, 200, s.Timings["load"].MeanMs, 1e-9)
	assert.Equal(t, 300.0, s.Timings["load"].MaxMs)
	assert.Nil(t, s.Timings["recalc"], "no recalc samples means nil stat")
}

func TestAggregateRoundTripSizeOverhead(t *testing.T) {
	r := sampleReport("a.xlsx", true, true, "")
	samples := []WorkbookSample{
		{Report: r, OutputSizeBytes: i64(1100)}, // ratio 1.1 > both thresholds
	}
	s := Aggregate(samples)
	require.NotNil(t, s.RoundTripSizeOverhead)
	assert.Equal(t, 1, s.RoundTripSizeOverhead.CountOver105)
	assert.Equal(t, 0, s.RoundTripSizeOverhead.CountOver110, "ratio 1.1 is not strictly greater than 1.10")
}

func TestAggregateSkipsOverheadWhenRoundTripFailed(t *testing.T) {
	r := sampleReport("a.xlsx", true, false, "round_trip_diff")
	samples := []WorkbookSample{{Report: r, OutputSizeBytes: i64(5000)}}
	s := Aggregate(samples)
	assert.Nil(t, s.RoundTripSizeOverhead)
}

func TestAggregateTopDiffPartsAndGroups(t *testing.T) {
	samples := []WorkbookSample{
		{
			Report:          sampleReport("a.xlsx", true, true, ""),
			DiffPartCounts:  map[string]int{"xl/worksheets/sheet1.xml": 5, "xl/styles.xml": 2},
			DiffGroupCounts: map[string]int{"worksheet_xml": 5, "styles": 2},
		},
		{
			Report:          sampleReport("b.xlsx", true, true, ""),
			DiffPartCounts:  map[string]int{"xl/worksheets/sheet1.xml": 3},
			DiffGroupCounts: map[string]int{"worksheet_xml": 3},
		},
	}
	s := Aggregate(samples)
	require.NotEmpty(t, s.TopDiffPartsTotal)
	assert.Equal(t, "xl/worksheets/sheet1.xml", s.TopDiffPartsTotal[0].Key)
	assert.Equal(t, 8, s.TopDiffPartsTotal[0].Count)
	assert.Equal(t, "worksheet_xml", s.TopDiffPartGroupsTotal[0].Key)
	assert.Equal(t, 8, s.TopDiffPartGroupsTotal[0].Count)
}

func TestAggregateTopFunctionsAndFeaturesOnlyCountFailures(t *testing.T) {
	passing := sampleReport("a.xlsx", true, true, "")
	passing.Functions = map[string]int{"SUM": 10}
	passing.Features = json.RawMessage(`{"has_charts": true}`)

	failing := sampleReport("b.xlsx", true, false, "round_trip_diff")
	failing.Functions = map[string]int{"XLOOKUP": 3}
	failing.Features = json.RawMessage(`{"has_vba": true}`)

	s := Aggregate([]WorkbookSample{{Report: passing}, {Report: failing}})
	assert.Equal(t, []CountEntry{{Key: "XLOOKUP", Count: 3}}, s.TopFunctionsInFailures)
	assert.Equal(t, []CountEntry{{Key: "has_vba", Count: 1}}, s.TopFeaturesInFailures)
}

func TestAggregatePartChangeRatio(t *testing.T) {
	samples := []WorkbookSample{
		{Report: sampleReport("a.xlsx", true, true, ""), PartsTotal: 10, PartsChanged: 2, PartsChangedCrit: 1},
		{Report: sampleReport("b.xlsx", true, true, ""), PartsTotal: 10, PartsChanged: 4, PartsChangedCrit: 0},
	}
	s := Aggregate(samples)
	require.NotNil(t, s.PartChangeRatio)
	assert.Equal(t, 2, s.PartChangeRatio.Count)
	assert.InDelta(t, 0.3, s.PartChangeRatio.Mean, 1e-9)
	require.NotNil(t, s.PartChangeRatioCritical)
	assert.InDelta(t, 0.05, s.PartChangeRatioCritical.Mean, 1e-9)
}

func TestAggregateSkipsZeroPartsTotal(t *testing.T) {
	samples := []WorkbookSample{
		{Report: sampleReport("a.xlsx", true, true, ""), PartsTotal: 0},
	}
	s := Aggregate(samples)
	assert.Nil(t, s.PartChangeRatio)
}

func TestAggregateStyleComplexitySplitsPassingAndFailing(t *testing.T) {
	passing := sampleReport("a.xlsx", true, true, "")
	failing := sampleReport("b.xlsx", true, false, "round_trip_diff")

	samples := []WorkbookSample{
		{Report: passing, CellXfs: ci(5)},
		{Report: failing, CellXfs: ci(50)},
	}
	s := Aggregate(samples)
	require.NotNil(t, s.Style)
	require.NotNil(t, s.Style.CellXfs.Passing)
	require.NotNil(t, s.Style.CellXfs.Failing)
	assert.Equal(t, 5.0, s.Style.CellXfs.Passing.Avg)
	assert.Equal(t, 50.0, s.Style.CellXfs.Failing.Avg)
	require.Len(t, s.Style.TopFailingByCellXfs, 1)
	assert.Equal(t, "b.xlsx", s.Style.TopFailingByCellXfs[0].WorkbookID)
}

func TestAggregateOmitsStyleWhenNoCellXfsData(t *testing.T) {
	samples := []WorkbookSample{{Report: sampleReport("a.xlsx", true, true, "")}}
	s := Aggregate(samples)
	assert.Nil(t, s.Style)
}

func TestTopFailingByCellXfsOrdersDescendingTiesAscendingID(t *testing.T) {
	entries := []FailingCellXfsEntry{
		{WorkbookID: "z.xlsx", CellXfs: 10},
		{WorkbookID: "a.xlsx", CellXfs: 10},
		{WorkbookID: "b.xlsx", CellXfs: 20},
	}
	got := topFailingByCellXfs(entries, 10)
	require.Len(t, got, 3)
	assert.Equal(t, "b.xlsx", got[0].WorkbookID)
	assert.Equal(t, "a.xlsx", got[1].WorkbookID)
	assert.Equal(t, "z.xlsx", got[2].WorkbookID)
}

func TestTopFailingByCellXfsTruncates(t *testing.T) {
	var entries []FailingCellXfsEntry
	for i := 0; i < 15; i++ {
		entries = append(entries, FailingCellXfsEntry{WorkbookID: string(rune('a' + i)), CellXfs: i})
	}
	got := topFailingByCellXfs(entries, 10)
	assert.Len(t, got, 10)
}

func TestRatePtrZeroDenominator(t *testing.T) {
	got := ratePtr(0, 0)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)
}

func TestAppendTrendCapsAtMaxEntriesKeepingNewest(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/trend.json"

	var existing []byte
	var err error
	for i := 0; i < 5; i++ {
		entry := report.TrendEntry{Timestamp: string(rune('a' + i))}
		existing, err = AppendTrend(path, existing, entry, 3)
		require.NoError(t, err)
	}

	var entries []report.TrendEntry
	require.NoError(t, json.Unmarshal(existing, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].Timestamp)
	assert.Equal(t, "e", entries[2].Timestamp)
}

func TestAppendTrendTreatsCorruptExistingAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/trend.json"

	out, err := AppendTrend(path, []byte("not json"), report.TrendEntry{Timestamp: "x"}, 10)
	require.NoError(t, err)

	var entries []report.TrendEntry
	require.NoError(t, json.Unmarshal(out, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Timestamp)
}
