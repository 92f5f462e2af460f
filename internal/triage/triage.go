// Package triage implements the per-workbook TriageRunner: a fixed pipeline
// of load, features, round_trip, diff, and two optional steps (recalc,
// render), producing a single report.TriageReport per input.
package triage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/opctriage/corpus/internal/classify"
	"github.com/opctriage/corpus/internal/collab"
	"github.com/opctriage/corpus/internal/diffengine"
	"github.com/opctriage/corpus/internal/features"
	"github.com/opctriage/corpus/internal/leakscan"
	"github.com/opctriage/corpus/internal/opc"
	"github.com/opctriage/corpus/internal/privacy"
	"github.com/opctriage/corpus/internal/report"
	"github.com/opctriage/corpus/internal/xsort"
)

// Config bundles everything a single workbook's pipeline needs besides the
// bytes themselves.
type Config struct {
	PrivacyMode      privacy.Mode
	FunctionCatalog  privacy.FunctionCatalog
	DiffConfig       diffengine.Config
	RoundTripWriter  collab.RoundTripWriter
	Calculator       collab.Calculator // nil disables the recalc step
	Renderer         collab.Renderer   // nil disables the render step
	LeakScanExpected []string          // literals the LeakScanner checks are absent
	Commit           string
	RunURL           string
}

// Input is one workbook's raw bytes plus its corpus-relative display name.
type Input struct {
	DisplayName string
	Data        []byte
}

// Timer measures one step's wall-clock duration in milliseconds. Run takes
// it as a parameter instead of calling time.Now directly so tests can supply
// a deterministic fake and the package stays free of non-reproducible state.
type Timer func(step func()) int64

// Run executes the full pipeline for one workbook and returns its report.
// now is the ISO-8601 UTC-seconds timestamp to stamp onto the report.
func Run(ctx context.Context, in Input, cfg Config, now string, timer Timer) report.TriageReport {
	r := report.TriageReport{
		Timestamp: now,
		Commit:    cfg.Commit,
		RunURL:    privacy.RedactRunURL(cfg.PrivacyMode, cfg.RunURL),
		Functions: map[string]int{},
	}

	sum := sha256.Sum256(in.Data)
	shaHex := hex.EncodeToString(sum[:])
	r.SHA256 = shaHex
	r.SizeBytes = int64(len(in.Data))
	r.DisplayName = privacy.DisplayNameFor(cfg.PrivacyMode, in.DisplayName, shaHex)
	r.Result.RoundTripFailOn = cfg.DiffConfig.RoundTripFailOn

	// --- step 1: load ---
	var pkg *opc.Package
	var loadErr error
	loadMs := timer(func() {
		pkg, loadErr = opc.Open(in.Data)
	})
	if loadErr != nil {
		r.Steps.Load = report.Step{Status: "failed", DurationMs: &loadMs, Error: redactErr(cfg.PrivacyMode, loadErr)}
		r.Result.OpenOK = false
		r.FailureCategory = "parse_error"
		return r
	}
	r.Steps.Load = report.Step{Status: "ok", DurationMs: &loadMs}
	r.Result.OpenOK = true

	// --- step 2: features ---
	var featStep report.Step
	featMs := timer(func() {
		featStep = runFeatures(pkg, &r, cfg.PrivacyMode, cfg.FunctionCatalog)
	})
	featStep.DurationMs = &featMs
	r.Steps.Features = featStep

	// --- step 3: round_trip ---
	var rtBytes []byte
	var rtErr error
	writer := cfg.RoundTripWriter
	if writer == nil {
		writer = collab.IdentityRoundTripWriter{}
	}
	rtMs := timer(func() {
		rtBytes, rtErr = writer.Write(ctx, in.Data)
	})
	if rtErr != nil {
		r.Steps.RoundTrip = report.Step{Status: "failed", DurationMs: &rtMs, Error: redactErr(cfg.PrivacyMode, rtErr)}
		r.Result.RoundTripOK = false
		r.FailureCategory = "round_trip_error"
		return r
	}
	outSize := int64(len(rtBytes))
	detailsJSON, _ := json.Marshal(map[string]any{
		"output_size_bytes": outSize,
		"engine":            fmt.Sprintf("%T", writer),
	})
	r.Steps.RoundTrip = report.Step{Status: "ok", DurationMs: &rtMs, Details: detailsJSON}

	rtPkg, err := opc.Open(rtBytes)
	if err != nil {
		r.Steps.Diff = report.Step{Status: "failed", Error: redactErr(cfg.PrivacyMode, err)}
		r.Result.RoundTripOK = false
		r.FailureCategory = "round_trip_error"
		return r
	}

	// --- step 4: diff ---
	var diffResult diffengine.Result
	diffMs := timer(func() {
		diffResult = diffengine.Compare(pkg, rtPkg, cfg.DiffConfig)
	})
	diffDetails := map[string]any{
		"counts":           diffResult.Counts,
		"equal":            diffResult.Equal,
		"parts_with_diffs": diffResult.PartsWithDiffs,
		"top_differences":  diffResult.TopDifferences,
		"critical_parts":   diffResult.CriticalParts,
	}
	diffDetailsJSON, _ := json.Marshal(diffDetails)
	r.Steps.Diff = report.Step{Status: "ok", DurationMs: &diffMs, Details: diffDetailsJSON}

	r.Result.RoundTripOK = diffResult.RoundTripOK
	r.Result.DiffCriticalCnt = diffResult.Counts.Critical
	r.Result.DiffWarningCnt = diffResult.Counts.Warning
	r.Result.DiffInfoCnt = diffResult.Counts.Info

	if !diffResult.Equal {
		r.FailureCategory = "round_trip_diff"
		if !diffResult.RoundTripOK {
			r.RoundTripFailureKind = inferFailureKind(diffResult, cfg.DiffConfig.RoundTripFailOn)
		}
	}

	// --- step 5: recalc (optional) ---
	if cfg.Calculator != nil {
		var calcRes collab.CalculateResult
		var calcErr error
		calcMs := timer(func() {
			calcRes, calcErr = cfg.Calculator.Calculate(ctx, rtBytes)
		})
		if calcErr != nil {
			r.Steps.Recalc = &report.Step{Status: "failed", DurationMs: &calcMs, Error: redactErr(cfg.PrivacyMode, calcErr)}
			r.Result.CalculateOK = report.False
			if r.FailureCategory == "" {
				r.FailureCategory = "calc_mismatch"
			}
		} else {
			r.Steps.Recalc = &report.Step{Status: "ok", DurationMs: &calcMs}
			r.Result.CalculateOK = report.FromBool(calcRes.OK)
			if !calcRes.OK && r.FailureCategory == "" {
				r.FailureCategory = "calc_mismatch"
			}
		}
	}

	// --- step 6: render (optional) ---
	if cfg.Renderer != nil {
		var renderRes collab.RenderResult
		var renderErr error
		renderMs := timer(func() {
			renderRes, renderErr = cfg.Renderer.Render(ctx, rtBytes)
		})
		if renderErr != nil {
			r.Steps.Render = &report.Step{Status: "failed", DurationMs: &renderMs, Error: redactErr(cfg.PrivacyMode, renderErr)}
			r.Result.RenderOK = report.False
			if r.FailureCategory == "" {
				r.FailureCategory = "render_error"
			}
		} else {
			r.Steps.Render = &report.Step{Status: "ok", DurationMs: &renderMs}
			r.Result.RenderOK = report.FromBool(renderRes.OK)
			if !renderRes.OK && r.FailureCategory == "" {
				r.FailureCategory = "render_error"
			}
		}
	}

	return r
}

// runFeatures extracts features into r and returns the features step record;
// a panic inside the extractor is caught here so one pathological workbook
// never aborts the rest of the pipeline. Function names are redacted per
// the catalog/all-lowercase allowlist under private mode.
func runFeatures(pkg *opc.Package, r *report.TriageReport, mode privacy.Mode, catalog privacy.FunctionCatalog) (step report.Step) {
	defer func() {
		if rec := recover(); rec != nil {
			step = report.Step{Status: "failed", Error: redactErr(mode, fmt.Errorf("triage_error: %v", rec))}
		}
	}()
	feat := features.Extract(pkg)

	r.Functions = make(map[string]int, len(feat.Functions))
	for _, name := range xsort.Keys(feat.Functions) {
		r.Functions[privacy.RedactFunctionName(mode, name, catalog)] += feat.Functions[name]
	}

	bitsJSON, _ := json.Marshal(featureBitsMap(feat))
	r.Features = bitsJSON
	if feat.StyleStats != nil {
		styleJSON, _ := json.Marshal(feat.StyleStats)
		r.StyleStats = styleJSON
	}
	if feat.CellImages != nil {
		ciJSON, _ := json.Marshal(feat.CellImages)
		r.CellImages = ciJSON
	}
	if feat.StyleStatsError != "" {
		return report.Step{Status: "ok", Error: redactErr(mode, fmt.Errorf("%s", feat.StyleStatsError))}
	}
	return report.Step{Status: "ok"}
}

// ScanForLeaks runs the LeakScanner over sanitized bytes; failure maps to
// failure_category="leak_detected" in the sanitizer ingest path (§4.4).
func ScanForLeaks(sanitizedData []byte, expectedAbsent []string) (bool, []leakscan.Finding, error) {
	return leakscan.Scan(sanitizedData, expectedAbsent)
}

// inferFailureKind implements the §4.7 rule: the group contributing the most
// diffs at or above the fail-on threshold, ties broken alphabetically by
// xsort.Keys's ascending iteration.
func inferFailureKind(d diffengine.Result, failOn string) string {
	weight := func(p diffengine.PartStat) int {
		switch failOn {
		case "warning":
			return p.Critical + p.Warning
		case "info", "any":
			return p.Critical + p.Warning + p.Info
		default:
			return p.Critical
		}
	}

	byGroup := map[classify.Group]int{}
	for _, p := range d.PartsWithDiffs {
		byGroup[p.Group] += weight(p)
	}

	var best classify.Group
	bestCount := 0
	for _, g := range xsort.Keys(byGroup) {
		if c := byGroup[g]; c > bestCount {
			bestCount, best = c, g
		}
	}
	if bestCount == 0 {
		return "round_trip_other"
	}
	return "round_trip_" + string(best)
}

func redactErr(mode privacy.Mode, err error) string {
	if err == nil {
		return ""
	}
	return privacy.Redact(mode, err.Error())
}

func featureBitsMap(f features.Result) map[string]any {
	b := f.Bits
	return map[string]any{
		"has_charts":           b.HasCharts,
		"has_drawings":         b.HasDrawings,
		"has_tables":           b.HasTables,
		"has_pivot_tables":     b.HasPivotTables,
		"has_pivot_cache":      b.HasPivotCache,
		"has_external_links":   b.HasExternalLinks,
		"has_query_tables":     b.HasQueryTables,
		"has_printer_settings": b.HasPrinterSettings,
		"has_custom_xml_root":  b.HasCustomXMLRoot,
		"has_custom_xml_xl":    b.HasCustomXMLXl,
		"has_vba":              b.HasVBA,
		"has_connections":      b.HasConnections,
		"has_shared_strings":   b.HasSharedStrings,
		"has_cell_images":      b.HasCellImages,
		"sheet_xml_count":      b.SheetXMLCount,
	}
}

// ReportFilename computes the deterministic report filename for one report:
// the 16-hex sha256 prefix, de-collided within taken by appending "-<n>" for
// the smallest n that is still free (§5 ordering guarantee ii).
func ReportFilename(sha256Hex string, taken map[string]bool) string {
	prefix := sha256Hex
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	name := prefix + ".json"
	if !taken[name] {
		taken[name] = true
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d.json", prefix, n)
		if !taken[candidate] {
			taken[candidate] = true
			return candidate
		}
	}
}
