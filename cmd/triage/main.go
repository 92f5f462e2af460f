// Command triage drives the compatibility corpus triage engine: it walks a
// directory of workbook fixtures, runs each one through the TriageRunner,
// aggregates the results into a corpus scorecard, and persists everything
// under an output directory in the documented layout (index.json,
// summary.json, summary.md, reports/, trend.json).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/urfave/cli/v2"

	"github.com/opctriage/corpus/internal/aggregate"
	"github.com/opctriage/corpus/internal/atomicfile"
	"github.com/opctriage/corpus/internal/authcrypt"
	"github.com/opctriage/corpus/internal/collab"
	"github.com/opctriage/corpus/internal/config"
	"github.com/opctriage/corpus/internal/corpusio"
	"github.com/opctriage/corpus/internal/diffengine"
	"github.com/opctriage/corpus/internal/expect"
	"github.com/opctriage/corpus/internal/features"
	"github.com/opctriage/corpus/internal/gate"
	"github.com/opctriage/corpus/internal/leakscan"
	"github.com/opctriage/corpus/internal/opc"
	"github.com/opctriage/corpus/internal/privacy"
	"github.com/opctriage/corpus/internal/provenance"
	"github.com/opctriage/corpus/internal/report"
	"github.com/opctriage/corpus/internal/runlog"
	"github.com/opctriage/corpus/internal/sanitize"
	"github.com/opctriage/corpus/internal/triage"
)

// sanitizeIngest runs the Sanitizer then verifies its output with the
// LeakScanner before the bytes are allowed anywhere near the triage
// pipeline; a clean sanitize with a non-empty leak finding is treated as a
// failure of the ingest path, not a pass-through.
func sanitizeIngest(data []byte) ([]byte, error) {
	pkg, err := opc.Open(data)
	if err != nil {
		return nil, err
	}
	sanitized, _, err := sanitize.Sanitize(pkg, sanitize.DefaultConfig())
	if err != nil {
		return nil, err
	}
	out, err := sanitized.Emit(true)
	if err != nil {
		return nil, err
	}
	ok, findings, err := leakscan.Scan(out, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("leak_detected: %d finding(s) survived sanitization", len(findings))
	}
	return out, nil
}

func main() {
	app := &cli.App{
		Name:  "triage",
		Usage: "triage a corpus of OOXML SpreadsheetML workbooks for round-trip compatibility",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "corpus-dir", Required: true, Usage: "directory of .xlsx/.xlsm fixtures (recursive)"},
			&cli.StringFlag{Name: "out-dir", Required: true, Usage: "directory to write index.json/summary.*/reports/"},
			&cli.StringFlag{Name: "config", Usage: "optional TOML overlay file"},
			&cli.IntFlag{Name: "jobs", Value: 1, Usage: "bounded worker count; jobs=1 and jobs=k must produce byte-identical output"},
			&cli.StringFlag{Name: "privacy-mode", Value: "public", Usage: "public | private"},
			&cli.BoolFlag{Name: "include-xlsb", Usage: "include .xlsb fixtures in the corpus walk"},
			&cli.IntFlag{Name: "diff-limit", Value: 50, Usage: "max top_differences entries per report"},
			&cli.StringFlag{Name: "round-trip-fail-on", Value: "critical", Usage: "critical | warning | info | any"},
			&cli.BoolFlag{Name: "strict-calc-chain", Usage: "treat calcChain volatility as a real diff"},
			&cli.StringSliceFlag{Name: "ignore-preset", Usage: "named ignore-rule presets, e.g. strict-rel-order"},
			&cli.StringSliceFlag{Name: "ignore-glob", Usage: "doublestar glob(s) of parts to ignore"},
			&cli.StringSliceFlag{Name: "ignore-part", Usage: "exact part name(s) to ignore"},
			&cli.Float64Flag{Name: "gate-load-p90-ms", Usage: "fail if load p90 exceeds this"},
			&cli.Float64Flag{Name: "gate-round-trip-p90-ms", Usage: "fail if round_trip p90 exceeds this"},
			&cli.Float64Flag{Name: "gate-open-rate-min", Usage: "fail if open rate falls below this"},
			&cli.Float64Flag{Name: "gate-round-trip-rate-min", Usage: "fail if round_trip rate falls below this"},
			&cli.IntFlag{Name: "trend-max-entries", Value: 90, Usage: "cap on trend.json entries, newest kept"},
			&cli.StringFlag{Name: "expectations", Usage: "optional expectations JSON file to gate regressions against"},
			&cli.StringFlag{Name: "fernet-key-env", Value: "CORPUS_ENCRYPTION_KEY", Usage: "env var holding the hex AES-256 key for .enc fixtures"},
			&cli.StringFlag{Name: "commit", Usage: "override commit provenance instead of deriving it"},
			&cli.StringFlag{Name: "run-url", Usage: "override run_url provenance instead of deriving it"},
			&cli.BoolFlag{Name: "sanitize", Usage: "run the Sanitizer + LeakScanner over every fixture before triage"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(c *cli.Context) error {
	ctx := c.Context

	eng := config.Default()
	if p := c.String("config"); p != "" {
		var err error
		eng, err = config.LoadTOML(p, eng)
		if err != nil {
			return err
		}
	}
	applyFlagOverrides(c, &eng)

	mode := eng.Mode()
	logger := runlog.New(mode)

	commit := c.String("commit")
	if commit == "" {
		commit = provenance.Commit("")
	}
	runURL := c.String("run-url")
	if runURL == "" {
		runURL = provenance.RunURL()
	}

	paths, err := corpusio.IterPaths(c.String("corpus-dir"), eng.IncludeXLSB)
	if err != nil {
		return err
	}

	readOpts := corpusio.ReadOptions{Encryptor: authcrypt.GCM{}}
	if key, err := authcrypt.KeyFromEnv(eng.FernetKeyEnv); err == nil {
		readOpts.Key = key
	}

	inputs := make([]triage.Input, len(paths))
	for i, p := range paths {
		wi, err := corpusio.Read(p, readOpts)
		if err != nil {
			return err
		}
		data := wi.Data
		if c.Bool("sanitize") {
			sanitized, err := sanitizeIngest(data)
			if err != nil {
				return fmt.Errorf("sanitize: %s: %w", wi.DisplayName, err)
			}
			data = sanitized
		}
		inputs[i] = triage.Input{DisplayName: wi.DisplayName, Data: data}
	}

	tcfg := triage.Config{
		PrivacyMode:     mode,
		FunctionCatalog: privacy.NewMapCatalog(),
		DiffConfig:      buildDiffConfig(eng),
		RoundTripWriter: collab.IdentityRoundTripWriter{},
		Commit:          commit,
		RunURL:          runURL,
	}

	now := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	reports, err := runAll(ctx, inputs, tcfg, now, eng.Jobs, logger)
	if err != nil {
		return err
	}

	if err := writeOutputs(eng, inputs, reports, commit, runURL, c); err != nil {
		return err
	}

	return applyGates(eng, inputs, reports)
}

func applyFlagOverrides(c *cli.Context, eng *config.Engine) {
	if c.IsSet("jobs") {
		eng.Jobs = c.Int("jobs")
	}
	if c.IsSet("privacy-mode") {
		eng.PrivacyMode = c.String("privacy-mode")
	}
	if c.IsSet("include-xlsb") {
		eng.IncludeXLSB = c.Bool("include-xlsb")
	}
	if c.IsSet("diff-limit") {
		eng.DiffLimit = c.Int("diff-limit")
	}
	if c.IsSet("round-trip-fail-on") {
		eng.RoundTripFailOn = c.String("round-trip-fail-on")
	}
	if c.IsSet("strict-calc-chain") {
		eng.StrictCalcChain = c.Bool("strict-calc-chain")
	}
	if c.IsSet("ignore-preset") {
		eng.IgnorePresets = c.StringSlice("ignore-preset")
	}
	if c.IsSet("ignore-glob") {
		eng.IgnoreGlob = c.StringSlice("ignore-glob")
	}
	if c.IsSet("ignore-part") {
		eng.IgnorePart = c.StringSlice("ignore-part")
	}
	if c.IsSet("gate-load-p90-ms") {
		v := c.Float64("gate-load-p90-ms")
		eng.GateLoadP90Ms = &v
	}
	if c.IsSet("gate-round-trip-p90-ms") {
		v := c.Float64("gate-round-trip-p90-ms")
		eng.GateRoundTripP90Ms = &v
	}
	if c.IsSet("gate-open-rate-min") {
		v := c.Float64("gate-open-rate-min")
		eng.GateOpenRateMin = &v
	}
	if c.IsSet("gate-round-trip-rate-min") {
		v := c.Float64("gate-round-trip-rate-min")
		eng.GateRoundTripRateMin = &v
	}
	if c.IsSet("trend-max-entries") {
		eng.TrendMaxEntries = c.Int("trend-max-entries")
	}
	if c.IsSet("fernet-key-env") {
		eng.FernetKeyEnv = c.String("fernet-key-env")
	}
}

func buildDiffConfig(eng config.Engine) diffengine.Config {
	cfg := diffengine.DefaultConfig()
	cfg.DiffLimit = eng.DiffLimit
	cfg.RoundTripFailOn = eng.RoundTripFailOn
	cfg.StrictCalcChain = eng.StrictCalcChain
	cfg.IgnorePresets = append([]string(nil), eng.IgnorePresets...)
	cfg.IgnoreGlob = append([]string(nil), eng.IgnoreGlob...)
	for _, p := range eng.IgnorePart {
		cfg.IgnorePart[p] = true
	}
	return cfg
}

// runAll dispatches every input to the triage pipeline under a bounded
// worker pool, then reassembles results into input order — jobs=1 and
// jobs=k must agree byte-for-byte, so ordering never depends on completion
// order.
func runAll(ctx context.Context, inputs []triage.Input, cfg triage.Config, now string, jobs int, logger *runlog.Logger) ([]report.TriageReport, error) {
	if jobs < 1 {
		jobs = 1
	}
	slots := make([]report.TriageReport, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			logger.WorkbookStarted(gctx, in.DisplayName)
			slots[i] = triage.Run(gctx, in, cfg, now, wallClockTimer)
			logger.WorkbookFinished(gctx, in.DisplayName, slots[i].FailureCategory)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

func wallClockTimer(step func()) int64 {
	start := time.Now()
	step()
	return time.Since(start).Milliseconds()
}

func writeOutputs(eng config.Engine, inputs []triage.Input, reports []report.TriageReport, commit, runURL string, c *cli.Context) error {
	outDir := c.String("out-dir")
	reportsDir := filepath.Join(outDir, "reports")
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return err
	}

	taken := map[string]bool{}
	entries := make([]report.IndexEntry, len(reports))
	for i, r := range reports {
		name := triage.ReportFilename(r.SHA256, taken)
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		if err := atomicfile.WriteJSON(filepath.Join(reportsDir, name), data, 0o644); err != nil {
			return err
		}
		entries[i] = report.IndexEntry{ID: r.SHA256, DisplayName: r.DisplayName, File: filepath.Join("reports", name)}
	}

	now := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	idx := report.Index{
		Timestamp:       now,
		Commit:          commit,
		RunURL:          runURL,
		Jobs:            eng.Jobs,
		JobsEffective:   effectiveJobs(eng.Jobs, len(reports)),
		RayonNumThreads: eng.Jobs,
		Reports:         entries,
	}
	idxJSON, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicfile.WriteJSON(filepath.Join(outDir, "index.json"), idxJSON, 0o644); err != nil {
		return err
	}

	samples := buildSamples(inputs, reports)
	summary := aggregate.Aggregate(samples)
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicfile.WriteJSON(filepath.Join(outDir, "summary.json"), summaryJSON, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "summary.md"), []byte(renderSummaryMarkdown(summary, reports)), 0o644); err != nil {
		return err
	}

	trendPath := filepath.Join(outDir, "trend.json")
	existing, _ := os.ReadFile(trendPath)
	entry := report.TrendEntry{
		Timestamp:                     now,
		Commit:                        commit,
		RunURL:                        runURL,
		Rates:                         summary.Rates,
		Counts:                        summary.Counts,
		DiffTotals:                    summary.DiffTotals,
		FailuresByCategory:            summary.FailuresByCategory,
		FailuresByRoundTripFailureKind: summary.FailuresByRoundTripFailureKind,
	}
	if summary.Timings["load"] != nil {
		entry.LoadP50Ms = &summary.Timings["load"].P50Ms
		entry.LoadP90Ms = &summary.Timings["load"].P90Ms
	}
	if summary.Timings["round_trip"] != nil {
		entry.RoundTripP50Ms = &summary.Timings["round_trip"].P50Ms
		entry.RoundTripP90Ms = &summary.Timings["round_trip"].P90Ms
	}
	for _, e := range summary.TopDiffPartsCritical {
		entry.TopDiffPartsCritical = append(entry.TopDiffPartsCritical, e.Key)
	}
	for _, e := range summary.TopDiffPartGroupsCritical {
		entry.TopDiffPartGroupsCritical = append(entry.TopDiffPartGroupsCritical, e.Key)
	}
	if _, err := aggregate.AppendTrend(trendPath, existing, entry, eng.TrendMaxEntries); err != nil {
		return err
	}

	if expPath := c.String("expectations"); expPath != "" {
		raw, err := os.ReadFile(expPath)
		if err != nil {
			return err
		}
		var exp expect.Expectations
		if err := json.Unmarshal(raw, &exp); err != nil {
			return fmt.Errorf("expectations: parse %s: %w", expPath, err)
		}
		res := expect.Compare(reports, exp)
		resJSON, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		if err := atomicfile.WriteJSON(filepath.Join(outDir, "expectations-result.json"), resJSON, 0o644); err != nil {
			return err
		}
	}

	return nil
}

func msIfOK(step report.Step) *float64 {
	if step.Status != "ok" || step.DurationMs == nil {
		return nil
	}
	v := float64(*step.DurationMs)
	return &v
}

func effectiveJobs(requested, n int) int {
	if n == 0 {
		return requested
	}
	if requested > n {
		return n
	}
	return requested
}

// buildSamples derives the Aggregator's per-workbook input from each
// TriageReport's persisted steps/result; it's the only place raw report
// JSON is re-parsed, since the Aggregator works from the same structures
// the driver just wrote to disk.
func buildSamples(inputs []triage.Input, reports []report.TriageReport) []aggregate.WorkbookSample {
	samples := make([]aggregate.WorkbookSample, len(reports))
	for i, r := range reports {
		sm := aggregate.WorkbookSample{Report: r}
		sm.LoadMs = msIfOK(r.Steps.Load)
		sm.RoundTripMs = msIfOK(r.Steps.RoundTrip)
		sm.DiffMs = msIfOK(r.Steps.Diff)
		if r.Steps.Recalc != nil {
			sm.RecalcMs = msIfOK(*r.Steps.Recalc)
		}
		if r.Steps.Render != nil {
			sm.RenderMs = msIfOK(*r.Steps.Render)
		}

		var diffDetails struct {
			Counts         diffengine.Counts      `json:"counts"`
			PartsWithDiffs []diffengine.PartStat  `json:"parts_with_diffs"`
			TopDifferences []diffengine.DiffEntry `json:"top_differences"`
		}
		if len(r.Steps.Diff.Details) > 0 {
			_ = json.Unmarshal(r.Steps.Diff.Details, &diffDetails)
		}

		var outSizeDetails struct {
			OutputSizeBytes int64 `json:"output_size_bytes"`
		}
		if len(r.Steps.RoundTrip.Details) > 0 {
			_ = json.Unmarshal(r.Steps.RoundTrip.Details, &outSizeDetails)
			sm.OutputSizeBytes = &outSizeDetails.OutputSizeBytes
		}

		sm.DiffPartCounts = map[string]int{}
		sm.DiffPartCritCounts = map[string]int{}
		sm.DiffGroupCounts = map[string]int{}
		sm.DiffGroupCritCounts = map[string]int{}
		for _, p := range diffDetails.PartsWithDiffs {
			sm.DiffPartCounts[p.Part] += p.Total
			sm.DiffPartCritCounts[p.Part] += p.Critical
			sm.DiffGroupCounts[string(p.Group)] += p.Total
			sm.DiffGroupCritCounts[string(p.Group)] += p.Critical
			sm.PartsChanged++
			if p.Critical > 0 {
				sm.PartsChangedCrit++
			}
		}
		sm.PartsTotal = countPackageParts(inputs[i])

		sm.Fingerprints = map[string]int{}
		for _, d := range diffDetails.TopDifferences {
			if d.Fingerprint != "" {
				sm.Fingerprints[d.Fingerprint]++
			}
		}

		if r.StyleStats != nil {
			var ss features.StyleStats
			if err := json.Unmarshal(r.StyleStats, &ss); err == nil {
				v := ss.CellXfs
				sm.CellXfs = &v
			}
		}

		samples[i] = sm
	}
	return samples
}

// countPackageParts recovers parts_total for the part_change_ratio
// denominators by reopening the original input bytes; a workbook that
// failed to open contributes 0, which Aggregate already treats as "no
// ratio sample".
func countPackageParts(in triage.Input) int {
	pkg, err := opc.Open(in.Data)
	if err != nil {
		return 0
	}
	return pkg.Len()
}

func applyGates(eng config.Engine, inputs []triage.Input, reports []report.TriageReport) error {
	samples := buildSamples(inputs, reports)
	summary := aggregate.Aggregate(samples)

	var outcomes []gate.Outcome
	if eng.GateLoadP90Ms != nil {
		var p90 *float64
		if t := summary.Timings["load"]; t != nil {
			p90 = &t.P90Ms
		}
		res := gate.TimingGate("load", p90, *eng.GateLoadP90Ms)
		fmt.Fprintln(os.Stderr, res.Message)
		outcomes = append(outcomes, res.Outcome)
	}
	if eng.GateRoundTripP90Ms != nil {
		var p90 *float64
		if t := summary.Timings["round_trip"]; t != nil {
			p90 = &t.P90Ms
		}
		res := gate.TimingGate("round_trip", p90, *eng.GateRoundTripP90Ms)
		fmt.Fprintln(os.Stderr, res.Message)
		outcomes = append(outcomes, res.Outcome)
	}
	if eng.GateOpenRateMin != nil {
		res := gate.RateGate("open", summary.Rates["open"], *eng.GateOpenRateMin)
		fmt.Fprintln(os.Stderr, res.Message)
		outcomes = append(outcomes, res.Outcome)
	}
	if eng.GateRoundTripRateMin != nil {
		res := gate.RateGate("round_trip", summary.Rates["round_trip"], *eng.GateRoundTripRateMin)
		fmt.Fprintln(os.Stderr, res.Message)
		outcomes = append(outcomes, res.Outcome)
	}

	worst := gate.Pass
	for _, o := range outcomes {
		if o > worst {
			worst = o
		}
	}
	if worst != gate.Pass {
		return cli.Exit("gate check failed", int(worst))
	}
	return nil
}

func renderSummaryMarkdown(s aggregate.Summary, reports []report.TriageReport) string {
	var b []byte
	w := func(format string, args ...any) {
		b = append(b, []byte(fmt.Sprintf(format, args...))...)
	}

	w("# Corpus triage summary\n\n")

	w("## Overall\n\n")
	for _, k := range sortedKeys(s.Counts) {
		w("- %s: %d\n", k, s.Counts[k])
	}
	w("\n")

	w("## Timings\n\n")
	for _, k := range []string{"load", "round_trip", "diff", "recalc", "render"} {
		t := s.Timings[k]
		if t == nil {
			continue
		}
		w("- %s: count=%d mean=%.1fms p50=%.1fms p90=%.1fms max=%.1fms\n", k, t.Count, t.MeanMs, t.P50Ms, t.P90Ms, t.MaxMs)
	}
	w("\n")

	if s.RoundTripSizeOverhead != nil {
		o := s.RoundTripSizeOverhead
		w("## Round-trip size overhead\n\n")
		w("- count=%d mean=%.4f p50=%.4f p90=%.4f max=%.4f over_1.05=%d over_1.10=%d\n\n", o.Count, o.Mean, o.P50, o.P90, o.Max, o.CountOver105, o.CountOver110)
	}

	w("## Top diff parts / groups\n\n")
	writeCountEntries(w, "Parts (critical)", s.TopDiffPartsCritical)
	writeCountEntries(w, "Parts (total)", s.TopDiffPartsTotal)
	writeCountEntries(w, "Groups (critical)", s.TopDiffPartGroupsCritical)
	writeCountEntries(w, "Groups (total)", s.TopDiffPartGroupsTotal)

	if s.PartChangeRatio != nil {
		w("## Part-level change ratio\n\n")
		w("- all: count=%d mean=%.4f p50=%.4f p90=%.4f\n", s.PartChangeRatio.Count, s.PartChangeRatio.Mean, s.PartChangeRatio.P50, s.PartChangeRatio.P90)
		if s.PartChangeRatioCritical != nil {
			c := s.PartChangeRatioCritical
			w("- critical-only: count=%d mean=%.4f p50=%.4f p90=%.4f\n", c.Count, c.Mean, c.P50, c.P90)
		}
		w("\n")
	}

	w("## Per-workbook table\n\n")
	w("| display_name | open_ok | round_trip_ok | calculate_ok | render_ok | diff_critical | diff_warning | diff_info | failure_category |\n")
	w("|---|---|---|---|---|---|---|---|---|\n")
	for _, r := range reports {
		w("| %s | %v | %v | %s | %s | %d | %d | %d | %s |\n",
			r.DisplayName,
			r.Result.OpenOK,
			r.Result.RoundTripOK,
			triBoolCell(r.Result.CalculateOK),
			triBoolCell(r.Result.RenderOK),
			r.Result.DiffCriticalCnt,
			r.Result.DiffWarningCnt,
			r.Result.DiffInfoCnt,
			emptyDash(r.FailureCategory),
		)
	}
	w("\n")

	w("## Failures by category\n\n")
	for _, k := range sortedKeys(s.FailuresByCategory) {
		w("- %s: %d\n", k, s.FailuresByCategory[k])
	}
	w("\n")

	w("## Round-trip failures by kind\n\n")
	for _, k := range sortedKeys(s.FailuresByRoundTripFailureKind) {
		w("- %s: %d\n", k, s.FailuresByRoundTripFailureKind[k])
	}
	w("\n")

	w("## Top functions / features / fingerprints in failures\n\n")
	writeCountEntries(w, "Functions", s.TopFunctionsInFailures)
	writeCountEntries(w, "Features", s.TopFeaturesInFailures)
	writeCountEntries(w, "Diff fingerprints", s.TopDiffFingerprintsInFailures)

	if s.Style != nil {
		w("## Style complexity\n\n")
		if s.Style.CellXfs.Passing != nil {
			p := s.Style.CellXfs.Passing
			w("- cellXfs passing: count=%d avg=%.2f median=%.2f\n", p.Count, p.Avg, p.Median)
		}
		if s.Style.CellXfs.Failing != nil {
			f := s.Style.CellXfs.Failing
			w("- cellXfs failing: count=%d avg=%.2f median=%.2f\n", f.Count, f.Avg, f.Median)
		}
		for _, e := range s.Style.TopFailingByCellXfs {
			w("  - %s: cellXfs=%d\n", e.WorkbookID, e.CellXfs)
		}
		w("\n")
	}

	return string(b)
}

func triBoolCell(t report.TriBool) string {
	switch t {
	case report.True:
		return "true"
	case report.False:
		return "false"
	default:
		return "-"
	}
}

func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeCountEntries(w func(string, ...any), title string, entries []aggregate.CountEntry) {
	if len(entries) == 0 {
		return
	}
	w("**%s**\n\n", title)
	for _, e := range entries {
		w("- %s: %d\n", e.Key, e.Count)
	}
	w("\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
