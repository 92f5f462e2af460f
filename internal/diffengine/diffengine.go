// Package diffengine implements the Differ: a semantic OPC/XML comparator
// between an original package and its round-tripped counterpart. It
// classifies per-part differences into CRITICAL/WARN/INFO severities using
// configurable ignore rules, groups parts into functional buckets via
// internal/classify, and computes stable structural fingerprints so
// mismatch patterns can be aggregated privacy-safely across workbooks.
package diffengine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/opctriage/corpus/internal/classify"
	"github.com/opctriage/corpus/internal/opc"
	"github.com/opctriage/corpus/internal/xmltree"
	"github.com/opctriage/corpus/internal/xsort"
)

// Severity is the total order CRITICAL > WARN > INFO.
type Severity int

const (
	Info Severity = iota
	Warn
	Critical
)

func (s Severity) String() string {
	switch s {
	case Critical:
		return "critical"
	case Warn:
		return "warning"
	default:
		return "info"
	}
}

// Kind enumerates the DiffEntry kinds.
type Kind string

const (
	KindAttributeChanged            Kind = "attribute_changed"
	KindAttributeAdded              Kind = "attribute_added"
	KindAttributeRemoved            Kind = "attribute_removed"
	KindTextChanged                 Kind = "text_changed"
	KindChildAdded                  Kind = "child_added"
	KindChildRemoved                Kind = "child_removed"
	KindChildReordered              Kind = "child_reordered"
	KindElementAdded                Kind = "element_added"
	KindElementRemoved              Kind = "element_removed"
	KindBinaryDiff                  Kind = "binary_diff"
	KindRelationshipTargetChanged   Kind = "relationship_target_changed"
	KindRelationshipAdded           Kind = "relationship_added"
	KindRelationshipRemoved         Kind = "relationship_removed"
)

// DiffEntry is one surviving structural or binary difference.
type DiffEntry struct {
	Part        string
	Path        string
	Kind        Kind
	Severity    Severity
	Fingerprint string
}

// PathKindToken is an (kind[:token]) ignore rule entry.
type PathKindToken struct {
	Kind  Kind
	Token string // empty means "any token", matching on kind alone
}

// GlobToken is a (glob, token) scoped ignore pair.
type GlobToken struct {
	Glob  string
	Token string
}

// GlobKind is a (glob, kind[:token]) scoped ignore pair.
type GlobKind struct {
	Glob string
	PathKindToken
}

// Config holds the Differ's rule sets.
type Config struct {
	IgnorePart          map[string]bool
	IgnoreGlob          []string
	IgnorePath          []string
	IgnorePathIn        []GlobToken
	IgnorePathKind      []PathKindToken
	IgnorePathKindIn    []GlobKind
	IgnorePresets       []string
	StrictCalcChain     bool
	DiffLimit           int
	RoundTripFailOn     string // "critical" | "warning" | "info" | "any"
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		IgnorePart:      map[string]bool{"docProps/core.xml": true, "docProps/app.xml": true},
		DiffLimit:       50,
		RoundTripFailOn: "critical",
	}
}

// Counts tallies surviving diffs by severity.
type Counts struct {
	Critical int
	Warning  int
	Info     int
	Total    int
}

// PartStat summarizes surviving diffs for one part.
type PartStat struct {
	Part     string
	Group    classify.Group
	Critical int
	Warning  int
	Info     int
	Total    int
}

// Result is the Differ's full output for one workbook comparison.
type Result struct {
	Counts          Counts
	PartsWithDiffs  []PartStat
	CriticalParts   []string
	TopDifferences  []DiffEntry
	Equal           bool
	RoundTripOK     bool
}

var presetVolatileAttrs = map[string]bool{
	"xr:uid":   true,
	"dyDescent": true,
}

// Compare diffs original (A) against roundTripped (B).
func Compare(a, b *opc.Package, cfg Config) Result {
	names := map[string]bool{}
	for _, n := range a.Names() {
		names[n] = true
	}
	for _, n := range b.Names() {
		names[n] = true
	}

	var all []DiffEntry
	for _, name := range xsort.Keys(names) {
		aBytes, aOK := a.Get(name)
		bBytes, bOK := b.Get(name)
		group := classify.Classify(name)

		switch {
		case aOK && !bOK:
			sev := Critical
			if group == classify.GroupDocProps || group == classify.GroupCalcChain {
				sev = Warn
			}
			all = append(all, entry(name, "/", KindElementRemoved, sev, group))
		case !aOK && bOK:
			sev := Critical
			if group == classify.GroupDocProps || group == classify.GroupCalcChain {
				sev = Warn
			}
			all = append(all, entry(name, "/", KindElementAdded, sev, group))
		default:
			if string(aBytes) == string(bBytes) {
				continue
			}
			if isXMLGroup(group) {
				root1, err1 := xmltree.Parse(aBytes)
				root2, err2 := xmltree.Parse(bBytes)
				if err1 == nil && err2 == nil {
					all = append(all, diffXML(name, group, root1, root2)...)
					continue
				}
			}
			all = append(all, entry(name, "/", KindBinaryDiff, binarySeverity(group), group))
		}
	}

	survivors := applyIgnoreRules(all, cfg)
	if hasPreset(cfg.IgnorePresets, "strict-rel-order") {
		// §9 open question: reordered relationships stay WARN by default; this
		// preset lets a caller opt into treating them as CRITICAL instead.
		for i, d := range survivors {
			if d.Kind == KindChildReordered && classify.Classify(d.Part) == classify.GroupRels {
				survivors[i].Severity = Critical
			}
		}
	}
	if !cfg.StrictCalcChain {
		for i, d := range survivors {
			if d.Part == "xl/calcChain.xml" || strings.EqualFold(d.Part, "xl/calcchain.xml") {
				survivors[i].Severity = downgrade(d.Severity)
			}
		}
	}

	counts := Counts{}
	statByPart := map[string]*PartStat{}
	for _, d := range survivors {
		counts.Total++
		switch d.Severity {
		case Critical:
			counts.Critical++
		case Warn:
			counts.Warning++
		default:
			counts.Info++
		}
		st, ok := statByPart[d.Part]
		if !ok {
			st = &PartStat{Part: d.Part, Group: classify.Classify(d.Part)}
			statByPart[d.Part] = st
		}
		st.Total++
		switch d.Severity {
		case Critical:
			st.Critical++
		case Warn:
			st.Warning++
		default:
			st.Info++
		}
	}

	var partsWithDiffs []PartStat
	for _, p := range xsort.Keys(statByPart) {
		partsWithDiffs = append(partsWithDiffs, *statByPart[p])
	}
	sort.Slice(partsWithDiffs, func(i, j int) bool {
		pi, pj := partsWithDiffs[i], partsWithDiffs[j]
		if pi.Critical != pj.Critical {
			return pi.Critical > pj.Critical
		}
		if pi.Total != pj.Total {
			return pi.Total > pj.Total
		}
		return pi.Part < pj.Part
	})

	var criticalParts []string
	for _, p := range partsWithDiffs {
		if p.Critical > 0 {
			criticalParts = append(criticalParts, p.Part)
		}
	}
	sort.Strings(criticalParts)

	top := make([]DiffEntry, len(survivors))
	copy(top, survivors)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Severity != top[j].Severity {
			return top[i].Severity > top[j].Severity
		}
		if top[i].Part != top[j].Part {
			return top[i].Part < top[j].Part
		}
		return top[i].Path < top[j].Path
	})
	if cfg.DiffLimit >= 0 && len(top) > cfg.DiffLimit {
		top = top[:cfg.DiffLimit]
	}

	failOn := cfg.RoundTripFailOn
	if failOn == "" {
		failOn = "critical"
	}
	roundTripOK := false
	switch failOn {
	case "critical":
		roundTripOK = counts.Critical == 0
	case "warning":
		roundTripOK = counts.Critical == 0 && counts.Warning == 0
	case "info":
		roundTripOK = counts.Critical == 0 && counts.Warning == 0 && counts.Info == 0
	case "any":
		roundTripOK = counts.Total == 0
	}

	return Result{
		Counts:         counts,
		PartsWithDiffs: partsWithDiffs,
		CriticalParts:  criticalParts,
		TopDifferences: top,
		Equal:          counts.Total == 0,
		RoundTripOK:    roundTripOK,
	}
}

func downgrade(s Severity) Severity {
	if s == Critical {
		return Warn
	}
	if s == Warn {
		return Info
	}
	return Info
}

func binarySeverity(group classify.Group) Severity {
	switch group {
	case classify.GroupMedia, classify.GroupPrinterSettings:
		return Info
	case classify.GroupVBA:
		return Critical
	default:
		return Warn
	}
}

func isXMLGroup(g classify.Group) bool {
	return g != classify.GroupMedia && g != classify.GroupVBA && g != classify.GroupPrinterSettings
}

var criticalGroups = map[classify.Group]bool{
	classify.GroupWorksheetXML:  true,
	classify.GroupSharedStrings: true,
	classify.GroupStyles:        true,
	classify.GroupContentTypes:  true,
	classify.GroupRels:          true,
	classify.GroupTables:        true,
	classify.GroupPivot:         true,
	classify.GroupCharts:        true,
	classify.GroupVBA:           true,
}

var warnGroups = map[classify.Group]bool{
	classify.GroupDrawings:       true,
	classify.GroupExternalLinks:  true,
	classify.GroupConnections:    true,
	classify.GroupCustomXML:      true,
	classify.GroupDocProps:       true,
	classify.GroupComments:       true,
	classify.GroupCalcChain:      true,
	classify.GroupCellImages:     true,
}

func severityForGroup(g classify.Group) Severity {
	if criticalGroups[g] {
		return Critical
	}
	if warnGroups[g] {
		return Warn
	}
	return Info
}

func entry(part, path string, kind Kind, sev Severity, group classify.Group) DiffEntry {
	return DiffEntry{Part: part, Path: path, Kind: kind, Severity: sev, Fingerprint: fingerprint(part, kind, path, group)}
}

var indexSuffix = regexp.MustCompile(`\[\d+\]`)
var predicateValue = regexp.MustCompile(`\[@([^=\]]+)="[^"]*"\]`)

// fingerprint is the SHA-256 of "part\0kind\0canonical_path\0group", where
// canonical_path replaces [n] indices with [] and strips literal attribute
// values from predicates.
func fingerprint(part string, kind Kind, path string, group classify.Group) string {
	canonical := indexSuffix.ReplaceAllString(path, "[]")
	canonical = predicateValue.ReplaceAllString(canonical, `[@$1=""]`)
	sum := sha256.Sum256([]byte(part + "\x00" + string(kind) + "\x00" + canonical + "\x00" + string(group)))
	return hex.EncodeToString(sum[:])
}

// siblingKey is the multiset comparison key for reordering detection:
// (expanded-name, attribute-map) rendered as a stable string.
func siblingKey(n *xmltree.Node) string {
	var sb strings.Builder
	sb.WriteString(n.ExpandedName())
	attrs := append([]xmltree.Attr(nil), n.Attrs...)
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].NS != attrs[j].NS {
			return attrs[i].NS < attrs[j].NS
		}
		return attrs[i].Local < attrs[j].Local
	})
	for _, a := range attrs {
		sb.WriteString("|")
		sb.WriteString(a.NS)
		sb.WriteString(":")
		sb.WriteString(a.Local)
		sb.WriteString("=")
		sb.WriteString(a.Value)
	}
	return sb.String()
}

func diffXML(part string, group classify.Group, a, b *xmltree.Node) []DiffEntry {
	sev := severityForGroup(group)
	var out []DiffEntry
	isRels := group == classify.GroupRels

	var walk func(pathA, pathB *xmltree.Node, path string)
	walk = func(na, nb *xmltree.Node, path string) {
		if na.ExpandedName() != nb.ExpandedName() {
			return
		}

		attrMapA := attrMap(na)
		attrMapB := attrMap(nb)
		for _, k := range xsort.Keys(attrMapA) {
			if v, ok := attrMapB[k]; !ok {
				out = append(out, entry(part, path+"/@"+k, KindAttributeRemoved, sev, group))
			} else if v != attrMapA[k] {
				out = append(out, entry(part, path+"/@"+k, KindAttributeChanged, sev, group))
			}
		}
		for _, k := range xsort.Keys(attrMapB) {
			if _, ok := attrMapA[k]; !ok {
				out = append(out, entry(part, path+"/@"+k, KindAttributeAdded, sev, group))
			}
		}

		if len(na.Children) == 0 && len(nb.Children) == 0 {
			if na.TrimmedText() != nb.TrimmedText() {
				out = append(out, entry(part, path, KindTextChanged, sev, group))
			}
			return
		}

		if isRels && na.Local == "Relationships" {
			diffRelationships(part, group, na, nb, path, &out)
			return
		}

		diffChildren(part, group, sev, na, nb, path, &out, walk)
	}

	walk(a, b, "/"+a.ExpandedName()+"[1]")
	return out
}

func attrMap(n *xmltree.Node) map[string]string {
	m := map[string]string{}
	for _, a := range n.Attrs {
		key := a.Local
		if a.NS != "" {
			key = "{" + a.NS + "}" + a.Local
		}
		m[key] = a.Value
	}
	return m
}

func diffChildren(part string, group classify.Group, sev Severity, na, nb *xmltree.Node, path string, out *[]DiffEntry, walk func(*xmltree.Node, *xmltree.Node, string)) {
	keysA := make([]string, len(na.Children))
	for i, c := range na.Children {
		keysA[i] = siblingKey(c)
	}
	keysB := make([]string, len(nb.Children))
	for i, c := range nb.Children {
		keysB[i] = siblingKey(c)
	}

	multiA := multiset(keysA)
	multiB := multiset(keysB)

	sameMultiset := len(multiA) == len(multiB)
	if sameMultiset {
		for k, v := range multiA {
			if multiB[k] != v {
				sameMultiset = false
				break
			}
		}
	}

	if sameMultiset {
		orderDiffers := false
		for i := range keysA {
			if keysA[i] != keysB[i] {
				orderDiffers = true
				break
			}
		}
		if orderDiffers {
			*out = append(*out, entry(part, path, KindChildReordered, Warn, group))
		}
		// Match by position within same key for deep comparison (order may
		// differ but content per matched pair is still compared once
		// canonically sorted).
		sortedA := append([]*xmltree.Node(nil), na.Children...)
		sortedB := append([]*xmltree.Node(nil), nb.Children...)
		sort.SliceStable(sortedA, func(i, j int) bool { return siblingKey(sortedA[i]) < siblingKey(sortedA[j]) })
		sort.SliceStable(sortedB, func(i, j int) bool { return siblingKey(sortedB[i]) < siblingKey(sortedB[j]) })
		counters := map[string]int{}
		for i := range sortedA {
			name := sortedA[i].ExpandedName()
			counters[name]++
			childPath := fmt.Sprintf("%s/%s[%d]", path, name, counters[name])
			walk(sortedA[i], sortedB[i], childPath)
		}
		return
	}

	counters := map[string]int{}
	maxLen := len(na.Children)
	if len(nb.Children) > maxLen {
		maxLen = len(nb.Children)
	}
	for i := 0; i < maxLen; i++ {
		switch {
		case i < len(na.Children) && i < len(nb.Children):
			ca, cb := na.Children[i], nb.Children[i]
			if ca.ExpandedName() == cb.ExpandedName() {
				counters[ca.ExpandedName()]++
				childPath := fmt.Sprintf("%s/%s[%d]", path, ca.ExpandedName(), counters[ca.ExpandedName()])
				walk(ca, cb, childPath)
			} else {
				*out = append(*out, entry(part, path, KindChildRemoved, sev, group))
				*out = append(*out, entry(part, path, KindChildAdded, sev, group))
			}
		case i < len(na.Children):
			*out = append(*out, entry(part, path, KindChildRemoved, sev, group))
		default:
			*out = append(*out, entry(part, path, KindChildAdded, sev, group))
		}
	}
}

func multiset(keys []string) map[string]int {
	m := map[string]int{}
	for _, k := range keys {
		m[k]++
	}
	return m
}

// diffRelationships implements the §4.5.1 special-case match-by-Id rule.
func diffRelationships(part string, group classify.Group, na, nb *xmltree.Node, path string, out *[]DiffEntry) {
	byIDA := map[string]*xmltree.Node{}
	byIDB := map[string]*xmltree.Node{}
	for _, c := range na.Children {
		if id, ok := c.Attr("", "Id"); ok {
			byIDA[id] = c
		}
	}
	for _, c := range nb.Children {
		if id, ok := c.Attr("", "Id"); ok {
			byIDB[id] = c
		}
	}

	for _, id := range xsort.Keys(byIDA) {
		a := byIDA[id]
		b, ok := byIDB[id]
		relPath := fmt.Sprintf(`%s/Relationship[@Id="%s"]`, path, id)
		if !ok {
			*out = append(*out, entry(part, relPath, KindRelationshipRemoved, Critical, group))
			continue
		}
		ta, _ := a.Attr("", "Target")
		tb, _ := b.Attr("", "Target")
		if ta != tb {
			*out = append(*out, entry(part, relPath+"/@Target", KindRelationshipTargetChanged, Critical, group))
		}
	}
	for _, id := range xsort.Keys(byIDB) {
		if _, ok := byIDA[id]; !ok {
			relPath := fmt.Sprintf(`%s/Relationship[@Id="%s"]`, path, id)
			*out = append(*out, entry(part, relPath, KindRelationshipAdded, Critical, group))
		}
	}

	keysA := make([]string, len(na.Children))
	for i, c := range na.Children {
		keysA[i] = siblingKey(c)
	}
	keysB := make([]string, len(nb.Children))
	for i, c := range nb.Children {
		keysB[i] = siblingKey(c)
	}
	if len(keysA) == len(keysB) && multisetEqual(keysA, keysB) {
		for i := range keysA {
			if keysA[i] != keysB[i] {
				*out = append(*out, entry(part, path, KindChildReordered, Warn, group))
				break
			}
		}
	}
}

func multisetEqual(a, b []string) bool {
	ma, mb := multiset(a), multiset(b)
	if len(ma) != len(mb) {
		return false
	}
	for k, v := range ma {
		if mb[k] != v {
			return false
		}
	}
	return true
}

func applyIgnoreRules(entries []DiffEntry, cfg Config) []DiffEntry {
	presets := map[string]bool{}
	for _, p := range cfg.IgnorePresets {
		presets[p] = true
	}

	var survivors []DiffEntry
	for _, d := range entries {
		if cfg.IgnorePart[d.Part] {
			continue
		}
		if matchesAnyGlob(d.Part, cfg.IgnoreGlob) {
			continue
		}
		if containsAnyToken(d.Path, cfg.IgnorePath) {
			continue
		}
		if scopedPathIgnored(d, cfg.IgnorePathIn) {
			continue
		}
		if kindTokenIgnored(d, cfg.IgnorePathKind) {
			continue
		}
		if scopedKindIgnored(d, cfg.IgnorePathKindIn) {
			continue
		}
		if presets["excel-volatile-ids"] && hasVolatileToken(d.Path) {
			continue
		}
		survivors = append(survivors, d)
	}
	return survivors
}

func matchesAnyGlob(name string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}

func containsAnyToken(path string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(path, t) {
			return true
		}
	}
	return false
}

func scopedPathIgnored(d DiffEntry, rules []GlobToken) bool {
	for _, r := range rules {
		if ok, _ := doublestar.Match(r.Glob, d.Part); ok && strings.Contains(d.Path, r.Token) {
			return true
		}
	}
	return false
}

func kindTokenIgnored(d DiffEntry, rules []PathKindToken) bool {
	for _, r := range rules {
		if r.Kind != d.Kind {
			continue
		}
		if r.Token == "" || strings.Contains(d.Path, r.Token) {
			return true
		}
	}
	return false
}

func scopedKindIgnored(d DiffEntry, rules []GlobKind) bool {
	for _, r := range rules {
		if r.Kind != d.Kind {
			continue
		}
		if ok, _ := doublestar.Match(r.Glob, d.Part); !ok {
			continue
		}
		if r.Token == "" || strings.Contains(d.Path, r.Token) {
			return true
		}
	}
	return false
}

func hasPreset(presets []string, name string) bool {
	for _, p := range presets {
		if p == name {
			return true
		}
	}
	return false
}

func hasVolatileToken(path string) bool {
	for token := range presetVolatileAttrs {
		if strings.Contains(path, token) {
			return true
		}
	}
	return false
}

// FormatCount is a small helper the report/summary writer uses to render
// integer counts in markdown tables without pulling in a templating dep.
func FormatCount(n int) string { return strconv.Itoa(n) }
