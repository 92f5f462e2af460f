// Package features implements the FeatureExtractor: scans an OPC package for
// feature-presence bits, style-sheet complexity counters, function-name
// fingerprints, and Cell Images metadata.
package features

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/opctriage/corpus/internal/opc"
	"github.com/opctriage/corpus/internal/xmltree"
)

// Bits is the feature-presence map.
type Bits struct {
	HasCharts          bool
	HasDrawings        bool
	HasTables          bool
	HasPivotTables     bool
	HasPivotCache      bool
	HasExternalLinks   bool
	HasQueryTables     bool
	HasPrinterSettings bool
	HasCustomXMLRoot   bool
	HasCustomXMLXl     bool
	HasVBA             bool
	HasConnections     bool
	HasSharedStrings   bool
	HasCellImages      bool
	SheetXMLCount      int
}

// StyleStats holds the xl/styles.xml complexity counters.
type StyleStats struct {
	NumFmts      int `json:"numFmts"`
	Fonts        int `json:"fonts"`
	Fills        int `json:"fills"`
	Borders      int `json:"borders"`
	CellStyleXfs int `json:"cellStyleXfs"`
	CellXfs      int `json:"cellXfs"`
	CellStyles   int `json:"cellStyles"`
	Dxfs         int `json:"dxfs"`
	TableStyles  int `json:"tableStyles"`
	ExtLst       int `json:"extLst"`
}

// CellImages describes the package's cell-images part, if any.
type CellImages struct {
	PartName        string
	ContentType     string
	WorkbookRelType string
	RootLocalName   string
	RootNamespace   string
	EmbedRIDsCount  int
	RelsTypes       []string
}

// Result bundles everything the extractor produces for one package.
type Result struct {
	Bits            Bits
	StyleStats      *StyleStats
	StyleStatsError string
	CellImages      *CellImages
	Functions       map[string]int
}

// Extract scans pkg and returns the full feature result.
func Extract(pkg *opc.Package) Result {
	var r Result
	r.Functions = map[string]int{}

	for _, name := range pkg.Names() {
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, "xl/charts/"):
			r.Bits.HasCharts = true
		case strings.HasPrefix(lower, "xl/drawings/"):
			r.Bits.HasDrawings = true
		case strings.HasPrefix(lower, "xl/tables/"):
			r.Bits.HasTables = true
		case strings.HasPrefix(lower, "xl/pivottables/"):
			r.Bits.HasPivotTables = true
		case strings.HasPrefix(lower, "xl/pivotcache/"):
			r.Bits.HasPivotCache = true
		case strings.HasPrefix(lower, "xl/externallinks/"):
			r.Bits.HasExternalLinks = true
		case strings.HasPrefix(lower, "xl/querytables/"):
			r.Bits.HasQueryTables = true
		case strings.HasPrefix(lower, "xl/printersettings/"):
			r.Bits.HasPrinterSettings = true
		case strings.HasPrefix(lower, "customxml/"):
			r.Bits.HasCustomXMLRoot = true
		case strings.HasPrefix(lower, "xl/customxml/"):
			r.Bits.HasCustomXMLXl = true
		case lower == "xl/vbaproject.bin":
			r.Bits.HasVBA = true
		case lower == "xl/connections.xml":
			r.Bits.HasConnections = true
		case lower == "xl/sharedstrings.xml":
			r.Bits.HasSharedStrings = true
		}
		if strings.HasPrefix(lower, "xl/worksheets/sheet") {
			r.Bits.SheetXMLCount++
		}
	}

	if styles, ok := pkg.Get("xl/styles.xml"); ok {
		stats, err := extractStyleStats(styles)
		if err != nil {
			r.StyleStatsError = err.Error()
		} else {
			r.StyleStats = stats
		}
	}

	ci := selectCellImagesPart(pkg)
	if ci != "" {
		r.Bits.HasCellImages = true
		r.CellImages = extractCellImages(pkg, ci)
	}

	r.Functions = extractFunctions(pkg)

	return r
}

func extractStyleStats(data []byte) (*StyleStats, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	stats := &StyleStats{}
	fields := map[string]*int{
		"numFmts":      &stats.NumFmts,
		"fonts":        &stats.Fonts,
		"fills":        &stats.Fills,
		"borders":      &stats.Borders,
		"cellStyleXfs": &stats.CellStyleXfs,
		"cellXfs":      &stats.CellXfs,
		"cellStyles":   &stats.CellStyles,
		"dxfs":         &stats.Dxfs,
		"tableStyles":  &stats.TableStyles,
		"extLst":       &stats.ExtLst,
	}
	for local, dest := range fields {
		c := root.ChildByLocal(local)
		if c == nil {
			continue
		}
		if countAttr, ok := c.Attr("", "count"); ok {
			n, err := strconv.Atoi(countAttr)
			if err == nil {
				*dest = n
				continue
			}
		}
		*dest = len(c.Children)
	}
	return stats, nil
}

func selectCellImagesPart(pkg *opc.Package) string {
	var candidates []string
	for _, name := range pkg.Names() {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, "xl/") || !strings.HasSuffix(lower, ".xml") {
			continue
		}
		base := lower[strings.LastIndex(lower, "/")+1:]
		if strings.HasPrefix(base, "cellimages") {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	for _, c := range candidates {
		if strings.EqualFold(c, "xl/cellimages.xml") {
			return c
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		ni := numericSuffix(candidates[i])
		nj := numericSuffix(candidates[j])
		if ni != nj {
			return ni < nj
		}
		depthI := strings.Count(candidates[i], "/")
		depthJ := strings.Count(candidates[j], "/")
		if depthI != depthJ {
			return depthI < depthJ
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0]
}

var numericSuffixRe = regexp.MustCompile(`(\d+)\.xml$`)

func numericSuffix(name string) int {
	m := numericSuffixRe.FindStringSubmatch(strings.ToLower(name))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func extractCellImages(pkg *opc.Package, partName string) *CellImages {
	ci := &CellImages{PartName: partName, ContentType: "application/xml"}

	data, _ := pkg.Get(partName)
	root, err := xmltree.Parse(data)
	if err == nil {
		ci.RootLocalName = root.Local
		ci.RootNamespace = root.NS

		embedSeen := map[string]bool{}
		root.Walk(func(n *xmltree.Node) {
			for _, a := range n.Attrs {
				if a.Local == "embed" {
					embedSeen[a.Value] = true
				}
			}
			if n.Local == "cellImage" {
				for _, a := range n.Attrs {
					if a.Local == "id" {
						embedSeen[a.Value] = true
					}
				}
			}
		})
		ci.EmbedRIDsCount = len(embedSeen)
	}

	slash := strings.LastIndex(partName, "/")
	dir, base := "", partName
	if slash >= 0 {
		dir, base = partName[:slash], partName[slash+1:]
	}
	relsName := base + ".rels"
	if dir != "" {
		relsName = dir + "/_rels/" + relsName
	} else {
		relsName = "_rels/" + relsName
	}
	if relsData, ok := pkg.Get(relsName); ok {
		if relsRoot, err := xmltree.Parse(relsData); err == nil {
			seen := map[string]bool{}
			for _, c := range relsRoot.Children {
				if t, ok := c.Attr("", "Type"); ok && !seen[t] {
					seen[t] = true
					ci.RelsTypes = append(ci.RelsTypes, t)
				}
			}
			sort.Strings(ci.RelsTypes)
		}
	}

	return ci
}

var stringLiteral = regexp.MustCompile(`"(?:[^"]|"")*"`)
var functionCall = regexp.MustCompile(`(?i)\b([A-Z_][A-Z0-9_.]*)\s*\(`)

func extractFunctions(pkg *opc.Package) map[string]int {
	counts := map[string]int{}
	for _, name := range pkg.Names() {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, "xl/worksheets/sheet") {
			continue
		}
		data, _ := pkg.Get(name)
		root, err := xmltree.Parse(data)
		if err != nil {
			continue
		}
		root.Walk(func(n *xmltree.Node) {
			if n.Local != "f" {
				return
			}
			text := stringLiteral.ReplaceAllString(n.Text, `""`)
			for _, m := range functionCall.FindAllStringSubmatch(text, -1) {
				name := normalizeFunctionName(m[1])
				counts[name]++
			}
		})
	}
	return counts
}

func normalizeFunctionName(raw string) string {
	upper := strings.ToUpper(raw)
	for _, prefix := range []string{"_XLFN.", "_XLWS.", "_XLUDF."} {
		upper = strings.TrimPrefix(upper, prefix)
	}
	return upper
}
