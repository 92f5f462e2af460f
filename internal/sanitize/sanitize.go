// Package sanitize implements a deterministic, privacy-preserving transform
// over an OPC package: it removes or rewrites content so cell values, author
// metadata, external references, and secret-bearing parts cannot leak, while
// preserving formulas, structural topology, and package validity.
//
// The closure computation here generalizes the directed-graph approach a
// part-removal pass needs for any OPC-shaped container: seed a removal set,
// then repeatedly fold in sibling .rels parts until a fixed point, instead
// of tracking removals as an unbounded one-shot pass.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/opctriage/corpus/internal/classify"
	"github.com/opctriage/corpus/internal/opc"
	"github.com/opctriage/corpus/internal/xmltree"
)

const (
	mainNS     = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	relsNS     = "http://schemas.openxmlformats.org/package/2006/relationships"
	ctNS       = "http://schemas.openxmlformats.org/package/2006/content-types"
	rNS        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	corePropNS = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	dcNS       = "http://purl.org/dc/elements/1.1/"
	dctermsNS  = "http://purl.org/dc/terms/"
	extPropNS  = "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"
	vmlNS      = "urn:schemas-microsoft-com:vml"
)

// Config mirrors the recognized Sanitizer options.
type Config struct {
	RedactCellValues    bool
	HashStrings         bool
	HashSalt            string
	RemoveExternalLinks bool
	RemoveSecrets       bool
	ScrubMetadata       bool
	RenameSheets        bool
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		RedactCellValues:    true,
		RemoveExternalLinks: true,
		RemoveSecrets:       true,
		ScrubMetadata:       true,
	}
}

// Summary reports which parts were dropped or rewritten, both sorted.
type Summary struct {
	RemovedParts   []string
	RewrittenParts []string
}

// Sanitize transforms pkg according to cfg and returns the resulting
// package plus a summary of the changes. It is a pure function of
// (pkg's bytes, cfg): no wall-clock, PID, or randomness is consulted.
func Sanitize(pkg *opc.Package, cfg Config) (*opc.Package, Summary, error) {
	if cfg.HashStrings && cfg.HashSalt == "" {
		return nil, Summary{}, fmt.Errorf("sanitize: hash_strings requires a non-empty hash_salt")
	}

	original := pkg.Clone()
	removed := computeRemovalSet(original, cfg)

	out := make(map[string][]byte, len(original))
	for name, data := range original {
		if removed[name] {
			continue
		}
		out[name] = data
	}

	for name := range out {
		out[name] = rewritePart(name, out[name], cfg, removed, original)
	}

	if cfg.RenameSheets {
		renameSheets(out)
	}

	var removedList, rewrittenList []string
	for name := range removed {
		removedList = append(removedList, name)
	}
	for name, data := range out {
		if orig, ok := original[name]; !ok || string(orig) != string(data) {
			rewrittenList = append(rewrittenList, name)
		}
	}
	sort.Strings(removedList)
	sort.Strings(rewrittenList)

	return opc.FromParts(out), Summary{RemovedParts: removedList, RewrittenParts: rewrittenList}, nil
}

// computeRemovalSet seeds directly-removed parts from configuration, then
// folds in sibling .rels parts until no more are added.
func computeRemovalSet(parts map[string][]byte, cfg Config) map[string]bool {
	removed := map[string]bool{}

	if cfg.RemoveExternalLinks {
		for name := range parts {
			if strings.HasPrefix(strings.ToLower(name), "xl/externallinks/") {
				removed[name] = true
			}
		}
	}

	if cfg.RemoveSecrets {
		for name := range parts {
			lower := strings.ToLower(name)
			switch {
			case lower == "xl/connections.xml",
				strings.HasPrefix(lower, "xl/querytables/"),
				strings.HasPrefix(lower, "customxml/"),
				strings.HasPrefix(lower, "xl/customxml/"),
				lower == "xl/vbaproject.bin",
				lower == "xl/vbaprojectsignature.bin",
				strings.HasPrefix(lower, "xl/printersettings/"),
				strings.HasPrefix(lower, "xl/media/"),
				lower == "docprops/custom.xml",
				strings.HasPrefix(lower, "docprops/thumbnail."),
				strings.HasPrefix(lower, "customui/"):
				removed[name] = true
			}
		}
		// Media removal dangles cell-images references; drop them too.
		mediaRemoved := false
		for name := range removed {
			if strings.HasPrefix(strings.ToLower(name), "xl/media/") {
				mediaRemoved = true
				break
			}
		}
		if mediaRemoved {
			for name := range parts {
				if classify.Classify(name) == classify.GroupCellImages {
					removed[name] = true
				}
			}
		}
	}

	// Fixed point: every removed part's sibling .rels part is removed too.
	for changed := true; changed; {
		changed = false
		for name := range removed {
			sibling := siblingRelsPath(name)
			if sibling == "" {
				continue
			}
			if _, ok := parts[sibling]; ok && !removed[sibling] {
				removed[sibling] = true
				changed = true
			}
		}
	}

	return removed
}

// siblingRelsPath returns "dir/_rels/base.rels" for "dir/base", or "" if
// partName already is a .rels part.
func siblingRelsPath(partName string) string {
	if strings.HasSuffix(strings.ToLower(partName), ".rels") {
		return ""
	}
	slash := strings.LastIndex(partName, "/")
	dir, base := "", partName
	if slash >= 0 {
		dir, base = partName[:slash], partName[slash+1:]
	}
	if dir == "" {
		return "_rels/" + base + ".rels"
	}
	return dir + "/_rels/" + base + ".rels"
}

func rewritePart(name string, data []byte, cfg Config, removed map[string]bool, original map[string][]byte) []byte {
	lower := strings.ToLower(name)
	group := classify.Classify(name)

	switch {
	case lower == "[content_types].xml":
		return rewriteContentTypes(data, removed)
	case group == classify.GroupRels:
		return rewriteRels(name, data, cfg, removed)
	case lower == "xl/workbook.xml":
		return rewriteWorkbook(data, cfg)
	case group == classify.GroupWorksheetXML, group == classify.GroupDialogsheet, group == classify.GroupMacrosheet:
		return rewriteSheetLike(data, cfg)
	case lower == "xl/sharedstrings.xml":
		return rewriteSharedStrings(data, cfg)
	case group == classify.GroupComments:
		return rewriteLeafText(data, cfg, "t")
	case group == classify.GroupCharts, group == classify.GroupDrawings, group == classify.GroupTables:
		return rewriteFreeformText(data, cfg)
	case lower == "docprops/core.xml" && cfg.ScrubMetadata:
		return rewriteCoreProps(data)
	case lower == "docprops/app.xml" && cfg.ScrubMetadata:
		return rewriteAppProps(data)
	case group == classify.GroupCellImages && cfg.ScrubMetadata:
		return rewriteCellImages(data, cfg)
	case group == classify.GroupVML:
		return rewriteVML(name, data, removed, original)
	default:
		return data
	}
}

func parseOrPassthrough(data []byte) (*xmltree.Node, bool) {
	n, err := xmltree.Parse(data)
	if err != nil {
		return nil, false
	}
	return n, true
}

func serializeOr(original []byte, n *xmltree.Node) []byte {
	out, err := xmltree.Serialize(n)
	if err != nil {
		return original
	}
	return out
}

func rewriteContentTypes(data []byte, removed map[string]bool) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}
	var keep []*xmltree.Node
	for _, c := range root.Children {
		if c.NS == ctNS && c.Local == "Override" {
			if pn, present := c.Attr("", "PartName"); present {
				canon, err := opc.CanonicalName(pn)
				if err == nil && removed[canon] {
					continue
				}
			}
		}
		keep = append(keep, c)
	}
	root.Children = keep
	return serializeOr(data, root)
}

func rewriteRels(name string, data []byte, cfg Config, removed map[string]bool) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}
	var keep []*xmltree.Node
	for _, c := range root.Children {
		if c.NS != relsNS || c.Local != "Relationship" {
			keep = append(keep, c)
			continue
		}
		target, _ := c.Attr("", "Target")
		mode, _ := c.Attr("", "TargetMode")
		if mode == "External" {
			if cfg.RemoveExternalLinks {
				c.SetAttr("", "Target", "https://redacted.invalid/")
			}
			keep = append(keep, c)
			continue
		}
		canon, err := opc.ResolveRelTarget(name, target)
		if err == nil && removed[canon] {
			continue
		}
		keep = append(keep, c)
	}
	root.Children = keep
	return serializeOr(data, root)
}

func rewriteWorkbook(data []byte, cfg Config) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}
	if cfg.RemoveExternalLinks {
		removeChildrenByLocal(root, "externalReferences")
	}
	removeChildrenByLocal(root, "fileSharing")
	removeChildrenByLocal(root, "workbookProtection")
	if wbPr := root.ChildByLocal("workbookPr"); wbPr != nil {
		wbPr.RemoveAttr("", "codeName")
	}
	return serializeOr(data, root)
}

func removeChildrenByLocal(n *xmltree.Node, local string) {
	var keep []*xmltree.Node
	for _, c := range n.Children {
		if c.Local != local {
			keep = append(keep, c)
		}
	}
	n.Children = keep
}

func rewriteSheetLike(data []byte, cfg Config) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}
	removeChildrenByLocal(root, "sheetProtection")
	if sheetPr := root.ChildByLocal("sheetPr"); sheetPr != nil {
		sheetPr.RemoveAttr("", "codeName")
	}

	var walkCells func(n *xmltree.Node)
	walkCells = func(n *xmltree.Node) {
		for _, c := range n.Children {
			if c.Local == "c" {
				rewriteCell(c, cfg)
			}
			walkCells(c)
		}
	}
	walkCells(root)

	return serializeOr(data, root)
}

func rewriteCell(c *xmltree.Node, cfg Config) {
	t, _ := c.Attr("", "t")
	hasFormula := c.ChildByLocal("f") != nil

	if hasFormula {
		removeChildrenByLocal(c, "v")
		removeChildrenByLocal(c, "is")
		return
	}

	switch t {
	case "inlineStr":
		if is := c.ChildByLocal("is"); is != nil {
			for _, run := range is.Children {
				if run.Local == "t" {
					run.Text = stringPolicy(cfg, run.Text)
				}
			}
		}
	case "str":
		if v := c.ChildByLocal("v"); v != nil {
			v.Text = stringPolicy(cfg, v.Text)
		}
	case "e":
		if v := c.ChildByLocal("v"); v != nil {
			v.Text = errorPolicy(cfg, v.Text)
		}
	case "s":
		// Cell value is an index into the shared-string table; the string
		// content itself is rewritten once in xl/sharedStrings.xml.
	default:
		if v := c.ChildByLocal("v"); v != nil {
			v.Text = numericPolicy(cfg, v.Text)
		}
	}
}

func rewriteSharedStrings(data []byte, cfg Config) []byte {
	return rewriteLeafText(data, cfg, "t")
}

// rewriteLeafText applies the string policy to every leaf element with the
// given local name, anywhere in the tree.
func rewriteLeafText(data []byte, cfg Config, leafLocal string) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}
	root.Walk(func(n *xmltree.Node) {
		if n.Local == leafLocal && len(n.Children) == 0 {
			n.Text = stringPolicy(cfg, n.Text)
		}
	})
	return serializeOr(data, root)
}

// rewriteFreeformText handles charts/drawings/tables, which carry free-form
// strings in run-text elements (commonly "t", e.g. DrawingML "a:t") and in a
// handful of captioning attributes.
func rewriteFreeformText(data []byte, cfg Config) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}
	captionAttrs := map[string]bool{"caption": true, "name": true, "displayName": true}
	root.Walk(func(n *xmltree.Node) {
		if n.Local == "t" && len(n.Children) == 0 {
			n.Text = stringPolicy(cfg, n.Text)
			return
		}
		for i, a := range n.Attrs {
			if a.NS == "" && captionAttrs[a.Local] {
				n.Attrs[i].Value = stringPolicy(cfg, a.Value)
			}
		}
	})
	return serializeOr(data, root)
}

func rewriteCoreProps(data []byte) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}
	for _, local := range []string{"creator", "lastModifiedBy", "title", "subject", "description", "keywords"} {
		if c := root.Child(dcNS, local); c != nil {
			c.Text = "REDACTED"
		}
		if c := root.ChildByLocal(local); c != nil {
			c.Text = "REDACTED"
		}
	}
	if c := root.Child(dctermsNS, "created"); c != nil {
		c.Text = "1970-01-01T00:00:00Z"
	}
	if c := root.Child(dctermsNS, "modified"); c != nil {
		c.Text = "1970-01-01T00:00:00Z"
	}
	return serializeOr(data, root)
}

func rewriteAppProps(data []byte) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}
	for _, local := range []string{"Company", "Manager", "HyperlinkBase"} {
		if c := root.Child(extPropNS, local); c != nil {
			c.Text = "REDACTED"
		}
		if c := root.ChildByLocal(local); c != nil {
			c.Text = "REDACTED"
		}
	}
	return serializeOr(data, root)
}

func rewriteCellImages(data []byte, cfg Config) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}
	root.Walk(func(n *xmltree.Node) {
		for i, a := range n.Attrs {
			if a.NS == "" && (a.Local == "name" || a.Local == "descr") {
				n.Attrs[i].Value = "REDACTED"
			}
		}
		if n.Local == "t" && len(n.Children) == 0 {
			n.Text = "REDACTED"
		}
	})
	return serializeOr(data, root)
}

// rewriteVML strips <v:imagedata> elements whose relationship target was
// removed (media removal), mirroring the cellImages cleanup above: a
// legacy VML drawing can anchor the same embedded picture cellImages does,
// and a dangling r:id left behind after its target's relationship entry is
// stripped from the part's own .rels file would violate OPC integrity just
// as surely as an orphaned cellImage reference would.
func rewriteVML(name string, data []byte, removed map[string]bool, original map[string][]byte) []byte {
	root, ok := parseOrPassthrough(data)
	if !ok {
		return data
	}

	dangling := danglingVMLRelIDs(name, removed, original)
	if len(dangling) == 0 {
		return data
	}

	var strip func(n *xmltree.Node)
	strip = func(n *xmltree.Node) {
		var keep []*xmltree.Node
		for _, c := range n.Children {
			if c.NS == vmlNS && c.Local == "imagedata" && vmlRelID(c) != "" && dangling[vmlRelID(c)] {
				continue
			}
			strip(c)
			keep = append(keep, c)
		}
		n.Children = keep
	}
	strip(root)

	return serializeOr(data, root)
}

// vmlRelID returns the relationship id a <v:imagedata> carries, checking
// both the standard r:id attribute and the legacy o:relid spelling some
// VML producers use instead.
func vmlRelID(n *xmltree.Node) string {
	if v, ok := n.Attr(rNS, "id"); ok {
		return v
	}
	for _, a := range n.Attrs {
		if a.Local == "relid" {
			return a.Value
		}
	}
	return ""
}

// danglingVMLRelIDs resolves name's sibling .rels part (read from the
// pre-removal snapshot, so the result does not depend on map iteration
// order) and returns the set of relationship ids whose target was removed.
func danglingVMLRelIDs(name string, removed map[string]bool, original map[string][]byte) map[string]bool {
	sibling := siblingRelsPath(name)
	if sibling == "" {
		return nil
	}
	relsData, ok := original[sibling]
	if !ok {
		return nil
	}
	root, ok := parseOrPassthrough(relsData)
	if !ok {
		return nil
	}

	dangling := map[string]bool{}
	for _, c := range root.Children {
		if c.NS != relsNS || c.Local != "Relationship" {
			continue
		}
		if mode, _ := c.Attr("", "TargetMode"); mode == "External" {
			continue
		}
		id, _ := c.Attr("", "Id")
		target, _ := c.Attr("", "Target")
		if canon, err := opc.ResolveRelTarget(sibling, target); err == nil && removed[canon] {
			dangling[id] = true
		}
	}
	return dangling
}

func renameSheets(parts map[string][]byte) {
	wb, ok := parts["xl/workbook.xml"]
	if !ok {
		return
	}
	root, ok := parseOrPassthrough(wb)
	if !ok {
		return
	}
	sheets := root.ChildByLocal("sheets")
	if sheets == nil {
		return
	}
	renames := map[string]string{}
	idx := 1
	for _, sh := range sheets.Children {
		if sh.Local != "sheet" {
			continue
		}
		oldName, _ := sh.Attr("", "name")
		newName := fmt.Sprintf("Sheet%d", idx)
		idx++
		if oldName == newName {
			continue
		}
		renames[oldName] = newName
		sh.SetAttr("", "name", newName)
	}
	parts["xl/workbook.xml"] = serializeOr(wb, root)
	if len(renames) == 0 {
		return
	}
	for name, data := range parts {
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".xml") {
			continue
		}
		group := classify.Classify(name)
		if group != classify.GroupWorksheetXML && lower != "xl/workbook.xml" {
			continue
		}
		parts[name] = rewriteSheetReferences(data, renames)
	}
}

// rewriteSheetReferences substitutes qualified sheet references in formula
// text, matching quoted sheet names ('Old Name'!A1, with '' as an escaped
// apostrophe) and bare identifier sheet names (Old!A1) for every renamed
// sheet.
func rewriteSheetReferences(data []byte, renames map[string]string) []byte {
	text := string(data)
	oldNames := make([]string, 0, len(renames))
	for oldName := range renames {
		oldNames = append(oldNames, oldName)
	}
	sort.Strings(oldNames)
	for _, oldName := range oldNames {
		newName := renames[oldName]
		quoted := "'" + strings.ReplaceAll(oldName, "'", "''") + "'!"
		text = strings.ReplaceAll(text, quoted, "'"+newName+"'!")

		if isBareIdentifier(oldName) {
			re := regexp.MustCompile(`(?:^|[^A-Za-z0-9_.'])` + regexp.QuoteMeta(oldName) + `!`)
			text = re.ReplaceAllStringFunc(text, func(m string) string {
				prefix := m[:len(m)-len(oldName)-1]
				return prefix + newName + "!"
			})
		}
	}
	return []byte(text)
}

var bareIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

func isBareIdentifier(s string) bool { return bareIdentifier.MatchString(s) }

func stringPolicy(cfg Config, s string) string {
	if cfg.HashStrings {
		return hashToken(cfg.HashSalt, s)
	}
	if cfg.RedactCellValues {
		return "REDACTED"
	}
	return s
}

func numericPolicy(cfg Config, s string) string {
	if cfg.RedactCellValues {
		return "0"
	}
	return s
}

func errorPolicy(cfg Config, s string) string {
	if cfg.RedactCellValues {
		return "#N/A"
	}
	return s
}

func hashToken(salt, s string) string {
	sum := sha256.Sum256([]byte(salt + "\x00" + s))
	return "H_" + hex.EncodeToString(sum[:])[:16]
}
