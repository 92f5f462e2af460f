package fixture

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/adnsv/srw/xml"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
)

// fixedCreatedTimestamp stands in for "now" in docProps/core.xml. A fixture
// builder that embedded the wall clock would make TestMinimalIsDeterministic
// flaky across a second boundary — the whole point of this package is
// producing byte-identical inputs for the engine's own determinism tests, so
// it holds itself to the same rule the Sanitizer does.
const fixedCreatedTimestamp = "2001-01-01T00:00:00Z"

// RelInfo is one relationship entry: its type URI and the (relative) target
// it points at.
type RelInfo struct {
	Type   string
	Target string
}

// imageInfo is one deduplicated embedded image backing a cellTypeImage
// cell: its xl/media/ filename, the relationship id that reaches it from
// xl/_rels/cellImages.xml.rels, and the etc:cellImage name that reaches it
// from xl/cellImages.xml.
type imageInfo struct {
	Name    string
	Blob    []byte
	RelID   string
	ImageID string
}

// Writer renders a Workbook into a set of OPC parts via Storage. It owns
// the shared-string table, the style (XF/font) table, and the cell-image
// registry, all de-duplicated and ID-assigned the same way across two
// separate Write calls over an equal Workbook — Build's determinism
// guarantee depends on that.
type Writer struct {
	out            Storage
	lastGlobalId   int
	lastWorkbookId int
	lastImageRelId int

	GlobalRels          map[string]RelInfo
	WorkbookRels        map[string]RelInfo
	CellImageRels       map[string]RelInfo
	DefaultContentTypes map[string]string
	PartContentTypes    map[string]string

	sharedStrings   []string
	sharedStringMap map[string]int

	images   []*imageInfo
	imageMap map[string]*imageInfo

	xfs   []*XF
	fonts []*Font
}

// NewWriter returns a Writer that emits parts to s.
func NewWriter(s Storage) *Writer {
	w := &Writer{
		out:                 s,
		GlobalRels:          map[string]RelInfo{},
		WorkbookRels:        map[string]RelInfo{},
		CellImageRels:       map[string]RelInfo{},
		DefaultContentTypes: map[string]string{},
		PartContentTypes:    map[string]string{},
		sharedStringMap:     map[string]int{},
		imageMap:            map[string]*imageInfo{},
	}
	w.DefaultContentTypes["xml"] = "application/xml"
	w.DefaultContentTypes["rels"] = "application/vnd.openxmlformats-package.relationships+xml"
	return w
}

// SharedString interns s into the shared string table, returning its
// (possibly pre-existing) index.
func (w *Writer) SharedString(s string) int {
	if i, ok := w.sharedStringMap[s]; ok {
		return i
	}
	i := len(w.sharedStrings)
	w.sharedStrings = append(w.sharedStrings, s)
	w.sharedStringMap[s] = i
	return i
}

func (w *Writer) nextGlobalID() string {
	w.lastGlobalId++
	return fmt.Sprintf("rId%d", w.lastGlobalId)
}

func (w *Writer) nextWorkbookID() string {
	w.lastWorkbookId++
	return fmt.Sprintf("rId%d", w.lastWorkbookId)
}

func (w *Writer) nextCellImageRelID() string {
	w.lastImageRelId++
	return fmt.Sprintf("rId%d", w.lastImageRelId)
}

// registerImage deduplicates img by content hash + extension and returns
// the imageInfo assigned to it, registering a fresh xl/media/ entry and
// xl/_rels/cellImages.xml.rels relationship the first time a given blob is
// seen.
func (w *Writer) registerImage(img *ImageRef) (*imageInfo, error) {
	if len(img.Blob) == 0 {
		return nil, errors.New("fixture: image cell has no blob")
	}
	ext := strings.ToLower(img.Extension)
	if ext == ".jpg" {
		ext = ".jpeg"
	}
	switch ext {
	case ".jpeg":
		w.DefaultContentTypes["jpeg"] = "image/jpeg"
	case ".png":
		w.DefaultContentTypes["png"] = "image/png"
	default:
		return nil, fmt.Errorf("fixture: unsupported image extension %q", img.Extension)
	}

	sum := sha256.Sum256(img.Blob)
	key := hex.EncodeToString(sum[:8]) + ext
	if info, ok := w.imageMap[key]; ok {
		return info, nil
	}

	relID := w.nextCellImageRelID()
	info := &imageInfo{
		Name:    key,
		Blob:    img.Blob,
		RelID:   relID,
		ImageID: fmt.Sprintf("Image%d", len(w.images)+1),
	}
	w.imageMap[key] = info
	w.images = append(w.images, info)
	w.CellImageRels[relID] = RelInfo{
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image",
		Target: "media/" + key,
	}
	return info, nil
}

// Write renders wb's parts to the Writer's Storage in the fixed order a
// real Excel-authored package follows: workbook and sheets first (since
// writing them populates the shared-string/style/image tables everything
// after depends on), then the tables those collected, then the
// relationship and content-type parts that tie it all together.
func (w *Writer) Write(wb *Workbook) error {
	if err := w.writeWorkbook(wb); err != nil {
		return err
	}

	if len(w.images) > 0 {
		if err := w.writeMedia(); err != nil {
			return err
		}
		if err := w.writeCellImages(); err != nil {
			return err
		}
		if err := w.writeRels("/xl/_rels/cellImages.xml.rels", w.CellImageRels); err != nil {
			return err
		}
	}

	if err := w.writeCoreProperties(); err != nil {
		return err
	}
	if err := w.writeExtendedProperties(wb.AppName); err != nil {
		return err
	}

	if len(w.sharedStrings) > 0 {
		if err := w.writeSharedStrings(); err != nil {
			return err
		}
	}
	if len(w.xfs) > 0 {
		if err := w.writeStyles(); err != nil {
			return err
		}
	}

	if err := w.writeRels("/xl/_rels/workbook.xml.rels", w.WorkbookRels); err != nil {
		return err
	}
	if err := w.writeRels("/_rels/.rels", w.GlobalRels); err != nil {
		return err
	}

	return w.writeContentTypes()
}

func (w *Writer) writeCoreProperties() error {
	rid := w.nextGlobalID()

	relpath := "docProps/core.xml"
	abspath := "/" + relpath

	w.PartContentTypes[abspath] = "application/vnd.openxmlformats-package.core-properties+xml"
	w.GlobalRels[rid] = RelInfo{
		Type:   "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties",
		Target: relpath,
	}

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("cp:coreProperties")
	x.Attr("xmlns:cp", "http://schemas.openxmlformats.org/package/2006/metadata/core-properties")
	x.Attr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	x.Attr("xmlns:dcterms", "http://purl.org/dc/terms/")
	x.Attr("xmlns:dcmitype", "http://purl.org/dc/dcmitype/")
	x.Attr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")

	x.OTag("+dcterms:created")
	x.Attr("xsi:type", "dcterms:W3CDTF")
	x.Write(fixedCreatedTimestamp)
	x.CTag()

	x.CTag()

	return w.out.WriteBlob(abspath, bb.Bytes())
}

func (w *Writer) writeExtendedProperties(appName string) error {
	rid := w.nextGlobalID()

	relpath := "docProps/app.xml"
	abspath := "/" + relpath

	w.PartContentTypes[abspath] = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
	w.GlobalRels[rid] = RelInfo{
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties",
		Target: relpath,
	}

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("Properties")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties")
	x.Attr("xmlns:vt", "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes")

	if appName != "" {
		x.OTag("+Application").Write(appName).CTag()
	}

	x.CTag()

	return w.out.WriteBlob(abspath, bb.Bytes())
}

func (w *Writer) writeContentTypes() error {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("Types")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/package/2006/content-types")
	_ = enumerate(w.DefaultContentTypes, func(ext, ctype string) error {
		x.OTag("+Default").Attr("Extension", ext).Attr("ContentType", ctype).CTag()
		return nil
	})
	_ = enumerate(w.PartContentTypes, func(abspath, ctype string) error {
		x.OTag("+Override").Attr("PartName", abspath).Attr("ContentType", ctype).CTag()
		return nil
	})

	x.CTag()

	return w.out.WriteBlob("[Content_Types].xml", bb.Bytes())
}

func (w *Writer) writeStyles() error {
	rid := w.nextWorkbookID()

	relpath := "styles.xml"
	abspath := "/xl/" + relpath

	w.PartContentTypes[abspath] = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"
	w.WorkbookRels[rid] = RelInfo{
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles",
		Target: relpath,
	}

	for _, xf := range w.xfs {
		if !xf.Font.Empty() && w.findFont(&xf.Font) < 0 {
			w.fonts = append(w.fonts, &xf.Font)
		}
	}

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("styleSheet")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/spreadsheetml/2006/main")

	x.OTag("+fonts").Attr("count", len(w.fonts)+1)
	x.OTag("+font")
	x.OTag("+sz").Attr("val", 11).CTag()
	x.OTag("+name").Attr("val", "Calibri").CTag()
	x.OTag("+family").Attr("val", 2).CTag()
	x.CTag()
	for _, font := range w.fonts {
		x.OTag("+font")
		if font.Bold {
			x.OTag("+b").CTag()
		}
		if font.Italic {
			x.OTag("+i").CTag()
		}
		if font.Strikethrough {
			x.OTag("+strike").CTag()
		}
		if font.Underline != UnderlineNone {
			if font.Underline == UnderlineSingle {
				x.OTag("+u").CTag()
			} else {
				x.OTag("+u").Attr("val", string(font.Underline)).CTag()
			}
		}
		size := font.Size
		if size == 0 {
			size = 11
		}
		x.OTag("+sz").Attr("val", size).CTag()
		x.OTag("+name").Attr("val", "Calibri").CTag()
		x.OTag("+family").Attr("val", 2).CTag()
		x.CTag()
	}
	x.CTag() // fonts

	x.OTag("+fills").Attr("count", 1)
	x.OTag("+fill")
	x.OTag("+patternFill").Attr("patternType", "none").CTag()
	x.CTag()
	x.CTag() // fills

	x.OTag("+borders").Attr("count", 1)
	x.OTag("+border")
	x.OTag("+left").CTag()
	x.OTag("+right").CTag()
	x.OTag("+top").CTag()
	x.OTag("+bottom").CTag()
	x.OTag("+diagonal").CTag()
	x.CTag()
	x.CTag() // borders

	x.OTag("+cellStyleXfs").Attr("count", 1)
	x.OTag("+xf")
	x.Attr("numFmtId", "0")
	x.Attr("fontId", "0")
	x.Attr("fillId", "0")
	x.Attr("borderId", "0")
	x.CTag()
	x.CTag() // cellStyleXfs

	x.OTag("+cellXfs").Attr("count", len(w.xfs)+1)
	x.OTag("+xf")
	x.Attr("numFmtId", "0")
	x.Attr("fontId", "0")
	x.Attr("fillId", "0")
	x.Attr("borderId", "0")
	x.Attr("xfId", "0")
	x.CTag()
	for _, xf := range w.xfs {
		x.OTag("+xf")
		x.Attr("numFmtId", "0")

		fontId := 0
		if !xf.Font.Empty() {
			if idx := w.findFont(&xf.Font); idx >= 0 {
				fontId = idx + 1
			}
		}
		x.Attr("fontId", fontId)
		x.Attr("fillId", "0")
		x.Attr("borderId", "0")
		x.Attr("xfId", "0")

		if !xf.Font.Empty() {
			x.Attr("applyFont", "1")
		}
		if !xf.Alignment.Empty() {
			x.Attr("applyAlignment", "1")
			x.OTag("+alignment")
			if xf.Alignment.Horizontal != "" {
				x.Attr("horizontal", xf.Alignment.Horizontal)
			}
			if xf.Alignment.Vertical != "" {
				x.Attr("vertical", xf.Alignment.Vertical)
			}
			x.CTag()
		}
		x.CTag()
	}
	x.CTag() // cellXfs

	x.CTag()

	return w.out.WriteBlob(abspath, bb.Bytes())
}

func (w *Writer) findXF(xf *XF) int {
	for i, v := range w.xfs {
		if *v == *xf {
			return i
		}
	}
	return -1
}

func (w *Writer) findFont(font *Font) int {
	for i, f := range w.fonts {
		if *f == *font {
			return i
		}
	}
	return -1
}

func (w *Writer) writeWorkbook(wb *Workbook) error {
	rid := w.nextGlobalID()

	relpath := "xl/workbook.xml"
	abspath := "/" + relpath

	w.PartContentTypes[abspath] = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	w.GlobalRels[rid] = RelInfo{
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument",
		Target: relpath,
	}

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("workbook")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/spreadsheetml/2006/main")
	x.Attr("xmlns:r", "http://schemas.openxmlformats.org/officeDocument/2006/relationships")

	x.OTag("+sheets")
	for i, sheet := range wb.Sheets {
		sheetRid := w.nextWorkbookID()
		x.OTag("+sheet")
		x.Attr("name", sheet.Name)
		x.Attr("sheetId", i+1)
		x.Attr("r:id", sheetRid)
		x.CTag()

		if err := w.writeSheet(sheet, i+1, sheetRid); err != nil {
			return err
		}
	}
	x.CTag() // sheets

	x.CTag() // workbook

	return w.out.WriteBlob(abspath, bb.Bytes())
}

func (w *Writer) writeSheet(sh *Sheet, partIndex int, rid string) error {
	relpath := fmt.Sprintf("worksheets/sheet%d.xml", partIndex)
	abspath := "/xl/" + relpath

	w.PartContentTypes[abspath] = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	w.WorkbookRels[rid] = RelInfo{
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet",
		Target: relpath,
	}

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("worksheet")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/spreadsheetml/2006/main")
	x.Attr("xmlns:r", "http://schemas.openxmlformats.org/officeDocument/2006/relationships")

	if len(sh.Columns) > 0 {
		x.OTag("+cols")
		_ = enumerate(sh.Columns, func(n int, v *Column) error {
			x.OTag("+col").Attr("min", n).Attr("max", n)
			if v.Width > 0 {
				x.Attr("width", v.Width).Attr("customWidth", 1)
			}
			x.CTag()
			return nil
		})
		x.CTag()
	}

	x.OTag("+sheetData")
	for _, row := range sh.Rows {
		x.OTag("+row").Attr("r", row.rowNumber)
		if row.Height > 0 {
			x.Attr("ht", row.Height).Attr("customHeight", 1)
		}

		for _, cell := range row.Cells {
			x.OTag("+c").Attr("r", cell.coord)

			if !cell.XF.Empty() {
				i := w.findXF(&cell.XF)
				if i < 0 {
					w.xfs = append(w.xfs, &cell.XF)
					i = len(w.xfs) - 1
				}
				x.Attr("s", i+1)
			}

			switch cell.typ {
			case CellTypeBool:
				x.Attr("t", "b")
				x.OTag("+v").Write(cell.v).CTag()
			case CellTypeNumber:
				x.Attr("t", "n")
				x.OTag("+v").Write(cell.v).CTag()
			case CellTypeError:
				x.Attr("t", "e")
				x.OTag("+v").Write(cell.v).CTag()
			case CellTypeSharedString:
				x.Attr("t", "s")
				x.OTag("+v").Write(w.SharedString(cell.v)).CTag()
			case CellTypeFormula:
				x.OTag("+f").Write(cell.v).CTag()
				if cell.cachedResult != "" {
					x.OTag("+v").Write(cell.cachedResult).CTag()
				}
			case CellTypeInlineString:
				x.Attr("t", "str")
				x.OTag("+v").Write(cell.v).CTag()
			case cellTypeImage:
				if cell.image == nil {
					return errors.New("fixture: image cell missing ImageRef")
				}
				info, err := w.registerImage(cell.image)
				if err != nil {
					return err
				}
				x.OTag("+f").Write(fmt.Sprintf(`_xlfn.DISPIMG("%s",1)`, info.ImageID)).CTag()
			}
			x.CTag() // c
		}

		x.CTag() // row
	}
	x.CTag() // sheetData

	if len(sh.MergeCells) > 0 {
		x.OTag("+mergeCells").Attr("count", len(sh.MergeCells))
		for _, mc := range sh.MergeCells {
			x.OTag("+mergeCell").Attr("ref", mc.Ref).CTag()
		}
		x.CTag()
	}

	x.CTag() // worksheet

	return w.out.WriteBlob(abspath, bb.Bytes())
}

func (w *Writer) writeSharedStrings() error {
	rid := w.nextWorkbookID()

	relpath := "sharedStrings.xml"
	abspath := "/xl/" + relpath

	w.PartContentTypes[abspath] = "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"
	w.WorkbookRels[rid] = RelInfo{
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings",
		Target: relpath,
	}

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("sst")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/spreadsheetml/2006/main")
	x.Attr("count", len(w.sharedStrings))
	x.Attr("uniqueCount", len(w.sharedStrings))

	for _, s := range w.sharedStrings {
		x.OTag("+si")
		x.OTag("+t").Write(s).CTag()
		x.CTag()
	}

	x.CTag()

	return w.out.WriteBlob(abspath, bb.Bytes())
}

func (w *Writer) writeMedia() error {
	for _, img := range w.images {
		if err := w.out.WriteBlob("/xl/media/"+img.Name, img.Blob); err != nil {
			return err
		}
	}
	return nil
}

// writeCellImages emits xl/cellImages.xml: the OOXML Cell Images extension
// part the Sanitizer's media-removal closure and the FeatureExtractor's
// cell-images selection both key on, distinct from a drawing anchored to
// the sheet.
func (w *Writer) writeCellImages() error {
	rid := w.nextWorkbookID()

	relpath := "cellImages.xml"
	abspath := "/xl/" + relpath

	w.PartContentTypes[abspath] = "application/vnd.openxmlformats-officedocument.spreadsheetml.cellImages+xml"
	w.WorkbookRels[rid] = RelInfo{
		Type:   "http://schemas.microsoft.com/office/2017/10/relationships/cellImages",
		Target: relpath,
	}

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("etc:cellImages")
	x.Attr("xmlns:etc", "http://schemas.microsoft.com/office/drawing/2017/10/07/etc")
	x.Attr("xmlns:r", "http://schemas.openxmlformats.org/officeDocument/2006/relationships")
	x.Attr("xmlns:xdr", "http://schemas.openxmlformats.org/drawingml/2006/spreadsheetDrawing")
	x.Attr("xmlns:a", "http://schemas.openxmlformats.org/drawingml/2006/main")

	for _, img := range w.images {
		x.OTag("+etc:cellImage")
		x.Attr("name", img.ImageID)
		x.OTag("+xdr:pic")
		x.OTag("+xdr:blipFill")
		x.OTag("+a:blip").Attr("r:embed", img.RelID).CTag()
		x.CTag() // blipFill
		x.CTag() // pic
		x.CTag() // cellImage
	}

	x.CTag()

	return w.out.WriteBlob(abspath, bb.Bytes())
}

func (w *Writer) writeRels(path string, rels map[string]RelInfo) error {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("Relationships")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/package/2006/relationships")
	err := enumerate(rels, func(rid string, info RelInfo) error {
		x.OTag("+Relationship").Attr("Id", rid).Attr("Type", info.Type).Attr("Target", info.Target)
		x.CTag()
		return nil
	})
	if err != nil {
		return err
	}
	x.CTag()

	return w.out.WriteBlob(path, bb.Bytes())
}

// enumerate iterates m in sorted key order, so parts derived from map
// contents (rels files, content-type overrides, style tables) come out
// byte-identical across runs regardless of Go's randomized map order.
func enumerate[M ~map[K]V, K constraints.Ordered, V any](m M, callback func(k K, v V) error) error {
	keys := maps.Keys(m)
	slices.Sort(keys)
	for _, k := range keys {
		if err := callback(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}
