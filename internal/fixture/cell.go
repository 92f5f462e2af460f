package fixture

import "fmt"

// CellType discriminates how a cell's value is encoded in the worksheet
// XML — shared string, inline string, number, formula, and so on.
type CellType int

const (
	CellTypeUnset CellType = iota
	CellTypeBool
	CellTypeError
	CellTypeFormula
	CellTypeInlineString
	CellTypeNumber
	CellTypeSharedString

	cellTypeImage // internal: backs SetImage, rendered via xl/cellImages.xml
)

// Cell is one worksheet cell: its typed value plus the formatting (XF) the
// style-complexity and round-trip tests exercise.
type Cell struct {
	row          *Row
	columnNumber int
	coord        string
	typ          CellType
	v            string
	cachedResult string
	image        *ImageRef

	XF
}

// ImageRef names an embedded image for a cell built with SetImage: the raw
// bytes plus an extension ("." included) selecting the media content type.
type ImageRef struct {
	Extension string
	Blob      []byte
}

// XF (Extended Format) is the formatting attributes a cell can carry:
// alignment and font. Cells that need none of this leave XF zero-valued,
// which the writer recognizes via Empty and skips emitting a style index
// for.
type XF struct {
	Alignment Alignment
	Font      Font
}

// Empty reports whether xf carries no formatting the writer would need to
// register a cellXfs entry for.
func (xf *XF) Empty() bool {
	return xf.Alignment.Empty() && xf.Font.Empty()
}

// HorizontalAlignment is ST_HorizontalAlignment (ECMA-376).
type HorizontalAlignment string

const (
	HAlignGeneral          HorizontalAlignment = "general"
	HAlignLeft             HorizontalAlignment = "left"
	HAlignCenter           HorizontalAlignment = "center"
	HAlignRight            HorizontalAlignment = "right"
	HAlignFill             HorizontalAlignment = "fill"
	HAlignJustify          HorizontalAlignment = "justify"
	HAlignCenterContinuous HorizontalAlignment = "centerContinuous"
	HAlignDistributed      HorizontalAlignment = "distributed"
)

// VerticalAlignment is ST_VerticalAlignment (ECMA-376).
type VerticalAlignment string

const (
	VAlignTop         VerticalAlignment = "top"
	VAlignCenter      VerticalAlignment = "center"
	VAlignBottom      VerticalAlignment = "bottom"
	VAlignJustify     VerticalAlignment = "justify"
	VAlignDistributed VerticalAlignment = "distributed"
)

// Alignment is a cell's horizontal/vertical alignment override.
type Alignment struct {
	Horizontal HorizontalAlignment
	Vertical   VerticalAlignment
}

// Empty reports whether neither axis has been overridden.
func (a *Alignment) Empty() bool {
	return a.Horizontal == "" && a.Vertical == ""
}

// UnderlineType is ST_UnderlineValues (ECMA-376).
type UnderlineType string

const (
	UnderlineNone             UnderlineType = ""
	UnderlineSingle           UnderlineType = "single"
	UnderlineDouble           UnderlineType = "double"
	UnderlineSingleAccounting UnderlineType = "singleAccounting"
	UnderlineDoubleAccounting UnderlineType = "doubleAccounting"
)

// Font is a cell's font override; the zero value means "use the sheet
// default", which the style-complexity tests rely on to keep cellXfs/fonts
// counts at zero until a fixture actually asks for one.
type Font struct {
	Size          float64
	Bold          bool
	Italic        bool
	Underline     UnderlineType
	Strikethrough bool
}

// Empty reports whether the font carries no override.
func (f *Font) Empty() bool {
	return f.Size == 0 && !f.Bold && !f.Italic && f.Underline == UnderlineNone && !f.Strikethrough
}

// SetBool sets a boolean cell, emitted as Excel's "1"/"0" boolean literal.
func (c *Cell) SetBool(v bool) {
	c.typ = CellTypeBool
	if v {
		c.v = "1"
	} else {
		c.v = "0"
	}
}

// SetInt sets a numeric (integer) cell.
func (c *Cell) SetInt(v int64) {
	c.typ = CellTypeNumber
	c.v = fmt.Sprintf("%d", v)
}

// SetFloat sets a numeric (floating point) cell.
func (c *Cell) SetFloat(v float64) {
	c.typ = CellTypeNumber
	c.v = fmt.Sprintf("%g", v)
}

// SetStr sets a string cell, deduplicated through the workbook's shared
// string table.
func (c *Cell) SetStr(v string) {
	c.typ = CellTypeSharedString
	c.v = v
}

// SetFormula sets a formula cell (stored without the leading "="). A
// non-empty cachedResult is emitted as the formula's cached <v>, the same
// shape a stale recalc leaves behind for the round-trip comparator to
// flag.
func (c *Cell) SetFormula(formula, cachedResult string) {
	c.typ = CellTypeFormula
	c.v = formula
	c.cachedResult = cachedResult
}

// SetInlineString sets an inline string cell (t="str"), bypassing the
// shared string table — for fixtures exercising the parts of the corpus
// that never dedupe text through sharedStrings.xml.
func (c *Cell) SetInlineString(v string) {
	c.typ = CellTypeInlineString
	c.v = v
}

// SetError sets a cell to an Excel error literal such as "#REF!".
func (c *Cell) SetError(v string) {
	c.typ = CellTypeError
	c.v = v
}

// SetImage sets a cell to display img, wired through xl/cellImages.xml —
// the OOXML Cell Images extension the Sanitizer and FeatureExtractor both
// key on — rather than a picture anchored to the sheet.
func (c *Cell) SetImage(img *ImageRef) {
	c.typ = cellTypeImage
	c.image = img
}
