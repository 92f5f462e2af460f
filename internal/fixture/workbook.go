package fixture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Workbook is the in-memory model the triage pipeline's fixtures are built
// from before Build renders them to .xlsx bytes. It only models the
// structure the corpus fixtures actually exercise: sheets, rows, cells,
// merges, column widths — nothing an interactive editor would need.
type Workbook struct {
	AppName string
	Sheets  []*Sheet

	sheetNames map[string]bool
}

// NewWorkbook returns an empty workbook ready for AddSheet.
func NewWorkbook() *Workbook {
	return &Workbook{sheetNames: map[string]bool{}}
}

// AddSheet appends a new worksheet named name. Sheet names follow Excel's
// own constraints (1-31 runes, no leading/trailing quote, none of
// `:\/?*[]`) since a fixture whose sheet name the real Excel would reject
// wouldn't exercise anything the triage engine cares about.
func (wb *Workbook) AddSheet(name string) (*Sheet, error) {
	if wb.sheetNames[name] {
		return nil, fmt.Errorf("duplicate sheet name %q", name)
	}
	if err := validateSheetName(name); err != nil {
		return nil, err
	}
	sh := &Sheet{
		workbook:      wb,
		Name:          name,
		Columns:       map[int]*Column{},
		nextRowNumber: 1,
	}
	wb.Sheets = append(wb.Sheets, sh)
	wb.sheetNames[name] = true
	return sh, nil
}

func validateSheetName(name string) error {
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		return errors.New("sheet name must not be empty")
	case n > 31:
		return errors.New("sheet name exceeds 31 characters")
	case strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'"):
		return errors.New("sheet name must not start or end with a quote")
	case strings.ContainsAny(name, ":\\/?*[]"):
		return errors.New(`sheet name must not contain any of :\/?*[]`)
	}
	return nil
}

// Sheet is one worksheet: an ordered list of rows, sparse column widths,
// and non-overlapping merge ranges.
type Sheet struct {
	Name       string
	Rows       []*Row
	Columns    map[int]*Column
	MergeCells []MergeCell

	workbook      *Workbook
	nextRowNumber int
}

// Column holds per-column width overrides.
type Column struct {
	Width float32
}

// MergeCell is one merged range, recorded in its original "A1:B2" spelling.
type MergeCell struct {
	Ref string
}

// AddRow appends a new, empty row below the sheet's current last row.
func (s *Sheet) AddRow() *Row {
	r := &Row{sheet: s, rowNumber: s.nextRowNumber, nextColumnNumber: 1}
	s.nextRowNumber++
	s.Rows = append(s.Rows, r)
	return r
}

// SetColumnWidth overrides colNumber's width (1-based); w <= 0 clears the
// override back to the sheet default.
func (s *Sheet) SetColumnWidth(colNumber int, w float32) {
	if colNumber <= 0 {
		return
	}
	if w <= 0 {
		delete(s.Columns, colNumber)
		return
	}
	s.Columns[colNumber] = &Column{Width: w}
}

// Merge records a merged range given as an "A1:B2" reference, rejecting
// ranges that are degenerate or overlap an existing merge.
func (s *Sheet) Merge(ref string) error {
	startCol, startRow, endCol, endRow, err := parseMergeRef(ref)
	if err != nil {
		return err
	}
	if err := s.checkMergeRange(startCol, startRow, endCol, endRow); err != nil {
		return err
	}
	s.MergeCells = append(s.MergeCells, MergeCell{Ref: ref})
	return nil
}

// MergeRange is Merge expressed in 1-based column/row coordinates instead
// of an "A1:B2" string.
func (s *Sheet) MergeRange(startCol, startRow, endCol, endRow int) error {
	if err := s.checkMergeRange(startCol, startRow, endCol, endRow); err != nil {
		return err
	}
	if startCol > endCol {
		startCol, endCol = endCol, startCol
	}
	if startRow > endRow {
		startRow, endRow = endRow, startRow
	}
	ref := CellCoordAsString(startCol, startRow) + ":" + CellCoordAsString(endCol, endRow)
	s.MergeCells = append(s.MergeCells, MergeCell{Ref: ref})
	return nil
}

func (s *Sheet) checkMergeRange(startCol, startRow, endCol, endRow int) error {
	if startCol > endCol {
		startCol, endCol = endCol, startCol
	}
	if startRow > endRow {
		startRow, endRow = endRow, startRow
	}
	if startCol == endCol && startRow == endRow {
		return errors.New("merge range must span more than one cell")
	}
	for _, mc := range s.MergeCells {
		ec1, er1, ec2, er2, err := parseMergeRef(mc.Ref)
		if err != nil {
			continue
		}
		if ec1 > ec2 {
			ec1, ec2 = ec2, ec1
		}
		if er1 > er2 {
			er1, er2 = er2, er1
		}
		if !(endCol < ec1 || startCol > ec2 || endRow < er1 || startRow > er2) {
			return fmt.Errorf("merge range overlaps existing merge %q", mc.Ref)
		}
	}
	return nil
}

func parseMergeRef(ref string) (startCol, startRow, endCol, endRow int, err error) {
	parts := strings.Split(ref, ":")
	if len(parts) != 2 {
		return 0, 0, 0, 0, fmt.Errorf("merge reference %q must look like A1:B2", ref)
	}
	startCol, startRow, err = parseCellRef(parts[0])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	endCol, endRow, err = parseCellRef(parts[1])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return startCol, startRow, endCol, endRow, nil
}

func parseCellRef(ref string) (col, row int, err error) {
	if ref == "" {
		return 0, 0, errors.New("empty cell reference")
	}
	i := 0
	for i < len(ref) && unicode.IsLetter(rune(ref[i])) {
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, fmt.Errorf("malformed cell reference %q", ref)
	}
	for _, ch := range strings.ToUpper(ref[:i]) {
		if ch < 'A' || ch > 'Z' {
			return 0, 0, fmt.Errorf("malformed column letters in %q", ref)
		}
		col = col*26 + int(ch-'A') + 1
	}
	row, err = strconv.Atoi(ref[i:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("malformed row number in %q", ref)
	}
	return col, row, nil
}

// Row is one worksheet row: a 1-based row number plus its cells in column
// order.
type Row struct {
	Cells  []*Cell
	Height float32

	sheet            *Sheet
	rowNumber        int
	nextColumnNumber int
}

// AddCell appends a new, untyped cell to the right of the row's last cell.
func (r *Row) AddCell() *Cell {
	c := &Cell{row: r, columnNumber: r.nextColumnNumber, coord: CellCoordAsString(r.nextColumnNumber, r.rowNumber)}
	r.nextColumnNumber++
	r.Cells = append(r.Cells, c)
	return c
}

// ColumnNumberAsLetters renders a 1-based column number the way Excel
// spells it: 1 -> "A", 26 -> "Z", 27 -> "AA".
func ColumnNumberAsLetters(n int) string {
	if n < 1 {
		panic("fixture: column number must be >= 1")
	}
	var s string
	for n > 0 {
		s = string(rune((n-1)%26+'A')) + s
		n = (n - 1) / 26
	}
	return s
}

// CellCoordAsString renders a 1-based (col, row) pair as an A1-style
// reference.
func CellCoordAsString(col, row int) string {
	if row < 0 {
		panic("fixture: row number must be >= 0")
	}
	return ColumnNumberAsLetters(col) + strconv.Itoa(row)
}
