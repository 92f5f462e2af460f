// Package fixture builds small, valid Office Open XML SpreadsheetML
// packages (.xlsx bytes) in memory, for use as test inputs to the triage
// engine — OpcPackage.Open, the Sanitizer, the Differ, FeatureExtractor, and
// the TriageRunner all need real package bytes to exercise, and hand-writing
// a ZIP+XML byte string per test case doesn't scale past the first handful.
//
// The writer keeps the XML-authoring approach of adnsv/go-xl's own package
// writer (github.com/adnsv/srw/xml, sorted-map emission for determinism),
// but the object model and part set are this engine's own: cell images are
// wired through the real xl/cellImages.xml + xl/_rels/cellImages.xml.rels +
// xl/media/* Cell Images extension the FeatureExtractor and Sanitizer key
// on, not a picture/drawing anchor, and docProps/core.xml carries a fixed
// timestamp rather than the wall clock so two Build calls over an equal
// Workbook are byte-identical.
package fixture

import "bytes"

// Build renders wb as a complete .xlsx archive and returns its bytes.
func Build(wb *Workbook) ([]byte, error) {
	var buf bytes.Buffer
	zs := NewZipStorage(&buf)
	w := NewWriter(zs)
	if err := w.Write(wb); err != nil {
		zs.Close()
		return nil, err
	}
	zs.Close()
	return buf.Bytes(), nil
}
