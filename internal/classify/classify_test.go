package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		want Group
	}{
		{"[Content_Types].xml", GroupContentTypes},
		{"_rels/.rels", GroupRels},
		{"xl/_rels/workbook.xml.rels", GroupRels},
		{"xl/styles.xml", GroupStyles},
		{"xl/calcChain.xml", GroupCalcChain},
		{"xl/worksheets/sheet1.xml", GroupWorksheetXML},
		{"xl/worksheets/sheet12.xml", GroupWorksheetXML},
		{"xl/sharedStrings.xml", GroupSharedStrings},
		{"docProps/core.xml", GroupDocProps},
		{"docProps/app.xml", GroupDocProps},
		{"xl/drawings/vmlDrawing1.vml", GroupVML},
		{"xl/drawings/drawing1.xml", GroupDrawings},
		{"xl/charts/chart1.xml", GroupCharts},
		{"xl/media/image1.png", GroupMedia},
		{"customXml/item1.xml", GroupCustomXML},
		{"xl/customXml/item1.xml", GroupCustomXML},
		{"xl/externalLinks/externalLink1.xml", GroupExternalLinks},
		{"xl/connections.xml", GroupConnections},
		{"xl/queryTables/queryTable1.xml", GroupConnections},
		{"xl/pivotTables/pivotTable1.xml", GroupPivot},
		{"xl/pivotCache/pivotCacheDefinition1.xml", GroupPivot},
		{"xl/tables/table1.xml", GroupTables},
		{"xl/comments1.xml", GroupComments},
		{"xl/vbaProject.bin", GroupVBA},
		{"xl/vbaProjectSignature.bin", GroupVBA},
		{"xl/printerSettings/printerSettings1.bin", GroupPrinterSettings},
		{"xl/cellimages.xml", GroupCellImages},
		{"xl/cellImages1.xml", GroupCellImages},
		{"xl/richData/cellimages2.xml", GroupCellImages},
		{"xl/dialogsheets/sheet1.xml", GroupDialogsheet},
		{"xl/macrosheets/sheet1.xml", GroupMacrosheet},
		{"xl/theme/theme1.xml", GroupOther},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Classify(c.name))
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, GroupStyles, Classify("XL/STYLES.XML"))
	assert.Equal(t, GroupCellImages, Classify("Xl/CellImages1.XML"))
}

func TestClassifyRelsWinsOverEverythingElse(t *testing.T) {
	// A rels part living next to styles.xml must still classify as rels, not
	// styles, since ".rels" matching happens first.
	assert.Equal(t, GroupRels, Classify("xl/_rels/styles.xml.rels"))
}
