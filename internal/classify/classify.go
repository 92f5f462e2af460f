// Package classify implements a pure, total function mapping a canonical
// OPC part name to a functional group tag. Matching is case-insensitive on
// the path to tolerate Excel's casing drift (e.g. "CellImages1.XML").
package classify

import "strings"

// Group is the functional tag assigned to a part.
type Group string

const (
	GroupRels             Group = "rels"
	GroupContentTypes     Group = "content_types"
	GroupStyles           Group = "styles"
	GroupWorksheetXML     Group = "worksheet_xml"
	GroupSharedStrings    Group = "shared_strings"
	GroupDocProps         Group = "doc_props"
	GroupCalcChain        Group = "calc_chain"
	GroupDrawings         Group = "drawings"
	GroupCharts           Group = "charts"
	GroupMedia            Group = "media"
	GroupCustomXML        Group = "custom_xml"
	GroupExternalLinks    Group = "external_links"
	GroupConnections      Group = "connections"
	GroupPivot            Group = "pivot"
	GroupTables           Group = "tables"
	GroupComments         Group = "comments"
	GroupVBA              Group = "vba"
	GroupPrinterSettings  Group = "printer_settings"
	GroupCellImages       Group = "cell_images"
	GroupDialogsheet      Group = "dialogsheet"
	GroupMacrosheet       Group = "macrosheet"
	GroupVML              Group = "vml"
	GroupOther            Group = "other"
)

// Classify maps a canonical part name to its functional group, following the
// first-match-wins rules below. It never returns an error.
func Classify(name string) Group {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".rels"):
		return GroupRels
	case lower == "[content_types].xml":
		return GroupContentTypes
	case lower == "xl/styles.xml":
		return GroupStyles
	case lower == "xl/calcchain.xml":
		return GroupCalcChain
	case strings.HasPrefix(lower, "xl/worksheets/sheet"):
		return GroupWorksheetXML
	case lower == "xl/sharedstrings.xml":
		return GroupSharedStrings
	case strings.HasPrefix(lower, "docprops/"):
		return GroupDocProps
	case strings.HasPrefix(lower, "xl/drawings/") && isVML(lower):
		// More specific than the "drawings" bucket below: a VML drawing part
		// is classified as "vml" even though it lives under xl/drawings/.
		return GroupVML
	case strings.HasPrefix(lower, "xl/drawings/"):
		return GroupDrawings
	case strings.HasPrefix(lower, "xl/charts/"):
		return GroupCharts
	case strings.HasPrefix(lower, "xl/media/"):
		return GroupMedia
	case strings.HasPrefix(lower, "customxml/"):
		return GroupCustomXML
	case strings.HasPrefix(lower, "xl/customxml/"):
		return GroupCustomXML
	case strings.HasPrefix(lower, "xl/externallinks/"):
		return GroupExternalLinks
	case lower == "xl/connections.xml", strings.HasPrefix(lower, "xl/querytables/"):
		return GroupConnections
	case strings.HasPrefix(lower, "xl/pivot"):
		return GroupPivot
	case strings.HasPrefix(lower, "xl/tables/"):
		return GroupTables
	case strings.HasPrefix(lower, "xl/comments"):
		return GroupComments
	case lower == "xl/vbaproject.bin", lower == "xl/vbaprojectsignature.bin":
		return GroupVBA
	case strings.HasPrefix(lower, "xl/printersettings/"):
		return GroupPrinterSettings
	case isCellImages(lower):
		return GroupCellImages
	case strings.HasPrefix(lower, "xl/dialogsheets/"):
		return GroupDialogsheet
	case strings.HasPrefix(lower, "xl/macrosheets/"):
		return GroupMacrosheet
	default:
		return GroupOther
	}
}

// isCellImages matches "xl/cellimages*.xml", "xl/cellImages.xml", or any
// "xl/**/cellimages*.xml" variant nested under any subdirectory, all
// case-insensitively (the argument is already lower-cased).
func isCellImages(lower string) bool {
	if !strings.HasPrefix(lower, "xl/") || !strings.HasSuffix(lower, ".xml") {
		return false
	}
	base := lower[strings.LastIndex(lower, "/")+1:]
	return strings.HasPrefix(base, "cellimages")
}

func isVML(lower string) bool {
	return strings.HasSuffix(lower, ".vml")
}
