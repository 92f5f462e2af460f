package xmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBuildsTree(t *testing.T) {
	doc := `<workbook xmlns="urn:ns"><sheets><sheet name="Sheet1" sheetId="1"/></sheets></workbook>`
	root, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "workbook", root.Local)
	assert.Equal(t, "urn:ns", root.NS)

	sheets := root.ChildByLocal("sheets")
	require.NotNil(t, sheets)
	require.Len(t, sheets.Children, 1)

	sheet := sheets.Children[0]
	name, ok := sheet.Attr("", "name")
	require.True(t, ok)
	assert.Equal(t, "Sheet1", name)
}

func TestParseRejectsMalformedXML(t *testing.T) {
	_, err := Parse([]byte("<a><b></a>"))
	assert.Error(t, err)
}

func TestParseEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(""))
	assert.Error(t, err)
}

func TestAttrSetRemove(t *testing.T) {
	n := &Node{Local: "cell"}
	n.SetAttr("", "r", "A1")
	v, ok := n.Attr("", "r")
	require.True(t, ok)
	assert.Equal(t, "A1", v)

	n.SetAttr("", "r", "A2")
	v, _ = n.Attr("", "r")
	assert.Equal(t, "A2", v)
	assert.Len(t, n.Attrs, 1)

	n.RemoveAttr("", "r")
	_, ok = n.Attr("", "r")
	assert.False(t, ok)
}

func TestRemoveChild(t *testing.T) {
	child1 := &Node{Local: "a"}
	child2 := &Node{Local: "b"}
	parent := &Node{Local: "root", Children: []*Node{child1, child2}}

	parent.RemoveChild(child1)
	require.Len(t, parent.Children, 1)
	assert.Equal(t, child2, parent.Children[0])
}

func TestWalkVisitsInDocumentOrder(t *testing.T) {
	doc := `<a><b><c/></b><d/></a>`
	root, err := Parse([]byte(doc))
	require.NoError(t, err)

	var order []string
	root.Walk(func(n *Node) { order = append(order, n.Local) })
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestExpandedName(t *testing.T) {
	n := &Node{NS: "urn:ns", Local: "sheet"}
	assert.Equal(t, "{urn:ns}sheet", n.ExpandedName())

	n2 := &Node{Local: "sheet"}
	assert.Equal(t, "sheet", n2.ExpandedName())
}

func TestTrimmedText(t *testing.T) {
	n := &Node{Text: "  hello world  \n"}
	assert.Equal(t, "hello world", n.TrimmedText())
}

func TestSerializeRoundTripsAttributesAndText(t *testing.T) {
	doc := `<workbook xmlns="urn:ns1" xmlns:r="urn:ns2"><sheets><sheet r:id="rId1">value</sheet></sheets></workbook>`
	root, err := Parse([]byte(doc))
	require.NoError(t, err)

	out, err := Serialize(root)
	require.NoError(t, err)

	reparsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, root.Local, reparsed.Local)

	sheets := reparsed.ChildByLocal("sheets")
	require.NotNil(t, sheets)
	sheet := sheets.Children[0]
	assert.Equal(t, "value", sheet.TrimmedText())
	v, ok := sheet.Attr("urn:ns2", "id")
	require.True(t, ok)
	assert.Equal(t, "rId1", v)
}

func TestSerializeIsDeterministic(t *testing.T) {
	doc := `<a xmlns="urn:ns" xmlns:r="urn:r"><b r:id="x"/><c/></a>`
	root, err := Parse([]byte(doc))
	require.NoError(t, err)

	out1, err := Serialize(root)
	require.NoError(t, err)

	root2, err := Parse([]byte(doc))
	require.NoError(t, err)
	out2, err := Serialize(root2)
	require.NoError(t, err)

	assert.Equal(t, out1, out2)
}
