// Package xmltree implements a small, generic, namespace-aware XML node
// tree: the editable in-memory representation the Sanitizer and the
// Differ's semantic XML comparison both build their work on top of.
//
// Parsing rides stdlib encoding/xml's namespace resolution (see DESIGN.md
// for why a generic OPC-flavored XML DOM is built on the standard library
// rather than a third-party tree). Serialization reuses the
// github.com/adnsv/srw/xml writer, the same OTag/Attr/CTag builder used for
// authoring workbook parts, generalized here to walk an arbitrary Node tree
// instead of one fixed schema.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	srwxml "github.com/adnsv/srw/xml"
)

// Attr is a namespace-expanded attribute: NS is the resolved namespace URI
// (empty for unprefixed attributes), Local is the attribute's local name.
type Attr struct {
	NS    string
	Local string
	Value string
}

// Node is one element in the generic tree. Leaf elements (no children) may
// carry Text; elements with Children do not use Text (mixed content is not
// meaningful for any of the OOXML parts this module edits).
type Node struct {
	NS       string
	Local    string
	Attrs    []Attr
	Children []*Node
	Text     string
}

// ExpandedName returns the "{ns}local" form used throughout the Differ's
// path computation.
func (n *Node) ExpandedName() string {
	if n.NS == "" {
		return n.Local
	}
	return "{" + n.NS + "}" + n.Local
}

// Attr looks up an attribute by expanded name, returning ("", false) if absent.
func (n *Node) Attr(ns, local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.NS == ns && a.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets (or adds) an attribute value, preserving existing order when
// the attribute already exists.
func (n *Node) SetAttr(ns, local, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].NS == ns && n.Attrs[i].Local == local {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{NS: ns, Local: local, Value: value})
}

// RemoveAttr deletes an attribute if present.
func (n *Node) RemoveAttr(ns, local string) {
	out := n.Attrs[:0]
	for _, a := range n.Attrs {
		if a.NS == ns && a.Local == local {
			continue
		}
		out = append(out, a)
	}
	n.Attrs = out
}

// Child returns the first direct child with the given expanded name.
func (n *Node) Child(ns, local string) *Node {
	for _, c := range n.Children {
		if c.NS == ns && c.Local == local {
			return c
		}
	}
	return nil
}

// ChildByLocal returns the first direct child matching local name only,
// ignoring namespace (used where callers want to match by local name, e.g.
// scanning for "externalReferences" regardless of prefix binding quirks).
func (n *Node) ChildByLocal(local string) *Node {
	for _, c := range n.Children {
		if c.Local == local {
			return c
		}
	}
	return nil
}

// RemoveChild removes the first direct child equal (by pointer) to target.
func (n *Node) RemoveChild(target *Node) {
	out := n.Children[:0]
	for _, c := range n.Children {
		if c == target {
			continue
		}
		out = append(out, c)
	}
	n.Children = out
}

// Walk visits n and every descendant in document order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Parse decodes an XML document into a generic Node tree rooted at the
// document element. Returns an error for non-well-formed XML; callers that
// must tolerate malformed parts (pass them through untouched) should treat
// any error as "leave bytes unmodified".
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var stack []*Node
	var root *Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmltree: parse: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{NS: t.Name.Space, Local: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				node.Attrs = append(node.Attrs, Attr{NS: a.Name.Space, Local: a.Name.Local, Value: a.Value})
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("xmltree: no root element")
	}
	return root, nil
}

// knownPrefixes maps well-known OOXML/Office namespace URIs to their
// conventional prefixes, so re-serialized parts read the way Excel itself
// would write them rather than with synthetic ns1/ns2 prefixes.
var knownPrefixes = map[string]string{
	"http://schemas.openxmlformats.org/officeDocument/2006/relationships": "r",
	"http://www.w3.org/2001/XMLSchema-instance":                           "xsi",
	"http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes": "vt",
	"http://purl.org/dc/elements/1.1/":                                    "dc",
	"http://purl.org/dc/terms/":                                           "dcterms",
	"http://purl.org/dc/dcmitype/":                                        "dcmitype",
	"urn:schemas-microsoft-com:vml":                                       "v",
	"urn:schemas-microsoft-com:office:office":                             "o",
	"urn:schemas-microsoft-com:office:excel":                              "x",
	"http://schemas.openxmlformats.org/markup-compatibility/2006":         "mc",
	"http://schemas.microsoft.com/office/spreadsheetml/2017/richdata":     "xlrd",
}

// Serialize re-emits a Node tree as an XML document via the OTag/Attr/CTag
// writer, declaring xmlns for the root's namespace plus any secondary
// namespaces encountered, in deterministic (first-seen) order.
func Serialize(root *Node) ([]byte, error) {
	prefixes := map[string]string{root.NS: ""}
	var order []string
	next := 1

	root.Walk(func(n *Node) {
		assign := func(ns string) {
			if ns == "" {
				return
			}
			if _, ok := prefixes[ns]; ok {
				return
			}
			if p, ok := knownPrefixes[ns]; ok {
				prefixes[ns] = p
			} else {
				prefixes[ns] = fmt.Sprintf("ns%d", next)
				next++
			}
			order = append(order, ns)
		}
		assign(n.NS)
		for _, a := range n.Attrs {
			assign(a.NS)
		}
	})

	var buf bytes.Buffer
	w := srwxml.NewWriter(&buf, srwxml.WriterConfig{Indent: srwxml.Indent2Spaces})
	w.XmlStandaloneDecl()

	writeElement(w, root, prefixes, true)

	// Root-level xmlns declarations are appended after the element's own
	// attributes below (writeElement handles the root's own attrs first);
	// to keep this simple we declare them via writeElement's root flag.
	return buf.Bytes(), nil
}

func qualifiedName(ns, local string, prefixes map[string]string) string {
	if ns == "" {
		return local
	}
	if p := prefixes[ns]; p != "" {
		return p + ":" + local
	}
	return local
}

func writeElement(w *srwxml.Writer, n *Node, prefixes map[string]string, isRoot bool) {
	name := qualifiedName(n.NS, n.Local, prefixes)
	// Following the teacher's convention (writer.go): the document root is
	// opened with a bare tag name; every nested element uses the "+" prefix.
	if isRoot {
		w.OTag(name)
	} else {
		w.OTag("+" + name)
	}

	if _, isRoot := prefixes["__root_written__"]; !isRoot {
		// Declare every namespace this document uses on the root element.
		if n.NS != "" {
			w.Attr("xmlns", n.NS)
		}
		declared := make([]string, 0, len(prefixes))
		for ns, p := range prefixes {
			if ns == "" || ns == n.NS || p == "" {
				continue
			}
			declared = append(declared, ns)
		}
		sort.Slice(declared, func(i, j int) bool { return prefixes[declared[i]] < prefixes[declared[j]] })
		for _, ns := range declared {
			w.Attr("xmlns:"+prefixes[ns], ns)
		}
		prefixes["__root_written__"] = "1"
	}

	for _, a := range n.Attrs {
		w.Attr(qualifiedName(a.NS, a.Local, prefixes), a.Value)
	}

	if len(n.Children) == 0 {
		if n.Text != "" {
			w.Write(n.Text)
		}
		w.CTag()
		return
	}

	for _, c := range n.Children {
		writeElement(w, c, prefixes, false)
	}
	w.CTag()
}

// TrimmedText returns n.Text with leading/trailing whitespace removed, the
// comparison form the semantic XML diff uses for leaf text.
func (n *Node) TrimmedText() string {
	return strings.TrimSpace(n.Text)
}
