// Package xmltree provides a mutable XML element tree for course content.
// Each element records the text that precedes its first child (Text) and the
// text that follows its own closing tag inside the parent (Tail), so mixed
// markup survives a parse/serialize round trip.
//
// Parsing is delegated to the xmlquery library; querying runs real XPath
// over the mutable tree through an xpath.NodeNavigator binding (navigator.go).
package xmltree

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/edforge/olx/core/encoding"
)

// Attr is a single XML attribute. Attribute order is preserved.
type Attr struct {
	Name  string
	Value string
}

// Node is a mutable XML element.
type Node struct {
	Tag  string
	Text string // text before the first child element
	Tail string // text after this element, inside the parent

	attrs    []Attr
	children []*Node
	parent   *Node
}

// NewElement creates an element with the given tag and no content.
func NewElement(tag string) *Node {
	return &Node{Tag: tag}
}

// Parse parses XML data and returns the root element.
func Parse(data []byte) (*Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return convert(child), nil
		}
	}
	return nil, fmt.Errorf("parsing XML: no root element")
}

// convert maps an xmlquery element to a Node, folding interleaved text
// nodes into Text/Tail.
func convert(src *xmlquery.Node) *Node {
	n := NewElement(qualifiedName(src.Prefix, src.Data))
	for _, a := range src.Attr {
		n.SetAttr(qualifiedName(a.Name.Space, a.Name.Local), a.Value)
	}
	var lastElem *Node
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.ElementNode:
			child := convert(c)
			n.AppendChild(child)
			lastElem = child
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if lastElem == nil {
				n.Text += c.Data
			} else {
				lastElem.Tail += c.Data
			}
		}
	}
	return n
}

func qualifiedName(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

// Parent returns the parent element, or nil for a detached/root node.
func (n *Node) Parent() *Node {
	if n == nil {
		return nil
	}
	return n.parent
}

// Attr returns the value of the named attribute, or "" when absent.
func (n *Node) Attr(name string) string {
	v, _ := n.LookupAttr(name)
	return v
}

// LookupAttr returns the value of the named attribute and whether it is set.
func (n *Node) LookupAttr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, replacing an existing value in place or
// appending a new attribute at the end.
func (n *Node) SetAttr(name, value string) {
	for i, a := range n.attrs {
		if a.Name == name {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Name: name, Value: value})
}

// DeleteAttr removes the named attribute. It reports whether the attribute
// was present.
func (n *Node) DeleteAttr(name string) bool {
	for i, a := range n.attrs {
		if a.Name == name {
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			return true
		}
	}
	return false
}

// Attrs returns a copy of the attribute list in document order.
func (n *Node) Attrs() []Attr {
	if n == nil || len(n.attrs) == 0 {
		return nil
	}
	out := make([]Attr, len(n.attrs))
	copy(out, n.attrs)
	return out
}

// AttrNames returns the attribute names in document order.
func (n *Node) AttrNames() []string {
	if n == nil || len(n.attrs) == 0 {
		return nil
	}
	names := make([]string, len(n.attrs))
	for i, a := range n.attrs {
		names[i] = a.Name
	}
	return names
}

// Children returns a copy of the child element list.
func (n *Node) Children() []*Node {
	if n == nil || len(n.children) == 0 {
		return nil
	}
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of child elements.
func (n *Node) ChildCount() int {
	if n == nil {
		return 0
	}
	return len(n.children)
}

// FindChild returns the first direct child element with the given tag,
// or nil when there is none.
func (n *Node) FindChild(tag string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// AppendChild appends a child element, reparenting it onto n.
func (n *Node) AppendChild(c *Node) {
	c.parent = n
	n.children = append(n.children, c)
}

// RemoveChild removes a direct child element (the trailing text attached to
// it goes with it). It reports whether the child was found.
func (n *Node) RemoveChild(c *Node) bool {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Copy returns a deep copy of the element, detached from any parent.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Tag: n.Tag, Text: n.Text, Tail: n.Tail}
	out.attrs = append(out.attrs, n.attrs...)
	for _, c := range n.children {
		out.AppendChild(c.Copy())
	}
	return out
}

// Clear removes all content from the element: text, tail, attributes and
// children. The tag is kept.
func (n *Node) Clear() {
	n.Text = ""
	n.Tail = ""
	n.attrs = nil
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

// CopyFrom clears the element and copies tag, text, tail, attributes and
// children (deeply) from src. Used to inline one element's content onto
// another node that is already placed in a tree.
func (n *Node) CopyFrom(src *Node) {
	n.Clear()
	n.Tag = src.Tag
	n.Text = src.Text
	n.Tail = src.Tail
	n.attrs = append(n.attrs, src.attrs...)
	for _, c := range src.children {
		n.AppendChild(c.Copy())
	}
}

// InnerText returns the concatenated text content of the element and all
// of its descendants.
func (n *Node) InnerText() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	innerText(&sb, n)
	return sb.String()
}

func innerText(sb *strings.Builder, n *Node) {
	sb.WriteString(n.Text)
	for _, c := range n.children {
		innerText(sb, c)
		sb.WriteString(c.Tail)
	}
}

// InnerXML returns the element's inner markup: the leading text verbatim,
// followed by each child serialized together with its trailing text.
func (n *Node) InnerXML() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(n.Text)
	for _, c := range n.children {
		writeNode(&sb, c, true)
	}
	return sb.String()
}

// XML serializes the element (without its tail) as a compact single string.
func (n *Node) XML() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	writeNode(&sb, n, false)
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node, withTail bool) {
	sb.WriteString("<")
	sb.WriteString(n.Tag)
	for _, a := range n.attrs {
		sb.WriteString(" ")
		sb.WriteString(a.Name)
		sb.WriteString("=\"")
		sb.WriteString(encoding.EscapeXMLAttr(a.Value))
		sb.WriteString("\"")
	}
	if n.Text == "" && len(n.children) == 0 {
		sb.WriteString("/>")
	} else {
		sb.WriteString(">")
		sb.WriteString(encoding.EscapeXMLText(n.Text))
		for _, c := range n.children {
			writeNode(sb, c, true)
		}
		sb.WriteString("</")
		sb.WriteString(n.Tag)
		sb.WriteString(">")
	}
	if withTail {
		sb.WriteString(encoding.EscapeXMLText(n.Tail))
	}
}

// PrettyOptions controls pretty-printed serialization.
type PrettyOptions struct {
	Indent string // indentation string, defaults to two spaces
}

// Pretty serializes the element with one child element per line. Text
// content is kept inline on the owning element's line.
func (n *Node) Pretty(opts PrettyOptions) []byte {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	var buf bytes.Buffer
	prettyNode(&buf, n, 0, opts.Indent)
	return buf.Bytes()
}

func prettyNode(buf *bytes.Buffer, n *Node, depth int, indent string) {
	writeIndent(buf, depth, indent)
	buf.WriteString("<")
	buf.WriteString(n.Tag)
	for _, a := range n.attrs {
		buf.WriteString(" ")
		buf.WriteString(a.Name)
		buf.WriteString("=\"")
		buf.WriteString(encoding.EscapeXMLAttr(a.Value))
		buf.WriteString("\"")
	}
	text := n.Text
	if len(n.children) == 0 {
		if strings.TrimSpace(text) == "" {
			buf.WriteString("/>\n")
			return
		}
		buf.WriteString(">")
		buf.WriteString(encoding.EscapeXMLText(text))
		buf.WriteString("</")
		buf.WriteString(n.Tag)
		buf.WriteString(">\n")
		return
	}
	// Mixed content keeps the compact form so significant whitespace is
	// not disturbed by indentation.
	if strings.TrimSpace(text) != "" || hasMixedTail(n) {
		var sb strings.Builder
		sb.WriteString(encoding.EscapeXMLText(text))
		for _, c := range n.children {
			writeNode(&sb, c, true)
		}
		buf.WriteString(">")
		buf.WriteString(sb.String())
		buf.WriteString("</")
		buf.WriteString(n.Tag)
		buf.WriteString(">\n")
		return
	}
	buf.WriteString(">\n")
	for _, c := range n.children {
		prettyNode(buf, c, depth+1, indent)
	}
	writeIndent(buf, depth, indent)
	buf.WriteString("</")
	buf.WriteString(n.Tag)
	buf.WriteString(">\n")
}

func hasMixedTail(n *Node) bool {
	for _, c := range n.children {
		if strings.TrimSpace(c.Tail) != "" {
			return true
		}
	}
	return false
}

func writeIndent(buf *bytes.Buffer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		buf.WriteString(indent)
	}
}
