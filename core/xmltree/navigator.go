package xmltree

import (
	"fmt"
	"strings"

	"github.com/antchfx/xpath"
)

// navigator implements xpath.NodeNavigator over the mutable tree, so XPath
// expressions run directly against Nodes without re-serializing. The node
// the query starts from acts as the subtree root: ancestors above it are
// not visible to the expression.
type navigator struct {
	root *Node

	elem   *Node // current element, or the owner element of the current text
	anchor *Node // for text positions: nil for leading text, else the element whose tail it is
	onText bool
	onRoot bool
	attr   int // attribute index on elem, -1 when not on an attribute
}

func newNavigator(n *Node) *navigator {
	return &navigator{root: n, elem: n, attr: -1}
}

// Query runs an XPath expression against the subtree rooted at n and
// returns the matching elements in document order. Non-element results
// (attributes, text) are skipped.
func (n *Node) Query(expr string) ([]*Node, error) {
	if n == nil {
		return nil, fmt.Errorf("xpath query on nil node")
	}
	exp, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	iter := exp.Select(newNavigator(n))
	var out []*Node
	for iter.MoveNext() {
		nav, ok := iter.Current().(*navigator)
		if !ok {
			continue
		}
		if nav.NodeType() == xpath.ElementNode {
			out = append(out, nav.elem)
		}
	}
	return out, nil
}

// QueryFirst runs an XPath expression and returns the first matching
// element, or nil when nothing matches.
func (n *Node) QueryFirst(expr string) (*Node, error) {
	nodes, err := n.Query(expr)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

func (nav *navigator) NodeType() xpath.NodeType {
	switch {
	case nav.onRoot:
		return xpath.RootNode
	case nav.attr != -1:
		return xpath.AttributeNode
	case nav.onText:
		return xpath.TextNode
	default:
		return xpath.ElementNode
	}
}

func (nav *navigator) LocalName() string {
	switch {
	case nav.onRoot, nav.onText:
		return ""
	case nav.attr != -1:
		return localPart(nav.elem.attrs[nav.attr].Name)
	default:
		return localPart(nav.elem.Tag)
	}
}

func (nav *navigator) Prefix() string {
	switch {
	case nav.onRoot, nav.onText:
		return ""
	case nav.attr != -1:
		return prefixPart(nav.elem.attrs[nav.attr].Name)
	default:
		return prefixPart(nav.elem.Tag)
	}
}

func (nav *navigator) Value() string {
	switch {
	case nav.onRoot:
		return nav.root.InnerText()
	case nav.attr != -1:
		return nav.elem.attrs[nav.attr].Value
	case nav.onText:
		if nav.anchor == nil {
			return nav.elem.Text
		}
		return nav.anchor.Tail
	default:
		return nav.elem.InnerText()
	}
}

func (nav *navigator) Copy() xpath.NodeNavigator {
	clone := *nav
	return &clone
}

func (nav *navigator) MoveToRoot() {
	nav.elem = nav.root
	nav.anchor = nil
	nav.onText = false
	nav.onRoot = true
	nav.attr = -1
}

func (nav *navigator) MoveToParent() bool {
	switch {
	case nav.attr != -1:
		nav.attr = -1
		return true
	case nav.onText:
		nav.onText = false
		nav.anchor = nil
		return true
	case nav.onRoot:
		return false
	case nav.elem == nav.root:
		nav.onRoot = true
		return true
	case nav.elem.parent != nil:
		nav.elem = nav.elem.parent
		return true
	default:
		return false
	}
}

func (nav *navigator) MoveToNextAttribute() bool {
	if nav.onRoot || nav.onText {
		return false
	}
	if nav.attr >= len(nav.elem.attrs)-1 {
		return false
	}
	nav.attr++
	return true
}

func (nav *navigator) MoveToChild() bool {
	if nav.attr != -1 || nav.onText {
		return false
	}
	if nav.onRoot {
		nav.onRoot = false
		nav.elem = nav.root
		return true
	}
	if nav.elem.Text != "" {
		nav.onText = true
		nav.anchor = nil
		return true
	}
	if len(nav.elem.children) > 0 {
		nav.elem = nav.elem.children[0]
		return true
	}
	return false
}

func (nav *navigator) MoveToFirst() bool {
	if nav.attr != -1 || nav.onRoot {
		return false
	}
	if nav.onText {
		if nav.anchor == nil {
			return false // leading text is already first
		}
		if nav.elem.Text != "" {
			nav.anchor = nil
			return true
		}
		nav.onText = false
		nav.anchor = nil
		nav.elem = nav.elem.children[0]
		return true
	}
	if nav.elem == nav.root || nav.elem.parent == nil {
		return false
	}
	parent := nav.elem.parent
	if parent.Text != "" {
		nav.elem = parent
		nav.onText = true
		nav.anchor = nil
		return true
	}
	if parent.children[0] == nav.elem {
		return false
	}
	nav.elem = parent.children[0]
	return true
}

func (nav *navigator) MoveToNext() bool {
	if nav.attr != -1 || nav.onRoot {
		return false
	}
	if nav.onText {
		parent := nav.elem
		if nav.anchor == nil {
			if len(parent.children) == 0 {
				return false
			}
			nav.onText = false
			nav.elem = parent.children[0]
			return true
		}
		idx := childIndex(parent, nav.anchor)
		if idx < 0 || idx+1 >= len(parent.children) {
			return false
		}
		nav.onText = false
		nav.elem = parent.children[idx+1]
		nav.anchor = nil
		return true
	}
	if nav.elem == nav.root || nav.elem.parent == nil {
		return false
	}
	cur := nav.elem
	parent := cur.parent
	if cur.Tail != "" {
		nav.elem = parent
		nav.onText = true
		nav.anchor = cur
		return true
	}
	idx := childIndex(parent, cur)
	if idx < 0 || idx+1 >= len(parent.children) {
		return false
	}
	nav.elem = parent.children[idx+1]
	return true
}

func (nav *navigator) MoveToPrevious() bool {
	if nav.attr != -1 || nav.onRoot {
		return false
	}
	if nav.onText {
		if nav.anchor == nil {
			return false
		}
		nav.onText = false
		nav.elem = nav.anchor
		nav.anchor = nil
		return true
	}
	if nav.elem == nav.root || nav.elem.parent == nil {
		return false
	}
	cur := nav.elem
	parent := cur.parent
	idx := childIndex(parent, cur)
	if idx < 0 {
		return false
	}
	if idx == 0 {
		if parent.Text != "" {
			nav.elem = parent
			nav.onText = true
			nav.anchor = nil
			return true
		}
		return false
	}
	prev := parent.children[idx-1]
	if prev.Tail != "" {
		nav.elem = parent
		nav.onText = true
		nav.anchor = prev
		return true
	}
	nav.elem = prev
	return true
}

func (nav *navigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*navigator)
	if !ok || o.root != nav.root {
		return false
	}
	*nav = *o
	return true
}

func childIndex(parent, child *Node) int {
	for i, c := range parent.children {
		if c == child {
			return i
		}
	}
	return -1
}

func localPart(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func prefixPart(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		return name[:i]
	}
	return ""
}
