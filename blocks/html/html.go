// Package html registers the html block type. The body is raw markup
// kept in a side .html file; the .xml definition is only a shell whose
// filename attribute names the body.
package html

import (
	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/field"
	"github.com/edforge/olx/core/xmltree"
)

func init() {
	block.MustRegister(&block.Type{
		Category: "html",
		Schema: field.MustSchema(
			field.Field{Name: "display_name", Scope: field.Settings, Kind: field.String, Default: "Text"},
			field.Field{Name: "data", Scope: field.Content, Kind: field.String, Default: ""},
			field.Field{Name: "source_code", Scope: field.Settings, Kind: field.String, Default: ""},
			field.Field{Name: "use_latex_compiler", Scope: field.Settings, Kind: field.Boolean, Default: false},
			field.Field{Name: "editor", Scope: field.Settings, Kind: field.String, Default: "visual"},
		),
		ContentField: "data",
		RawExtension: "html",
		Handler:      handler{},
	})
}

type handler struct{}

// ExtractContent keeps the inner markup verbatim. Inline html
// definitions are the old layout; the body usually arrives through the
// side file instead.
func (handler) ExtractContent(node *xmltree.Node) (map[string]any, []block.ChildRef, error) {
	return map[string]any{"data": node.InnerXML()}, nil, nil
}

// ContentNode is the fallback for hosts that disable side files; the
// markup rides escaped in the element text.
func (handler) ContentNode(b *block.Block) (*xmltree.Node, error) {
	n := xmltree.NewElement("html")
	n.Text = b.String("data")
	return n, nil
}
