// Package course registers the course block type, the root container of
// an export. Its definition file is named after the run rather than the
// url_name, and its pointer form carries org and course next to
// url_name.
package course

import (
	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/field"
	"github.com/edforge/olx/core/xmltree"
)

func init() {
	block.MustRegister(&block.Type{
		Category: "course",
		Schema: field.MustSchema(
			field.Field{Name: "display_name", Scope: field.Settings, Kind: field.String, Default: "Course"},
			field.Field{Name: "advanced_modules", Scope: field.Settings, Kind: field.List, Default: []any{}},
			field.Field{Name: "tabs", Scope: field.Settings, Kind: field.List, Default: []any{}},
			field.Field{Name: "discussion_topics", Scope: field.Settings, Kind: field.Dict, Default: map[string]any{}},
			field.Field{Name: "discussion_blackouts", Scope: field.Settings, Kind: field.List, Default: []any{}},
			field.Field{Name: "data_dir", Scope: field.Settings, Kind: field.String, Default: ""},
		),
		HasChildren: true,
		Handler:     handler{},
	})
}

type handler struct{}

// ExtractContent reads the child list: each child element's tag is the
// category and its url_name attribute the reference.
func (handler) ExtractContent(node *xmltree.Node) (map[string]any, []block.ChildRef, error) {
	var children []block.ChildRef
	for _, c := range node.Children() {
		children = append(children, block.ChildRef{
			Category: c.Tag,
			URLName:  c.Attr("url_name"),
		})
	}
	return map[string]any{}, children, nil
}

// ContentNode renders one pointer stub per child.
func (handler) ContentNode(b *block.Block) (*xmltree.Node, error) {
	n := xmltree.NewElement("course")
	for _, ref := range b.Children() {
		c := xmltree.NewElement(ref.Category)
		if ref.URLName != "" {
			c.SetAttr("url_name", ref.URLName)
		}
		n.AppendChild(c)
	}
	return n, nil
}
