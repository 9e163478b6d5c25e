// Package annotatable registers the annotatable block type. The whole
// definition element is the content: it is stored as one XML string and
// parsed back on export, so nothing inside it needs to be understood.
package annotatable

import (
	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/field"
	"github.com/edforge/olx/core/xmltree"
)

func init() {
	block.MustRegister(&block.Type{
		Category: "annotatable",
		Schema: field.MustSchema(
			field.Field{Name: "display_name", Scope: field.Settings, Kind: field.String, Default: "Annotation"},
			field.Field{Name: "data", Scope: field.Content, Kind: field.String, Default: "<annotatable></annotatable>"},
		),
		ContentField: "data",
		InlineExport: true,
		Handler:      handler{},
	})
}

type handler struct{}

// ExtractContent serializes the whole cleaned element, tag and all.
func (handler) ExtractContent(node *xmltree.Node) (map[string]any, []block.ChildRef, error) {
	return map[string]any{"data": node.XML()}, nil, nil
}

// ContentNode parses the stored markup back into an element.
func (handler) ContentNode(b *block.Block) (*xmltree.Node, error) {
	n, err := xmltree.Parse([]byte(b.String("data")))
	if err != nil {
		return nil, errors.Wrap(err, "parsing stored annotatable markup")
	}
	return n, nil
}
