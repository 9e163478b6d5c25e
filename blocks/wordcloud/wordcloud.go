// Package wordcloud registers the word_cloud block type. Everything
// that matters lives in settings attributes; aggregate and per-student
// word lists are runtime state, not course content.
package wordcloud

import (
	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/field"
	"github.com/edforge/olx/core/xmltree"
)

func init() {
	block.MustRegister(&block.Type{
		Category: "word_cloud",
		Schema: field.MustSchema(
			field.Field{Name: "display_name", Scope: field.Settings, Kind: field.String, Default: "Word cloud"},
			field.Field{Name: "instructions", Scope: field.Settings, Kind: field.String, Default: ""},
			field.Field{Name: "num_inputs", Scope: field.Settings, Kind: field.Integer, Default: int64(5)},
			field.Field{Name: "num_top_words", Scope: field.Settings, Kind: field.Integer, Default: int64(250)},
			field.Field{Name: "display_student_percents", Scope: field.Settings, Kind: field.Boolean, Default: true},
			field.Field{Name: "submitted", Scope: field.UserState, Kind: field.Boolean, Default: false},
			field.Field{Name: "student_words", Scope: field.UserState, Kind: field.List, Default: []any{}},
			field.Field{Name: "all_words", Scope: field.UserStateSummary, Kind: field.Dict, Default: map[string]any{}},
			field.Field{Name: "top_words", Scope: field.UserStateSummary, Kind: field.Dict, Default: map[string]any{}},
			field.Field{Name: "data", Scope: field.Content, Kind: field.String, Default: ""},
		),
		ContentField: "data",
		InlineExport: true,
		Handler:      handler{},
	})
}

type handler struct{}

func (handler) ExtractContent(node *xmltree.Node) (map[string]any, []block.ChildRef, error) {
	return map[string]any{"data": node.InnerXML()}, nil, nil
}

func (handler) ContentNode(b *block.Block) (*xmltree.Node, error) {
	n := xmltree.NewElement("word_cloud")
	n.Text = b.String("data")
	return n, nil
}
