// Package poll registers the poll_question block type: a question with
// a fixed answer list, plus per-student vote state. Definitions always
// export inline.
package poll

import (
	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/field"
	"github.com/edforge/olx/core/xmltree"
)

func init() {
	block.MustRegister(&block.Type{
		Category: "poll_question",
		Schema: field.MustSchema(
			field.Field{Name: "display_name", Scope: field.Settings, Kind: field.String, Default: "Poll Question"},
			field.Field{Name: "question", Scope: field.Content, Kind: field.String, Default: ""},
			field.Field{Name: "answers", Scope: field.Content, Kind: field.List, Default: []any{}},
			field.Field{Name: "voted", Scope: field.UserState, Kind: field.Boolean, Default: false},
			field.Field{Name: "poll_answer", Scope: field.UserState, Kind: field.String, Default: ""},
			field.Field{Name: "poll_answers", Scope: field.UserStateSummary, Kind: field.Dict, Default: map[string]any{}},
		),
		InlineExport: true,
		Handler:      handler{},
	})
}

type handler struct{}

// ExtractContent pulls the <answer> children out as the answers list
// (id plus inner markup) and keeps whatever markup remains as the
// question. A definition without answers is invalid.
func (handler) ExtractContent(node *xmltree.Node) (map[string]any, []block.ChildRef, error) {
	found, err := node.Query("answer")
	if err != nil {
		return nil, nil, err
	}
	if len(found) == 0 {
		return nil, nil, errors.NewValidation("answers", "poll definition requires at least one answer element")
	}
	var answers []any
	for _, ans := range found {
		if id := ans.Attr("id"); id != "" {
			answers = append(answers, map[string]any{
				"id":   id,
				"text": ans.InnerXML(),
			})
		}
		node.RemoveChild(ans)
	}
	return map[string]any{
		"answers":  answers,
		"question": node.InnerXML(),
	}, nil, nil
}

// ContentNode renders the question as markup with one <answer> child
// per entry. The question was captured as XML so it parses back; answer
// text is plain and gets escaped by the serializer.
func (handler) ContentNode(b *block.Block) (*xmltree.Node, error) {
	n, err := xmltree.Parse([]byte("<poll_question>" + b.String("question") + "</poll_question>"))
	if err != nil {
		return nil, errors.Wrap(err, "rendering poll question markup")
	}
	for _, entry := range b.List("answers") {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		ans := xmltree.NewElement("answer")
		if id, ok := m["id"].(string); ok {
			ans.SetAttr("id", id)
		}
		if text, ok := m["text"].(string); ok {
			ans.Text = text
		}
		n.AppendChild(ans)
	}
	return n, nil
}
