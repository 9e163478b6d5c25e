package olx

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/field"
	"github.com/edforge/olx/core/keys"
	"github.com/edforge/olx/core/resfs"
	"github.com/edforge/olx/core/xmltree"
)

var testCourse = keys.CourseKey{Org: "edX", Course: "DemoX", Run: "2024"}

// Test block types: "note" is a structured inline type with a text
// body, "unit" is a container exported to its own file, and "page" is a
// raw-content type whose body lives in an .html side file.

type noteHandler struct{}

func (noteHandler) ExtractContent(node *xmltree.Node) (map[string]any, []block.ChildRef, error) {
	return map[string]any{"data": strings.TrimSpace(node.InnerText())}, nil, nil
}

func (noteHandler) ContentNode(b *block.Block) (*xmltree.Node, error) {
	n := xmltree.NewElement("note")
	n.Text = b.String("data")
	return n, nil
}

type unitHandler struct{}

func (unitHandler) ExtractContent(node *xmltree.Node) (map[string]any, []block.ChildRef, error) {
	var children []block.ChildRef
	for _, c := range node.Children() {
		children = append(children, block.ChildRef{Category: c.Tag, URLName: c.Attr("url_name")})
	}
	return map[string]any{}, children, nil
}

func (unitHandler) ContentNode(b *block.Block) (*xmltree.Node, error) {
	n := xmltree.NewElement("unit")
	for _, ref := range b.Children() {
		c := xmltree.NewElement(ref.Category)
		c.SetAttr("url_name", ref.URLName)
		n.AppendChild(c)
	}
	return n, nil
}

type pageHandler struct{}

func (pageHandler) ExtractContent(node *xmltree.Node) (map[string]any, []block.ChildRef, error) {
	return map[string]any{"data": node.InnerXML()}, nil, nil
}

func (pageHandler) ContentNode(b *block.Block) (*xmltree.Node, error) {
	n := xmltree.NewElement("page")
	n.Text = b.String("data")
	return n, nil
}

func registerTestTypes(t *testing.T) {
	t.Helper()
	block.Clear()
	t.Cleanup(block.Clear)

	block.MustRegister(&block.Type{
		Category: "note",
		Schema: field.MustSchema(
			field.Field{Name: "display_name", Scope: field.Settings, Kind: field.String, Default: "Note"},
			field.Field{Name: "weight", Scope: field.Settings, Kind: field.Integer, Default: int64(1)},
			field.Field{Name: "published", Scope: field.Settings, Kind: field.Boolean, Default: false},
			field.Field{Name: "data", Scope: field.Content, Kind: field.String, Default: ""},
		),
		ContentField: "data",
		InlineExport: true,
		Handler:      noteHandler{},
	})
	block.MustRegister(&block.Type{
		Category: "unit",
		Schema: field.MustSchema(
			field.Field{Name: "display_name", Scope: field.Settings, Kind: field.String, Default: "Unit"},
			field.Field{Name: "discussion_topics", Scope: field.Settings, Kind: field.Dict, Default: map[string]any{}},
		),
		HasChildren: true,
		Handler:     unitHandler{},
	})
	block.MustRegister(&block.Type{
		Category: "page",
		Schema: field.MustSchema(
			field.Field{Name: "display_name", Scope: field.Settings, Kind: field.String, Default: "Page"},
			field.Field{Name: "data", Scope: field.Content, Kind: field.String, Default: ""},
		),
		ContentField: "data",
		RawExtension: "html",
		Handler:      pageHandler{},
	})
}

// newTestRuntime builds an in-memory runtime preloaded with the given
// course files.
func newTestRuntime(t *testing.T, files map[string]string) *HostRuntime {
	t.Helper()
	res := resfs.Mem()
	for p, data := range files {
		if err := resfs.WriteFile(res, p, []byte(data)); err != nil {
			t.Fatalf("writing %s: %v", p, err)
		}
	}
	return NewHostRuntime(RuntimeConfig{Course: testCourse, Resources: res})
}

func mustParse(t *testing.T, s string) *xmltree.Node {
	t.Helper()
	n, err := xmltree.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return n
}

// quietOptions returns DefaultOptions with diagnostics discarded so
// expected warnings do not clutter test output.
func quietOptions() Options {
	o := DefaultOptions()
	o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return o
}
