package poll_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/keys"
	"github.com/edforge/olx/core/olx"
	"github.com/edforge/olx/core/resfs"
	"github.com/edforge/olx/core/xmltree"

	_ "github.com/edforge/olx/blocks/poll"
)

var course = keys.CourseKey{Org: "edX", Course: "DemoX", Run: "2024"}

func quiet() olx.Options {
	o := olx.DefaultOptions()
	o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return o
}

func newRuntime(t *testing.T) *olx.HostRuntime {
	t.Helper()
	return olx.NewHostRuntime(olx.RuntimeConfig{Course: course, Resources: resfs.Mem()})
}

// TestImportInline checks that answers are split out of the markup and
// the remainder becomes the question.
func TestImportInline(t *testing.T) {
	im := olx.NewImporter(newRuntime(t), quiet())

	b, err := im.ImportXML([]byte(
		`<poll_question url_name="p1" display_name="Lunch Poll">What for lunch?<answer id="tacos">Tacos</answer><answer id="pizza">Pizza</answer></poll_question>`))
	if err != nil {
		t.Fatalf("ImportXML: %v", err)
	}

	if got, want := b.String("question"), "What for lunch?"; got != want {
		t.Errorf("question = %q, want %q", got, want)
	}
	answers := b.List("answers")
	if len(answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(answers))
	}
	first, ok := answers[0].(map[string]any)
	if !ok {
		t.Fatalf("answer entry is %T, want map", answers[0])
	}
	if first["id"] != "tacos" || first["text"] != "Tacos" {
		t.Errorf("first answer = %v", first)
	}
	if got, want := b.String("display_name"), "Lunch Poll"; got != want {
		t.Errorf("display_name = %q, want %q", got, want)
	}
}

// TestImportRequiresAnswer checks that a definition without answer
// elements is rejected as invalid.
func TestImportRequiresAnswer(t *testing.T) {
	im := olx.NewImporter(newRuntime(t), quiet())

	_, err := im.ImportXML([]byte(`<poll_question url_name="p1">Question only</poll_question>`))
	if err == nil {
		t.Fatal("expected an error for a poll without answers")
	}
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error should match ErrInvalidInput, got %v", err)
	}
}

// TestExportInline checks the rendered definition: question markup with
// answer children appended, all inline in the parent node.
func TestExportInline(t *testing.T) {
	rt := newRuntime(t)
	im := olx.NewImporter(rt, quiet())
	b, err := im.ImportXML([]byte(
		`<poll_question url_name="p1">Which <b>fruit</b>?<answer id="a1">Apples</answer></poll_question>`))
	if err != nil {
		t.Fatalf("ImportXML: %v", err)
	}

	node := xmltree.NewElement("placeholder")
	if err := olx.NewExporter(rt, quiet()).ExportNode(b, node); err != nil {
		t.Fatalf("ExportNode: %v", err)
	}

	if node.Tag != "poll_question" {
		t.Errorf("tag = %q, want poll_question", node.Tag)
	}
	if node.FindChild("b") == nil {
		t.Error("question markup should be parsed back, not escaped")
	}
	ans := node.FindChild("answer")
	if ans == nil {
		t.Fatal("exported node has no answer child")
	}
	if ans.Attr("id") != "a1" || ans.Text != "Apples" {
		t.Errorf("answer = %s", ans.XML())
	}
}

// TestRoundTrip re-imports an exported poll and compares content.
func TestRoundTrip(t *testing.T) {
	rt := newRuntime(t)
	im := olx.NewImporter(rt, quiet())
	b, err := im.ImportXML([]byte(
		`<poll_question url_name="p1" display_name="Poll">Q?<answer id="y">Yes</answer><answer id="n">No</answer></poll_question>`))
	if err != nil {
		t.Fatalf("ImportXML: %v", err)
	}

	node := xmltree.NewElement("placeholder")
	if err := olx.NewExporter(rt, quiet()).ExportNode(b, node); err != nil {
		t.Fatalf("ExportNode: %v", err)
	}
	b2, err := im.ImportNode(node, nil)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}

	if got, want := b2.String("question"), b.String("question"); got != want {
		t.Errorf("question = %q, want %q", got, want)
	}
	if got, want := len(b2.List("answers")), 2; got != want {
		t.Errorf("answers = %d, want %d", got, want)
	}
	second, _ := b2.List("answers")[1].(map[string]any)
	if second["id"] != "n" || second["text"] != "No" {
		t.Errorf("second answer = %v", second)
	}
}
