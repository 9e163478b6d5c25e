package xmltree

import (
	"strings"
	"testing"
)

// TestParse verifies basic parsing of tags, attributes, text and children.
func TestParse(t *testing.T) {
	data := []byte(`<poll_question display_name="My Poll">Which one?<answer id="a">Yes</answer><answer id="b">No</answer></poll_question>`)
	root, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if root.Tag != "poll_question" {
		t.Errorf("Tag = %q, want %q", root.Tag, "poll_question")
	}
	if got := root.Attr("display_name"); got != "My Poll" {
		t.Errorf("Attr(display_name) = %q, want %q", got, "My Poll")
	}
	if root.Text != "Which one?" {
		t.Errorf("Text = %q, want %q", root.Text, "Which one?")
	}
	children := root.Children()
	if len(children) != 2 {
		t.Fatalf("len(Children()) = %d, want 2", len(children))
	}
	if children[0].Attr("id") != "a" || children[1].Attr("id") != "b" {
		t.Errorf("child ids = %q, %q, want a, b", children[0].Attr("id"), children[1].Attr("id"))
	}
	if children[0].Text != "Yes" {
		t.Errorf("first answer Text = %q, want %q", children[0].Text, "Yes")
	}
}

// TestParseMixedContent verifies that interleaved text is folded into
// Text and Tail.
func TestParseMixedContent(t *testing.T) {
	root, err := Parse([]byte(`<p>before <b>bold</b> after <i>ital</i> end</p>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if root.Text != "before " {
		t.Errorf("Text = %q, want %q", root.Text, "before ")
	}
	children := root.Children()
	if len(children) != 2 {
		t.Fatalf("len(Children()) = %d, want 2", len(children))
	}
	if children[0].Tail != " after " {
		t.Errorf("b Tail = %q, want %q", children[0].Tail, " after ")
	}
	if children[1].Tail != " end" {
		t.Errorf("i Tail = %q, want %q", children[1].Tail, " end")
	}
}

// TestParseErrors verifies that malformed input is rejected.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unclosed tag", "<html><b>text</html>"},
		{"empty input", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Errorf("Parse(%q) error = nil, want error", tt.data)
			}
		})
	}
}

// TestAttrOperations verifies lookup, set, delete and order preservation.
func TestAttrOperations(t *testing.T) {
	n := NewElement("html")
	n.SetAttr("url_name", "intro")
	n.SetAttr("display_name", "Intro")
	n.SetAttr("foo", "bar")

	if v, ok := n.LookupAttr("display_name"); !ok || v != "Intro" {
		t.Errorf("LookupAttr(display_name) = %q, %v, want Intro, true", v, ok)
	}
	if _, ok := n.LookupAttr("missing"); ok {
		t.Error("LookupAttr(missing) ok = true, want false")
	}

	// Replacing keeps position.
	n.SetAttr("display_name", "Changed")
	names := n.AttrNames()
	want := []string{"url_name", "display_name", "foo"}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("AttrNames()[%d] = %q, want %q", i, names[i], name)
		}
	}

	if !n.DeleteAttr("foo") {
		t.Error("DeleteAttr(foo) = false, want true")
	}
	if n.DeleteAttr("foo") {
		t.Error("DeleteAttr(foo) second call = true, want false")
	}
	if len(n.Attrs()) != 2 {
		t.Errorf("len(Attrs()) = %d, want 2", len(n.Attrs()))
	}
}

// TestChildOperations verifies append, remove, find and parent tracking.
func TestChildOperations(t *testing.T) {
	parent := NewElement("course")
	a := NewElement("chapter")
	b := NewElement("meta")
	parent.AppendChild(a)
	parent.AppendChild(b)

	if a.Parent() != parent {
		t.Error("child Parent() != parent after AppendChild")
	}
	if got := parent.FindChild("meta"); got != b {
		t.Error("FindChild(meta) did not return the meta child")
	}
	if got := parent.FindChild("nope"); got != nil {
		t.Errorf("FindChild(nope) = %v, want nil", got)
	}
	if !parent.RemoveChild(b) {
		t.Error("RemoveChild(b) = false, want true")
	}
	if parent.RemoveChild(b) {
		t.Error("RemoveChild(b) second call = true, want false")
	}
	if b.Parent() != nil {
		t.Error("removed child still has a parent")
	}
	if parent.ChildCount() != 1 {
		t.Errorf("ChildCount() = %d, want 1", parent.ChildCount())
	}
}

// TestCopy verifies that Copy is deep and detached.
func TestCopy(t *testing.T) {
	root, err := Parse([]byte(`<html display_name="X"><b>hi</b></html>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	cp := root.Copy()
	if cp.Parent() != nil {
		t.Error("Copy() has a parent, want detached")
	}
	cp.SetAttr("display_name", "Y")
	cp.Children()[0].Text = "bye"
	if root.Attr("display_name") != "X" {
		t.Error("mutating copy attribute changed the original")
	}
	if root.Children()[0].Text != "hi" {
		t.Error("mutating copy child changed the original")
	}
}

// TestClearAndCopyFrom verifies the inline-content operations.
func TestClearAndCopyFrom(t *testing.T) {
	node := NewElement("placeholder")
	node.SetAttr("old", "1")
	node.AppendChild(NewElement("junk"))

	src, err := Parse([]byte(`<poll_question display_name="P">Q<answer id="a">Yes</answer></poll_question>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	node.CopyFrom(src)

	if node.Tag != "poll_question" {
		t.Errorf("Tag = %q, want %q", node.Tag, "poll_question")
	}
	if _, ok := node.LookupAttr("old"); ok {
		t.Error("old attribute survived CopyFrom")
	}
	if node.Attr("display_name") != "P" {
		t.Errorf("display_name = %q, want %q", node.Attr("display_name"), "P")
	}
	if node.ChildCount() != 1 || node.Children()[0].Tag != "answer" {
		t.Error("children were not copied")
	}
	// Children are copies, not shared.
	node.Children()[0].Text = "changed"
	if src.Children()[0].Text != "Yes" {
		t.Error("CopyFrom shares child nodes with the source")
	}

	node.Clear()
	if node.Tag != "poll_question" {
		t.Error("Clear() reset the tag")
	}
	if node.ChildCount() != 0 || len(node.Attrs()) != 0 || node.Text != "" {
		t.Error("Clear() left content behind")
	}
}

// TestInnerXML verifies that leading text stays verbatim while children are
// serialized with their tails.
func TestInnerXML(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"text only", "<html>a &lt; b</html>", "a < b"},
		{"child with tail", "<html><b>hi</b> &amp; bye</html>", "<b>hi</b> &amp; bye"},
		{"leading text and child", "<html>start <i>x</i></html>", "start <i>x</i>"},
		{"empty", "<html/>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Parse([]byte(tt.data))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := root.InnerXML(); got != tt.want {
				t.Errorf("InnerXML() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestInnerText verifies recursive text extraction.
func TestInnerText(t *testing.T) {
	root, err := Parse([]byte(`<p>a<b>b<i>c</i>d</b>e</p>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := root.InnerText(); got != "abcde" {
		t.Errorf("InnerText() = %q, want %q", got, "abcde")
	}
}

// TestXMLSerialization verifies compact serialization and escaping.
func TestXMLSerialization(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Node
		want  string
	}{
		{
			name: "self closing",
			build: func() *Node {
				n := NewElement("html")
				n.SetAttr("url_name", "intro")
				return n
			},
			want: `<html url_name="intro"/>`,
		},
		{
			name: "text content escaped",
			build: func() *Node {
				n := NewElement("answer")
				n.Text = "a < b & c"
				return n
			},
			want: `<answer>a &lt; b &amp; c</answer>`,
		},
		{
			name: "attribute escaped",
			build: func() *Node {
				n := NewElement("html")
				n.SetAttr("display_name", `say "hi" & smile`)
				return n
			},
			want: `<html display_name="say &quot;hi&quot; &amp; smile"/>`,
		},
		{
			name: "nested with tail",
			build: func() *Node {
				n := NewElement("p")
				n.Text = "x"
				b := NewElement("b")
				b.Text = "y"
				b.Tail = "z"
				n.AppendChild(b)
				return n
			},
			want: `<p>x<b>y</b>z</p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build().XML(); got != tt.want {
				t.Errorf("XML() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestRoundTrip verifies that parse then serialize preserves structure.
func TestRoundTrip(t *testing.T) {
	data := `<poll_question display_name="P">Q?<answer id="a">Yes <b>sir</b></answer><answer id="b">No</answer></poll_question>`
	root, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	out := root.XML()
	reparsed, err := Parse([]byte(out))
	if err != nil {
		t.Fatalf("Parse(serialized) error = %v", err)
	}
	if reparsed.XML() != out {
		t.Errorf("second serialization differs:\n first = %s\nsecond = %s", out, reparsed.XML())
	}
}

// TestPretty verifies indentation of element-only content and inline text.
func TestPretty(t *testing.T) {
	root, err := Parse([]byte(`<course><chapter url_name="week1"/><chapter url_name="week2"/></course>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := string(root.Pretty(PrettyOptions{}))
	want := "<course>\n  <chapter url_name=\"week1\"/>\n  <chapter url_name=\"week2\"/>\n</course>\n"
	if got != want {
		t.Errorf("Pretty() = %q, want %q", got, want)
	}

	leaf, err := Parse([]byte(`<answer id="a">Yes</answer>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := string(leaf.Pretty(PrettyOptions{})); got != "<answer id=\"a\">Yes</answer>\n" {
		t.Errorf("Pretty() leaf = %q", got)
	}
}

// TestQuery verifies XPath evaluation over the mutable tree.
func TestQuery(t *testing.T) {
	root, err := Parse([]byte(`<poll_question>Q<answer id="a">Yes</answer><answer id="b">No</answer><meta>{}</meta></poll_question>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	t.Run("child elements", func(t *testing.T) {
		nodes, err := root.Query("answer")
		if err != nil {
			t.Fatalf("Query(answer) error = %v", err)
		}
		if len(nodes) != 2 {
			t.Fatalf("len(Query(answer)) = %d, want 2", len(nodes))
		}
		if nodes[0].Attr("id") != "a" || nodes[1].Attr("id") != "b" {
			t.Error("Query(answer) returned elements out of document order")
		}
	})

	t.Run("predicate", func(t *testing.T) {
		nodes, err := root.Query("answer[@id='b']")
		if err != nil {
			t.Fatalf("Query error = %v", err)
		}
		if len(nodes) != 1 || nodes[0].Text != "No" {
			t.Errorf("Query(answer[@id='b']) = %v, want one node with text No", nodes)
		}
	})

	t.Run("descendant axis", func(t *testing.T) {
		deep, err := Parse([]byte(`<course><chapter><poll_question><answer id="x">X</answer></poll_question></chapter></course>`))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		nodes, err := deep.Query("//answer")
		if err != nil {
			t.Fatalf("Query(//answer) error = %v", err)
		}
		if len(nodes) != 1 || nodes[0].Attr("id") != "x" {
			t.Errorf("Query(//answer) = %v, want the nested answer", nodes)
		}
	})

	t.Run("no match", func(t *testing.T) {
		node, err := root.QueryFirst("missing")
		if err != nil {
			t.Fatalf("QueryFirst error = %v", err)
		}
		if node != nil {
			t.Errorf("QueryFirst(missing) = %v, want nil", node)
		}
	})

	t.Run("invalid expression", func(t *testing.T) {
		if _, err := root.Query("///"); err == nil {
			t.Error("Query(///) error = nil, want error")
		} else if !strings.Contains(err.Error(), "invalid xpath") {
			t.Errorf("Query(///) error = %v, want invalid xpath", err)
		}
	})
}

// TestQueryAfterMutation verifies that XPath sees tree mutations.
func TestQueryAfterMutation(t *testing.T) {
	root, err := Parse([]byte(`<poll_question><answer id="a">Yes</answer></poll_question>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	extra := NewElement("answer")
	extra.SetAttr("id", "b")
	extra.Text = "No"
	root.AppendChild(extra)

	nodes, err := root.Query("answer")
	if err != nil {
		t.Fatalf("Query error = %v", err)
	}
	if len(nodes) != 2 {
		t.Errorf("len(Query(answer)) after append = %d, want 2", len(nodes))
	}

	root.RemoveChild(nodes[0])
	nodes, err = root.Query("answer")
	if err != nil {
		t.Fatalf("Query error = %v", err)
	}
	if len(nodes) != 1 || nodes[0].Attr("id") != "b" {
		t.Errorf("Query(answer) after remove = %v, want only id=b", nodes)
	}
}

// TestNilGuards verifies that read accessors tolerate nil receivers.
func TestNilGuards(t *testing.T) {
	var n *Node
	if n.Attr("x") != "" {
		t.Error("nil Attr() != \"\"")
	}
	if n.Children() != nil {
		t.Error("nil Children() != nil")
	}
	if n.InnerXML() != "" {
		t.Error("nil InnerXML() != \"\"")
	}
	if n.InnerText() != "" {
		t.Error("nil InnerText() != \"\"")
	}
	if n.XML() != "" {
		t.Error("nil XML() != \"\"")
	}
	if n.FindChild("x") != nil {
		t.Error("nil FindChild() != nil")
	}
	if n.Parent() != nil {
		t.Error("nil Parent() != nil")
	}
}
