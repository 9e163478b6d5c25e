package blocks_test

import (
	"testing"

	"github.com/edforge/olx/core/block"

	_ "github.com/edforge/olx/blocks"
)

// TestBlockRegistrations verifies that importing the blocks package
// triggers every built-in type's init registration with a usable
// schema and handler.
func TestBlockRegistrations(t *testing.T) {
	expected := []string{
		"annotatable",
		"course",
		"html",
		"poll_question",
		"word_cloud",
	}
	for _, category := range expected {
		t.Run(category, func(t *testing.T) {
			typ, ok := block.Get(category)
			if !ok {
				t.Fatalf("category %q not registered", category)
			}
			if typ.Handler == nil {
				t.Error("registered type has nil handler")
			}
			if !typ.Schema.Has("xml_attributes") {
				t.Error("registration should inject the xml_attributes field")
			}
		})
	}
}

// TestContainerFlags verifies the structural split: course is the only
// container, html is the only raw side-file type.
func TestContainerFlags(t *testing.T) {
	for category, wantChildren := range map[string]bool{
		"course":        true,
		"html":          false,
		"poll_question": false,
	} {
		typ, ok := block.Get(category)
		if !ok {
			t.Fatalf("category %q not registered", category)
		}
		if typ.HasChildren != wantChildren {
			t.Errorf("%s HasChildren = %v, want %v", category, typ.HasChildren, wantChildren)
		}
	}
	htmlType, _ := block.Get("html")
	if htmlType.RawExtension != "html" {
		t.Errorf("html RawExtension = %q, want html", htmlType.RawExtension)
	}
}
