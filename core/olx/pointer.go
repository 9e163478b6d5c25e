package olx

import (
	"strings"

	"github.com/edforge/olx/core/xmltree"
)

// IsPointerTag reports whether node is a pointer to a separate
// definition file rather than an inline definition. A pointer has no
// children, no text content, and exactly the attribute url_name; a
// course pointer additionally carries org and course.
func IsPointerTag(node *xmltree.Node) bool {
	if node == nil || node.ChildCount() > 0 {
		return false
	}
	if strings.TrimSpace(node.Text) != "" {
		return false
	}
	names := node.AttrNames()
	want := []string{"url_name"}
	if node.Tag == "course" {
		want = []string{"course", "org", "url_name"}
	}
	if len(names) != len(want) {
		return false
	}
	for _, name := range want {
		if _, ok := node.LookupAttr(name); !ok {
			return false
		}
	}
	return true
}

// NameToPathname converts a url_name to a relative path by treating
// colons as directory separators.
func NameToPathname(name string) string {
	return strings.ReplaceAll(name, ":", "/")
}

// FormatFilepath builds the canonical definition file path for a block.
func FormatFilepath(category, name, ext string) string {
	return category + "/" + name + "." + ext
}
