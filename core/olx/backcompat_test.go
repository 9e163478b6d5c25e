package olx

import (
	"slices"
	"testing"
)

// TestBackcompatPaths checks the fallback candidate list: suffix
// rewrites first, then one candidate per stripped leading directory,
// then .html twins for every .xml candidate.
func TestBackcompatPaths(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []string
	}{
		{
			"plain xml",
			"html/toc.xml",
			[]string{"html/toc.xml", "html/toc.html"},
		},
		{
			"html.xml rewritten",
			"html/toc.html.xml",
			[]string{"html/toc.html"},
		},
		{
			"doubled html suffix",
			"course/folder/file.html.html",
			[]string{"course/folder/file.html", "folder/file.html"},
		},
		{
			"nested directories",
			"a/b/c.xml",
			[]string{"a/b/c.xml", "b/c.xml", "a/b/c.html", "b/c.html"},
		},
		{
			"bare filename has no fallbacks",
			"file.xml",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BackcompatPaths(tt.path)
			if !slices.Equal(got, tt.want) {
				t.Errorf("BackcompatPaths(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
