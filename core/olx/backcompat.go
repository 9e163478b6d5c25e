package olx

import "strings"

// BackcompatPaths returns historical fallback locations for a missing
// definition file, most specific first. Old exports stored html bodies
// under .html.xml or .html.html names and sometimes without the leading
// category directories, so the list peels those suffixes, then strips
// leading path segments one at a time, and finally adds an .html twin
// for every .xml candidate.
func BackcompatPaths(filepath string) []string {
	if strings.HasSuffix(filepath, ".html.xml") {
		filepath = filepath[:len(filepath)-9] + ".html"
	}
	if strings.HasSuffix(filepath, ".html.html") {
		filepath = filepath[:len(filepath)-5]
	}
	var candidates []string
	for strings.Contains(filepath, "/") {
		candidates = append(candidates, filepath)
		_, filepath, _ = strings.Cut(filepath, "/")
	}
	var htmlTwins []string
	for _, c := range candidates {
		if strings.HasSuffix(c, ".xml") {
			htmlTwins = append(htmlTwins, c[:len(c)-4]+".html")
		}
	}
	return append(candidates, htmlTwins...)
}
