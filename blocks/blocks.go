// Package blocks links every built-in block type into the registry.
// Importing it, usually blank, is what makes the standard categories
// available to the importer and exporter.
package blocks

import (
	_ "github.com/edforge/olx/blocks/annotatable"
	_ "github.com/edforge/olx/blocks/course"
	_ "github.com/edforge/olx/blocks/html"
	_ "github.com/edforge/olx/blocks/poll"
	_ "github.com/edforge/olx/blocks/wordcloud"
)
