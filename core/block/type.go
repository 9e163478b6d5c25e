package block

import (
	"github.com/edforge/olx/core/field"
	"github.com/edforge/olx/core/xmltree"
)

// ChildRef names a child block by category and url_name, the form child
// references take in course XML before usage keys exist.
type ChildRef struct {
	Category string
	URLName  string
}

// ContentHandler is the per-type hook pair for moving definition content
// between XML and field values. Every registered type supplies one.
type ContentHandler interface {
	// ExtractContent reads content-scope field values and child
	// references out of a definition node. The node is the resolved
	// definition element, never a pointer.
	ExtractContent(node *xmltree.Node) (map[string]any, []ChildRef, error)

	// ContentNode renders a block's definition back to an element for
	// export. The returned element carries the content that
	// ExtractContent would recover, not the settings attributes; those
	// are stamped by the exporter.
	ContentNode(b *Block) (*xmltree.Node, error)
}

// Type describes one registered block category: its field schema, its
// file layout on disk, and the handler that moves content in and out of
// XML.
type Type struct {
	// Category is the OLX tag name, e.g. "html" or "poll_question".
	Category string

	// Schema declares the type's fields. Registration adds the implicit
	// xml_attributes field when the declaration omits it.
	Schema field.Schema

	// ContentField names the content-scope field holding the body, ""
	// for attribute-only types.
	ContentField string

	// Extension is the definition file extension under the category
	// directory. Empty means "xml".
	Extension string

	// RawExtension, when set, marks the type as raw-content: the body
	// lives in a side file with this extension ("html") named by the
	// filename attribute, and the definition file is only a shell.
	RawExtension string

	// InlineExport exports the definition inline in the parent element
	// instead of writing a side file with a pointer.
	InlineExport bool

	// HasChildren marks container types whose definition nodes carry
	// child references.
	HasChildren bool

	// Handler extracts and renders definition content.
	Handler ContentHandler
}

// FileExtension returns the definition file extension, applying the
// "xml" default.
func (t *Type) FileExtension() string {
	if t.Extension == "" {
		return "xml"
	}
	return t.Extension
}
