package olx

import (
	"path"
	"strings"

	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/keys"
	"github.com/edforge/olx/core/resfs"
	"github.com/edforge/olx/core/xmltree"
)

// Definition is a resolved content definition, ready for
// materialization into a block.
type Definition struct {
	// Fields holds the content-scope values the type handler
	// extracted.
	Fields map[string]any
	// Children are child block references, in document order.
	Children []block.ChildRef
	// Filename is the pair [resolved path, declared filename]. The
	// first entry is "" when the definition was inline; the second is
	// nil unless a filename attribute was followed.
	Filename []any
	// MetadataRaw is the raw text of an embedded <meta> block, ""
	// when there was none.
	MetadataRaw string
	// AsideChildren are aside fragments detached from the definition
	// XML before content extraction.
	AsideChildren []*xmltree.Node
}

// LoadDefinition resolves node into a content definition. A pointer tag
// is followed to its definition file; a filename attribute on the
// definition is followed to its side file. The returned node is the one
// metadata attributes must be read from: the definition file's root for
// pointers, node itself otherwise. Its attributes are left intact.
//
// A definition or side file that cannot be read or parsed is reported
// as an unresolved reference naming the path that failed.
func LoadDefinition(rt Runtime, typ *block.Type, node *xmltree.Node, def keys.DefinitionKey, usage keys.UsageKey, opts Options) (*Definition, *xmltree.Node, error) {
	defXML := node
	var asides []*xmltree.Node
	var pointerPath string

	if IsPointerTag(node) {
		primary := FormatFilepath(typ.Category, NameToPathname(node.Attr("url_name")), typ.FileExtension())
		resolved := resolvePath(rt.Resources(), primary, opts)
		data, err := resfs.ReadFile(rt.Resources(), resolved)
		if err != nil {
			return nil, nil, errors.NewUnresolvedReference(resolved, def.String(), err)
		}
		if isRawPath(typ, resolved) {
			// A fallback landed directly on the raw side file; its
			// bytes are the whole definition.
			d := &Definition{
				Fields:   map[string]any{typ.ContentField: string(data)},
				Filename: []any{resolved, resolved},
			}
			return d, node, nil
		}
		root, err := xmltree.Parse(data)
		if err != nil {
			return nil, nil, errors.NewUnresolvedReference(resolved, def.String(), err)
		}
		defXML = root
		pointerPath = resolved
		asides = rt.ParseAsides(defXML, def, usage)
	}

	d, err := loadDefinitionXML(rt, typ, defXML, def, usage, opts)
	if err != nil {
		return nil, nil, err
	}
	d.AsideChildren = append(asides, d.AsideChildren...)
	if pointerPath != "" {
		d.Filename = []any{pointerPath, pointerPath}
	}
	return d, defXML, nil
}

// loadDefinitionXML turns one definition element into extracted fields,
// following a declared filename attribute to its side file first. The
// element passed in is never mutated.
func loadDefinitionXML(rt Runtime, typ *block.Type, defXML *xmltree.Node, def keys.DefinitionKey, usage keys.UsageKey, opts Options) (*Definition, error) {
	d := &Definition{Filename: []any{"", nil}}
	var work *xmltree.Node

	if declared, ok := defXML.LookupAttr("filename"); ok {
		sidePath := resolvePath(rt.Resources(), sideFilePath(typ, usage, declared), opts)
		data, err := resfs.ReadFile(rt.Resources(), sidePath)
		if err != nil {
			return nil, errors.NewUnresolvedReference(sidePath, def.String(), err)
		}
		d.Filename = []any{sidePath, declared}
		if typ.RawExtension != "" {
			// Raw types store their body verbatim in the side file.
			d.Fields = map[string]any{typ.ContentField: string(data)}
			return d, nil
		}
		side, err := xmltree.Parse(data)
		if err != nil {
			return nil, errors.NewUnresolvedReference(sidePath, def.String(), err)
		}
		// The referencing element's attributes win over the side
		// file's.
		for _, a := range defXML.Attrs() {
			side.SetAttr(a.Name, a.Value)
		}
		d.AsideChildren = rt.ParseAsides(side, def, usage)
		work = side
	} else {
		work = defXML.Copy()
	}

	d.MetadataRaw = ExtractEmbeddedMetadata(work)
	CleanMetadataFromXML(typ, work, nil)
	fields, children, err := typ.Handler.ExtractContent(work)
	if err != nil {
		return nil, err
	}
	d.Fields = fields
	d.Children = children
	return d, nil
}

// sideFilePath locates the side file a filename attribute names. Raw
// types anchor it at the directory the block's own definition file
// occupies, so url_names with directory separators resolve next to
// their pointer file; structured types use the category directory.
func sideFilePath(typ *block.Type, usage keys.UsageKey, declared string) string {
	if typ.RawExtension != "" {
		base := path.Dir(typ.Category + "/" + NameToPathname(usage.ID))
		return base + "/" + declared + "." + typ.RawExtension
	}
	return FormatFilepath(typ.Category, declared, typ.FileExtension())
}

// isRawPath reports whether a resolved path is the raw side file itself
// rather than a definition XML file.
func isRawPath(typ *block.Type, p string) bool {
	return typ.RawExtension != "" && strings.HasSuffix(p, "."+typ.RawExtension)
}

// resolvePath returns the first existing location for p, probing
// historical fallbacks when the primary is missing. When nothing exists
// the primary path comes back unchanged so the caller's read error
// names it.
func resolvePath(fsys resfs.FS, p string, opts Options) string {
	if fsys.Exists(p) {
		return p
	}
	for _, candidate := range BackcompatPaths(p) {
		if candidate == p {
			continue
		}
		if fsys.Exists(candidate) {
			opts.logger().Debug("definition file found at fallback path",
				"path", p, "fallback", candidate)
			return candidate
		}
	}
	return p
}
