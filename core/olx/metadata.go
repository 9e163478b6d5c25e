package olx

import (
	"encoding/json"
	"strings"

	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/field"
	"github.com/edforge/olx/core/xmltree"
)

// Diagnostic keys recording embedded metadata recovery. They live in
// the merged metadata mapping for hosts to inspect; the materializer
// never applies them to block fields.
const (
	// MetaRawKey holds the raw text of an embedded <meta> block.
	MetaRawKey = "definition_metadata_raw"
	// MetaErrKey holds the parse error when that text was not valid
	// JSON.
	MetaErrKey = "definition_metadata_err"
)

// Metadata is the untyped field mapping assembled for one block before
// values are applied: XML attributes first, then embedded metadata,
// then policy, each layer overriding the last.
type Metadata map[string]any

// Bag returns the xml_attributes catch-all map, creating it on first
// use.
func (m Metadata) Bag() map[string]any {
	bag, ok := m["xml_attributes"].(map[string]any)
	if !ok {
		bag = map[string]any{}
		m["xml_attributes"] = bag
	}
	return bag
}

// LoadMetadata reads metadata candidates from a definition node's
// attributes. Strip-list names are dropped, names the type does not
// declare go into the xml_attributes bag verbatim, and declared names
// are deserialized through the field codec.
func LoadMetadata(typ *block.Type, node *xmltree.Node, opts Options) Metadata {
	md := Metadata{"xml_attributes": map[string]any{}}
	for _, a := range node.Attrs() {
		if opts.Strips(a.Name) {
			continue
		}
		f, known := typ.Schema.Lookup(a.Name)
		if !known {
			md.Bag()[a.Name] = a.Value
			continue
		}
		md[a.Name] = field.Deserialize(f, a.Value)
	}
	return md
}

// ExtractEmbeddedMetadata detaches a <meta> child from the definition
// node and returns its trimmed text, "" when there is none. The child
// is removed so content extraction never sees it.
func ExtractEmbeddedMetadata(node *xmltree.Node) string {
	meta := node.FindChild("meta")
	if meta == nil {
		return ""
	}
	raw := strings.TrimSpace(meta.Text)
	node.RemoveChild(meta)
	return raw
}

// MergeEmbeddedMetadata merges raw <meta> JSON over md. The raw text is
// always preserved under MetaRawKey; when it is not a JSON object the
// import recovers by recording the error under MetaErrKey instead of
// failing.
func MergeEmbeddedMetadata(md Metadata, raw string, opts Options) {
	if raw == "" {
		return
	}
	md[MetaRawKey] = raw
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		opts.logger().Debug("malformed embedded metadata", "err", err)
		md[MetaErrKey] = err.Error()
		return
	}
	for k, v := range values {
		md[k] = v
	}
}

// ApplyPolicy overlays policy values on md: names the type declares
// override the current value, others land in the xml_attributes bag so
// they survive a round trip.
func ApplyPolicy(typ *block.Type, md Metadata, pol map[string]any) {
	for k, v := range pol {
		if !typ.Schema.Has(k) {
			md.Bag()[k] = v
			continue
		}
		md[k] = v
	}
}

// CleanMetadataFromXML deletes every settings-scope attribute the type
// declares from node, keeping the names in keep. Definition files hold
// content; settings belong on the pointer or in policy.
func CleanMetadataFromXML(typ *block.Type, node *xmltree.Node, keep map[string]bool) {
	for _, f := range typ.Schema.ByScope(field.Settings) {
		if keep[f.Name] {
			continue
		}
		node.DeleteAttr(f.Name)
	}
}
