package olx

import (
	"sort"

	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/keys"
	"github.com/edforge/olx/core/xmltree"
)

// Importer materializes typed blocks from course XML.
type Importer struct {
	rt   Runtime
	opts Options
}

// NewImporter returns an importer running against rt.
func NewImporter(rt Runtime, opts Options) *Importer {
	return &Importer{rt: rt, opts: opts}
}

// ImportXML parses data and imports its root element.
func (im *Importer) ImportXML(data []byte) (*block.Block, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	return im.ImportNode(root, nil)
}

// ImportNode materializes the block node describes. With a nil ids the
// definition and usage keys are minted from the node's category and
// url_name; re-imports of the same url_name yield the same keys.
func (im *Importer) ImportNode(node *xmltree.Node, ids *keys.ScopeIDs) (*block.Block, error) {
	typ, ok := block.Get(node.Tag)
	if !ok {
		return nil, errors.NewUnsupported("block category "+node.Tag, "not registered")
	}

	var def keys.DefinitionKey
	var usage keys.UsageKey
	if ids == nil {
		gen := im.rt.IDGenerator()
		def = gen.CreateDefinition(node.Tag, node.Attr("url_name"))
		usage = gen.CreateUsage(def)
	} else {
		def = ids.DefID
		usage = ids.UsageID
	}

	d, metaNode, err := LoadDefinition(im.rt, typ, node, def, usage, im.opts)
	if err != nil {
		return nil, err
	}

	md := LoadMetadata(typ, metaNode, im.opts)
	MergeEmbeddedMetadata(md, d.MetadataRaw, im.opts)
	ApplyPolicy(typ, md, im.rt.PolicyFor(usage))
	md.Bag()["filename"] = d.Filename

	// Definition values win over metadata on name collisions.
	merged := make(map[string]any, len(md)+len(d.Fields))
	for k, v := range md {
		merged[k] = v
	}
	for k, v := range d.Fields {
		merged[k] = v
	}

	b := im.rt.ConstructBlock(typ, usage, def)
	im.applyFields(b, merged)
	b.SetChildren(d.Children)
	if len(d.AsideChildren) > 0 {
		im.attachApplicableAsides(b, d.AsideChildren)
	}
	return b, nil
}

// attachApplicableAsides filters the runtime's aside candidates down
// to those whose type matches a fragment tag found in the definition,
// and attaches exactly those to the block's usage.
func (im *Importer) attachApplicableAsides(b *block.Block, fragments []*xmltree.Node) {
	tags := make(map[string]bool, len(fragments))
	for _, frag := range fragments {
		tags[frag.Tag] = true
	}
	for _, aside := range im.rt.AsideCandidates(b.Usage()) {
		if tags[aside.BlockType()] {
			im.rt.AttachAside(b.Usage(), aside)
		}
	}
}

// applyFields assigns merged metadata and definition values to the
// block. Names are applied in sorted order so logs and failures are
// deterministic.
func (im *Importer) applyFields(b *block.Block, merged map[string]any) {
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == MetaRawKey || name == MetaErrKey {
			continue
		}
		value := merged[name]
		f, known := b.Type().Schema.Lookup(name)
		if !known {
			im.opts.logger().Warn("imported block does not declare field found in XML",
				"category", b.Category(), "field", name)
			continue
		}
		if value == nil {
			im.setField(b, name, nil)
			continue
		}
		conv, ok := f.Kind.FromJSON(value)
		if !ok {
			im.opts.logger().Warn("field value has wrong type, ignoring",
				"category", b.Category(), "field", name, "kind", f.Kind.String())
			continue
		}
		if name == "xml_attributes" {
			if incoming, ok := conv.(map[string]any); ok {
				im.mergeBag(b, incoming)
			}
			continue
		}
		im.setField(b, name, conv)
	}
}

// mergeBag folds incoming entries into the block's xml_attributes bag
// rather than replacing it, so entries already on the block survive
// an import. Incoming entries win on name collisions.
func (im *Importer) mergeBag(b *block.Block, incoming map[string]any) {
	bag := b.Dict("xml_attributes")
	if bag == nil {
		bag = map[string]any{}
	}
	for k, v := range incoming {
		bag[k] = v
	}
	im.setField(b, "xml_attributes", bag)
}

func (im *Importer) setField(b *block.Block, name string, value any) {
	if err := b.Set(name, value); err != nil {
		im.opts.logger().Warn("field assignment failed",
			"category", b.Category(), "field", name, "err", err)
	}
}

// ChildUsageKeys resolves a block's child references to usage keys in
// the block's own course.
func ChildUsageKeys(b *block.Block) []keys.UsageKey {
	refs := b.Children()
	out := make([]keys.UsageKey, len(refs))
	for i, ref := range refs {
		out[i] = b.Usage().Course.MakeUsage(ref.Category, ref.URLName)
	}
	return out
}
