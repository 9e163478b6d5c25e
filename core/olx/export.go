package olx

import (
	"bytes"
	"path"
	"sort"

	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/field"
	"github.com/edforge/olx/core/resfs"
	"github.com/edforge/olx/core/xmltree"
)

const xmlDeclaration = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"

// Exporter serializes blocks back to course XML.
type Exporter struct {
	rt   Runtime
	opts Options
}

// NewExporter returns an exporter running against rt.
func NewExporter(rt Runtime, opts Options) *Exporter {
	return &Exporter{rt: rt, opts: opts}
}

// ExportNode serializes b onto node. Types that export to a file leave
// node as a pointer stub and write the definition to
// {category}/{url_name}.{ext} in the export target; inline types copy
// the full definition onto node. A type that cannot serialize the block
// leaves node untouched.
func (ex *Exporter) ExportNode(b *block.Block, node *xmltree.Node) error {
	typ := b.Type()
	pathname := NameToPathname(b.Usage().ID)

	content, err := ex.contentNode(b, pathname)
	if err != nil {
		return err
	}
	if content == nil {
		return nil
	}

	if err := ex.appendAsides(b, content); err != nil {
		return err
	}

	keep := ex.opts.KeepOnClean(typ.Category)
	CleanMetadataFromXML(typ, content, keep)
	content.Tag = typ.Category
	node.Tag = typ.Category

	ex.stampSettings(b, content, keep)
	ex.stampXMLAttributes(b, content)

	if typ.InlineExport {
		node.CopyFrom(content)
	} else {
		name := pathname
		if typ.Category == "course" {
			name = b.Usage().Course.Run
		}
		relpath := FormatFilepath(typ.Category, name, typ.FileExtension())
		if err := ex.writeDefinition(relpath, content); err != nil {
			return err
		}
	}

	if node.Attr("url_name") == "" {
		node.SetAttr("url_name", b.Usage().ID)
	}
	if typ.Category == "course" {
		node.SetAttr("org", b.Usage().Course.Org)
		node.SetAttr("course", b.Usage().Course.Course)
	}
	return nil
}

// contentNode builds the element holding the block's definition. Raw
// types write their body side file here and return a shell that points
// at it; structured types delegate to the type handler.
func (ex *Exporter) contentNode(b *block.Block, pathname string) (*xmltree.Node, error) {
	typ := b.Type()
	if typ.RawExtension != "" {
		relpath := FormatFilepath(typ.Category, pathname, typ.RawExtension)
		body := []byte(b.String(typ.ContentField))
		if err := resfs.WriteFile(ex.rt.ExportTarget(), relpath, body); err != nil {
			return nil, err
		}
		shell := xmltree.NewElement(typ.Category)
		shell.SetAttr("filename", path.Base(pathname))
		return shell, nil
	}
	return typ.Handler.ContentNode(b)
}

// appendAsides serializes each attached aside that has state into a
// wrapper child of content.
func (ex *Exporter) appendAsides(b *block.Block, content *xmltree.Node) error {
	for _, aside := range ex.rt.Asides(b.Usage()) {
		if !aside.NeedsSerialization() {
			continue
		}
		wrapper := xmltree.NewElement("unknown_root")
		if err := aside.AddXMLToNode(wrapper); err != nil {
			return errors.Wrapf(err, "serializing aside %s", aside.BlockType())
		}
		content.AppendChild(wrapper)
	}
	return nil
}

// stampSettings re-emits explicitly set settings fields as sorted
// attributes, skipping strip-list names, policy-bound names, and names
// the cleaning pass deliberately left on the node. A field value that
// fails to serialize is logged and skipped so one bad value cannot sink
// the export.
func (ex *Exporter) stampSettings(b *block.Block, content *xmltree.Node, keep map[string]bool) {
	var names []string
	for _, f := range b.Type().Schema.ByScope(field.Settings) {
		if b.IsSet(f.Name) {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if ex.opts.Strips(name) || ex.opts.ExportsToPolicy(name) || keep[name] {
			continue
		}
		val, err := field.Serialize(b.Get(name))
		if err != nil {
			ex.opts.logger().Error("failed to serialize metadata attribute",
				"attribute", name, "block", b.Usage().String(), "err", err)
			continue
		}
		content.SetAttr(name, val)
	}
}

// stampXMLAttributes re-emits the xml_attributes bag, minus strip-list
// names, so attributes this code does not understand survive the round
// trip.
func (ex *Exporter) stampXMLAttributes(b *block.Block, content *xmltree.Node) {
	bag := b.Dict("xml_attributes")
	names := make([]string, 0, len(bag))
	for name := range bag {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if ex.opts.Strips(name) {
			continue
		}
		val, err := field.Serialize(bag[name])
		if err != nil {
			ex.opts.logger().Error("failed to serialize xml attribute",
				"attribute", name, "block", b.Usage().String(), "err", err)
			continue
		}
		content.SetAttr(name, val)
	}
}

// writeDefinition writes the pretty-printed definition file with an XML
// declaration.
func (ex *Exporter) writeDefinition(relpath string, content *xmltree.Node) error {
	var buf bytes.Buffer
	buf.WriteString(xmlDeclaration)
	buf.Write(content.Pretty(xmltree.PrettyOptions{}))
	return resfs.WriteFile(ex.rt.ExportTarget(), relpath, buf.Bytes())
}

// PolicyEntry returns the values of b's fields that belong in the
// policy file rather than in XML, nil when none are set. Callers merge
// the result into the run's policy before saving it.
func (ex *Exporter) PolicyEntry(b *block.Block) map[string]any {
	var entry map[string]any
	for _, name := range ex.opts.MetadataToExportToPolicy {
		if !b.IsSet(name) {
			continue
		}
		if entry == nil {
			entry = map[string]any{}
		}
		entry[name] = b.Get(name)
	}
	return entry
}
