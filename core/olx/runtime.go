package olx

import (
	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/keys"
	"github.com/edforge/olx/core/policy"
	"github.com/edforge/olx/core/resfs"
	"github.com/edforge/olx/core/xmltree"
)

// Aside carries serialized state that rides along with a block without
// the block's own type knowing about it.
type Aside interface {
	// BlockType is the tag the aside's XML fragments use.
	BlockType() string
	// NeedsSerialization reports whether the aside currently holds
	// state worth exporting.
	NeedsSerialization() bool
	// AddXMLToNode writes the aside's state onto a wrapper element
	// during export.
	AddXMLToNode(node *xmltree.Node) error
}

// Runtime supplies the host services the importer and exporter run
// against.
type Runtime interface {
	// Resources is the store course files are read from on import.
	Resources() resfs.FS
	// ExportTarget is the store exported files are written to.
	ExportTarget() resfs.FS
	// IDGenerator mints definition and usage keys during import.
	IDGenerator() *keys.IDGenerator
	// PolicyFor returns the policy values overlaid on a usage's
	// metadata, nil when the policy has no entry for it.
	PolicyFor(usage keys.UsageKey) map[string]any
	// ConstructBlock creates an empty block bound to its keys.
	ConstructBlock(t *block.Type, usage keys.UsageKey, def keys.DefinitionKey) *block.Block
	// ParseAsides removes aside fragments from a definition node and
	// returns them, so content extraction never sees them.
	ParseAsides(node *xmltree.Node, def keys.DefinitionKey, usage keys.UsageKey) []*xmltree.Node
	// AsideCandidates returns the aside instances available for a
	// usage. The importer attaches the candidates whose type matches a
	// discovered aside fragment.
	AsideCandidates(usage keys.UsageKey) []Aside
	// AttachAside attaches an aside instance to a usage. Attached
	// asides are serialized next to the block's own content on export.
	AttachAside(usage keys.UsageKey, a Aside)
	// Asides returns the asides attached to a usage, in attachment
	// order.
	Asides(usage keys.UsageKey) []Aside
}

// HostRuntime is the stock Runtime: billy-backed file stores, a
// course-bound key generator, a policy file overlay and tag-matched
// aside attachment. Constructors registered with RegisterAside supply
// the candidates the importer attaches when a definition carries a
// matching fragment; the raw fragments are retained per usage as well.
type HostRuntime struct {
	course     keys.CourseKey
	resources  resfs.FS
	exports    resfs.FS
	idgen      *keys.IDGenerator
	policy     *policy.Source
	asideTypes map[string]bool
	factories  []func() Aside
	asides     map[string][]Aside
	fragments  map[string][]*xmltree.Node
}

// RuntimeConfig configures NewHostRuntime. Resources is where course
// files are read from; a nil Resources or Exports gets an in-memory
// store, a nil Policy an empty one.
type RuntimeConfig struct {
	Course    keys.CourseKey
	Resources resfs.FS
	Exports   resfs.FS
	Policy    *policy.Source
}

// NewHostRuntime builds a runtime for one course.
func NewHostRuntime(cfg RuntimeConfig) *HostRuntime {
	rt := &HostRuntime{
		course:     cfg.Course,
		resources:  cfg.Resources,
		exports:    cfg.Exports,
		idgen:      keys.NewIDGenerator(cfg.Course),
		policy:     cfg.Policy,
		asideTypes: map[string]bool{},
		asides:     map[string][]Aside{},
		fragments:  map[string][]*xmltree.Node{},
	}
	if rt.resources == nil {
		rt.resources = resfs.Mem()
	}
	if rt.exports == nil {
		rt.exports = resfs.Mem()
	}
	if rt.policy == nil {
		rt.policy = policy.Empty()
	}
	return rt
}

// Course returns the course the runtime is bound to.
func (r *HostRuntime) Course() keys.CourseKey { return r.course }

// Resources implements Runtime.
func (r *HostRuntime) Resources() resfs.FS { return r.resources }

// ExportTarget implements Runtime.
func (r *HostRuntime) ExportTarget() resfs.FS { return r.exports }

// IDGenerator implements Runtime.
func (r *HostRuntime) IDGenerator() *keys.IDGenerator { return r.idgen }

// Policy returns the runtime's policy source.
func (r *HostRuntime) Policy() *policy.Source { return r.policy }

// PolicyFor implements Runtime by looking the usage up in the policy
// source.
func (r *HostRuntime) PolicyFor(usage keys.UsageKey) map[string]any {
	return r.policy.ForUsage(usage)
}

// ConstructBlock implements Runtime.
func (r *HostRuntime) ConstructBlock(t *block.Type, usage keys.UsageKey, def keys.DefinitionKey) *block.Block {
	return block.New(t, usage, def)
}

// RegisterAsideType marks tag as an aside tag that ParseAsides strips
// out of definition XML. Stripped fragments are retained but nothing
// is attached; use RegisterAside to also supply instances.
func (r *HostRuntime) RegisterAsideType(tag string) {
	r.asideTypes[tag] = true
}

// RegisterAside registers a constructor for asides carrying tag. The
// tag is stripped like RegisterAsideType, and every usage whose
// definition carried a matching fragment gets a fresh instance
// attached on import.
func (r *HostRuntime) RegisterAside(tag string, build func() Aside) {
	r.asideTypes[tag] = true
	r.factories = append(r.factories, build)
}

// AsideCandidates implements Runtime: one fresh instance from every
// registered constructor, in registration order.
func (r *HostRuntime) AsideCandidates(usage keys.UsageKey) []Aside {
	if len(r.factories) == 0 {
		return nil
	}
	out := make([]Aside, 0, len(r.factories))
	for _, build := range r.factories {
		out = append(out, build())
	}
	return out
}

// AttachAside implements Runtime.
func (r *HostRuntime) AttachAside(usage keys.UsageKey, a Aside) {
	key := usage.String()
	r.asides[key] = append(r.asides[key], a)
}

// ParseAsides implements Runtime. Children whose tag is a registered
// aside type are detached from node and remembered for the usage.
func (r *HostRuntime) ParseAsides(node *xmltree.Node, def keys.DefinitionKey, usage keys.UsageKey) []*xmltree.Node {
	if len(r.asideTypes) == 0 {
		return nil
	}
	var found []*xmltree.Node
	for _, child := range node.Children() {
		if r.asideTypes[child.Tag] {
			found = append(found, child)
		}
	}
	for _, frag := range found {
		node.RemoveChild(frag)
	}
	if len(found) > 0 {
		key := usage.String()
		r.fragments[key] = append(r.fragments[key], found...)
	}
	return found
}

// AsideFragments returns the aside fragments discovered for a usage
// during import.
func (r *HostRuntime) AsideFragments(usage keys.UsageKey) []*xmltree.Node {
	return r.fragments[usage.String()]
}

// Asides implements Runtime.
func (r *HostRuntime) Asides(usage keys.UsageKey) []Aside {
	return r.asides[usage.String()]
}
