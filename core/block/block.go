// Package block models materialized course blocks and the registry of
// block types.
//
// A Block is a bag of typed field values bound to a usage key and a
// definition key. It tracks which fields were explicitly set, because
// export serializes exactly the explicit settings-scope fields and
// nothing inherited from defaults.
package block

import (
	"fmt"

	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/keys"
)

// Block is one materialized course block.
type Block struct {
	typ        *Type
	usage      keys.UsageKey
	definition keys.DefinitionKey
	values     map[string]any
	explicit   map[string]bool
	children   []ChildRef
}

// New creates an empty block of the given type bound to its keys.
func New(typ *Type, usage keys.UsageKey, definition keys.DefinitionKey) *Block {
	return &Block{
		typ:        typ,
		usage:      usage,
		definition: definition,
		values:     make(map[string]any),
		explicit:   make(map[string]bool),
	}
}

// Type returns the block's registered type.
func (b *Block) Type() *Type {
	return b.typ
}

// Category returns the block's OLX tag name.
func (b *Block) Category() string {
	return b.typ.Category
}

// Usage returns the block's usage key.
func (b *Block) Usage() keys.UsageKey {
	return b.usage
}

// Definition returns the block's definition key.
func (b *Block) Definition() keys.DefinitionKey {
	return b.definition
}

// Get returns the field's value: the explicitly set value when present,
// the schema default otherwise. Container defaults come back as deep
// copies, so mutating the result never changes the shared schema; use
// Set to change the block.
func (b *Block) Get(name string) any {
	if v, ok := b.values[name]; ok {
		return v
	}
	f, ok := b.typ.Schema.Lookup(name)
	if !ok {
		return nil
	}
	return copyValue(f.Default)
}

// Set assigns a field value and marks the field explicitly set. Fields
// the schema does not declare are rejected; callers route those to
// xml_attributes or drop them with a warning before getting here.
func (b *Block) Set(name string, value any) error {
	if !b.typ.Schema.Has(name) {
		return errors.NewValidation(name, fmt.Sprintf("not a field of %q", b.typ.Category))
	}
	b.values[name] = value
	b.explicit[name] = true
	return nil
}

// IsSet reports whether the field was explicitly set, as opposed to
// reading through to its default.
func (b *Block) IsSet(name string) bool {
	return b.explicit[name]
}

// Unset removes an explicit value, restoring the default.
func (b *Block) Unset(name string) {
	delete(b.values, name)
	delete(b.explicit, name)
}

// Children returns the block's child references in order.
func (b *Block) Children() []ChildRef {
	out := make([]ChildRef, len(b.children))
	copy(out, b.children)
	return out
}

// SetChildren replaces the block's child references.
func (b *Block) SetChildren(children []ChildRef) {
	b.children = make([]ChildRef, len(children))
	copy(b.children, children)
}

// AppendChild adds one child reference.
func (b *Block) AppendChild(ref ChildRef) {
	b.children = append(b.children, ref)
}

// String returns the field's value as a string, or "" when the value
// has another type.
func (b *Block) String(name string) string {
	s, _ := b.Get(name).(string)
	return s
}

// Bool returns the field's value as a bool, or false when the value has
// another type.
func (b *Block) Bool(name string) bool {
	v, _ := b.Get(name).(bool)
	return v
}

// Int returns the field's value as an int64, or 0 when the value has
// another type.
func (b *Block) Int(name string) int64 {
	v, _ := b.Get(name).(int64)
	return v
}

// List returns the field's value as a []any, or nil when the value has
// another type.
func (b *Block) List(name string) []any {
	v, _ := b.Get(name).([]any)
	return v
}

// Dict returns the field's value as a map, or nil when the value has
// another type.
func (b *Block) Dict(name string) map[string]any {
	v, _ := b.Get(name).(map[string]any)
	return v
}

// copyValue deep-copies containers and passes scalars through.
func copyValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
