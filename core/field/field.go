// Package field defines the static field schemas block types declare and
// the codec that moves field values between native Go values and the
// strings stored in XML attributes.
//
// A schema is an explicit, immutable list of (name, scope, kind, default)
// tuples built at registration time. Nothing is discovered by reflection;
// what a block type declares is exactly what the importer and exporter
// will touch.
package field

import (
	"fmt"
	"sort"
)

// Scope says who owns a field's value and where it is serialized.
type Scope int

const (
	// Content fields belong to the definition and travel with it.
	Content Scope = iota
	// Settings fields are per-placement and serialize as XML attributes.
	Settings
	// UserState fields are per-learner and never touch OLX.
	UserState
	// UserStateSummary fields aggregate over learners and never touch OLX.
	UserStateSummary
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case Content:
		return "content"
	case Settings:
		return "settings"
	case UserState:
		return "user_state"
	case UserStateSummary:
		return "user_state_summary"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// Kind is the declared value type of a field.
type Kind int

const (
	String Kind = iota
	Integer
	Float
	Boolean
	List
	Dict
	DateTime
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case List:
		return "list"
	case Dict:
		return "dict"
	case DateTime:
		return "datetime"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is one declared field of a block type.
type Field struct {
	Name    string
	Scope   Scope
	Kind    Kind
	Default any
}

// Schema is an ordered, immutable set of fields keyed by name.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema from the given fields. Field names must be
// non-empty and unique.
func NewSchema(fields ...Field) (Schema, error) {
	s := Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)
	for i, f := range s.fields {
		if f.Name == "" {
			return Schema{}, fmt.Errorf("schema field %d has empty name", i)
		}
		if _, dup := s.index[f.Name]; dup {
			return Schema{}, fmt.Errorf("duplicate schema field %q", f.Name)
		}
		s.index[f.Name] = i
	}
	return s, nil
}

// MustSchema builds a schema and panics on error. For static block type
// declarations.
func MustSchema(fields ...Field) Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Lookup returns the named field and whether it exists.
func (s Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether the schema declares the named field.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// ByScope returns the fields with the given scope, in declaration order.
func (s Schema) ByScope(scope Scope) []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Scope == scope {
			out = append(out, f)
		}
	}
	return out
}

// SortedNames returns all field names in lexical order.
func (s Schema) SortedNames() []string {
	names := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
