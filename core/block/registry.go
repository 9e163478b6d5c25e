package block

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edforge/olx/core/field"
)

// registry holds all registered block types keyed by category. Types
// register at init time; reads during import and export are concurrent.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Type)
)

// Register adds a block type to the registry. The type is validated and
// normalized: the extension defaults to "xml" and the implicit
// xml_attributes field is added when the declaration omits it.
// Registering a category twice is an error.
func Register(t *Type) error {
	if t == nil {
		return fmt.Errorf("register: nil type")
	}
	if t.Category == "" {
		return fmt.Errorf("register: empty category")
	}
	if t.Handler == nil {
		return fmt.Errorf("register %q: nil content handler", t.Category)
	}
	if !t.Schema.Has("xml_attributes") {
		fields := append(t.Schema.Fields(), field.Field{
			Name:    "xml_attributes",
			Scope:   field.Settings,
			Kind:    field.Dict,
			Default: map[string]any{},
		})
		s, err := field.NewSchema(fields...)
		if err != nil {
			return fmt.Errorf("register %q: %w", t.Category, err)
		}
		t.Schema = s
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[t.Category]; dup {
		return fmt.Errorf("register %q: already registered", t.Category)
	}
	registry[t.Category] = t
	return nil
}

// MustRegister registers a type and panics on error. For package init
// blocks.
func MustRegister(t *Type) {
	if err := Register(t); err != nil {
		panic(err)
	}
}

// Get returns the type registered for a category.
func Get(category string) (*Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[category]
	return t, ok
}

// Has reports whether a category is registered.
func Has(category string) bool {
	_, ok := Get(category)
	return ok
}

// List returns all registered types sorted by category.
func List() []*Type {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]*Type, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Categories returns all registered category names in sorted order.
func Categories() []string {
	types := List()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Category
	}
	return names
}

// Clear removes all registered types. For tests.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*Type)
}
