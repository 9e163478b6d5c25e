// Package policy loads and saves the per-run policy overlay.
//
// A policy file lives at policies/{run}/policy.json and maps
// "{category}/{url_name}" keys to JSON objects of field values. Policy
// values win over both XML attributes and embedded definition metadata,
// so a run can retune a shared course tree without editing it.
package policy

import (
	"encoding/json"
	"sort"

	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/keys"
	"github.com/edforge/olx/core/resfs"
)

// Source is one loaded policy overlay.
type Source struct {
	values map[string]map[string]any
}

// Empty returns a policy source with no entries.
func Empty() *Source {
	return &Source{values: make(map[string]map[string]any)}
}

// FilePath returns the policy file path for a run.
func FilePath(run string) string {
	return "policies/" + run + "/policy.json"
}

// Load reads the policy overlay for a run. A missing file is not an
// error: courses without a policy get an empty overlay. A file that
// exists but does not parse also yields an empty overlay, alongside the
// parse error so the caller can log it and continue.
func Load(fsys resfs.FS, run string) (*Source, error) {
	path := FilePath(run)
	if !fsys.Exists(path) {
		return Empty(), nil
	}
	data, err := resfs.ReadFile(fsys, path)
	if err != nil {
		return Empty(), err
	}
	src, err := Parse(data)
	if err != nil {
		return Empty(), errors.NewParse("policy", path, err.Error())
	}
	return src, nil
}

// Parse decodes policy JSON.
func Parse(data []byte) (*Source, error) {
	values := make(map[string]map[string]any)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return &Source{values: values}, nil
}

// For returns the policy values for "{category}/{url_name}", or nil
// when the overlay has no entry. The returned map is a copy.
func (s *Source) For(category, urlName string) map[string]any {
	entry, ok := s.values[category+"/"+urlName]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		out[k] = v
	}
	return out
}

// ForUsage returns the policy values for a usage key's block.
func (s *Source) ForUsage(u keys.UsageKey) map[string]any {
	return s.For(u.Type, u.ID)
}

// Put stores the policy values for "{category}/{url_name}", replacing
// any existing entry.
func (s *Source) Put(category, urlName string, values map[string]any) {
	s.values[category+"/"+urlName] = values
}

// Len returns the number of policy entries.
func (s *Source) Len() int {
	return len(s.values)
}

// Keys returns all policy keys in sorted order.
func (s *Source) Keys() []string {
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Save writes the overlay to the run's policy file with stable,
// indented formatting.
func (s *Source) Save(fsys resfs.FS, run string) error {
	data, err := json.MarshalIndent(s.values, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encoding policy")
	}
	return resfs.WriteFile(fsys, FilePath(run), append(data, '\n'))
}
