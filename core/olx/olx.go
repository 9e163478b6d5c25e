// Package olx imports and exports course content in the OLX XML format.
//
// A course is a tree of blocks. On disk each block is either written
// inline inside its parent or stored as its own file under
// {category}/{url_name}.{ext} and referenced from the parent by a
// pointer tag. Importing resolves pointers, merges metadata from XML
// attributes, embedded <meta> blocks and the course policy file, and
// materializes typed blocks. Exporting reverses the trip: settings
// fields become sorted XML attributes, unknown attributes ride along in
// the xml_attributes bag, and non-inline types write their definition
// back to a side file.
//
// The engine is driven by the block type registry (core/block) and runs
// against a Runtime that supplies file stores, key generation, policy
// lookup and aside handling.
package olx

import (
	"log/slog"
	"slices"
)

// Options is the static configuration shared by the importer and the
// exporter. Construct with DefaultOptions and adjust as needed; the
// engine never mutates it.
type Options struct {
	// MetadataToStrip names attributes that are import/export
	// bookkeeping rather than block metadata. They are never loaded
	// into fields and never re-exported.
	MetadataToStrip []string

	// MetadataToExportToPolicy names settings fields that are written
	// to the run's policy file instead of to XML attributes.
	MetadataToExportToPolicy []string

	// MetadataNotToClean maps a block category to attribute names that
	// export cleaning leaves on the content node even though they are
	// settings fields.
	MetadataNotToClean map[string][]string

	// Logger receives import/export diagnostics. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the stock attribute lists.
func DefaultOptions() Options {
	return Options{
		MetadataToStrip: []string{
			"data_dir",
			"tabs",
			"grading_policy",
			"discussion_blackouts",
			"course",
			"org",
			"url_name",
			"filename",
			"xml_attributes",
			"x-is-pointer-node",
		},
		MetadataToExportToPolicy: []string{"discussion_topics"},
		MetadataNotToClean: map[string][]string{
			"video": {"sub", "transcripts"},
		},
	}
}

// Strips reports whether name is in the strip list.
func (o Options) Strips(name string) bool {
	return slices.Contains(o.MetadataToStrip, name)
}

// ExportsToPolicy reports whether the named field is exported to the
// policy file rather than to an XML attribute.
func (o Options) ExportsToPolicy(name string) bool {
	return slices.Contains(o.MetadataToExportToPolicy, name)
}

// KeepOnClean returns the attribute names export cleaning must leave on
// a content node of the given category.
func (o Options) KeepOnClean(category string) map[string]bool {
	names := o.MetadataNotToClean[category]
	if len(names) == 0 {
		return nil
	}
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		keep[name] = true
	}
	return keep
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
