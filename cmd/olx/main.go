// Command olx is the CLI tool for OLX course content.
// It provides commands for inspecting blocks, scanning courses into an
// inventory database, and packing course directories into archives.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/edforge/olx/core/archive"
	"github.com/edforge/olx/core/block"
	"github.com/edforge/olx/core/inventory"
	"github.com/edforge/olx/core/keys"
	"github.com/edforge/olx/core/olx"
	"github.com/edforge/olx/core/policy"
	"github.com/edforge/olx/core/resfs"
	"github.com/edforge/olx/core/xmltree"
	"github.com/edforge/olx/internal/logging"

	// Import the block registry so the standard categories are available
	_ "github.com/edforge/olx/blocks"
)

const version = "0.1.0"

// CLI defines the command-line interface for olx.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" enum:"debug,info,warn,error" default:"info"`
	LogFormat string `name:"log-format" help:"Log output format (text, json)" enum:"text,json" default:"text"`

	// Command groups (noun-first organization)
	Block     BlockGroup     `cmd:"" help:"Block operations (inspect, roundtrip, types)"`
	Course    CourseGroup    `cmd:"" help:"Course operations (scan, pack, unpack, verify)"`
	Inventory InventoryGroup `cmd:"" help:"Inventory database queries"`
	Version   VersionCmd     `cmd:"" help:"Print version information"`
}

// BlockGroup contains single-block operations.
type BlockGroup struct {
	Inspect   BlockInspectCmd   `cmd:"" help:"Import a block and print its fields as JSON"`
	Roundtrip BlockRoundtripCmd `cmd:"" help:"Import a block, re-export it, and list the written files"`
	Types     BlockTypesCmd     `cmd:"" help:"List registered block types and their schemas"`
}

// CourseGroup contains whole-course operations.
type CourseGroup struct {
	Scan   CourseScanCmd   `cmd:"" help:"Import every block definition and record it in the inventory"`
	Pack   CoursePackCmd   `cmd:"" help:"Pack a course directory into a hashed archive"`
	Unpack CourseUnpackCmd `cmd:"" help:"Unpack a course archive into a directory"`
	Verify CourseVerifyCmd `cmd:"" help:"Verify an unpacked course against its manifest"`
}

// InventoryGroup contains inventory database operations.
type InventoryGroup struct {
	List InventoryListCmd `cmd:"" help:"List recorded blocks"`
}

// BlockInspectCmd imports one block from a course directory and prints
// its identity, fields, and children as JSON.
type BlockInspectCmd struct {
	Dir      string `arg:"" help:"Course directory" type:"existingdir"`
	Category string `arg:"" help:"Block category (see 'olx block types')"`
	URLName  string `arg:"" help:"Block url_name"`
	Course   string `help:"Course key (default: derived from course.xml)"`
}

func (c *BlockInspectCmd) Run() error {
	b, _, err := importBlock(c.Dir, c.Category, c.URLName, c.Course, nil)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(blockInfo(b), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode block: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// BlockRoundtripCmd imports one block and immediately exports it into a
// fresh directory, printing the pointer element and the written files.
type BlockRoundtripCmd struct {
	Dir      string `arg:"" help:"Course directory" type:"existingdir"`
	Category string `arg:"" help:"Block category (see 'olx block types')"`
	URLName  string `arg:"" help:"Block url_name"`
	Out      string `required:"" short:"o" help:"Output directory" type:"path"`
	Course   string `help:"Course key (default: derived from course.xml)"`
}

func (c *BlockRoundtripCmd) Run() error {
	if err := os.MkdirAll(c.Out, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outFS := resfs.Dir(c.Out)

	b, rt, err := importBlock(c.Dir, c.Category, c.URLName, c.Course, outFS)
	if err != nil {
		return err
	}

	pointer := xmltree.NewElement(c.Category)
	ex := olx.NewExporter(rt, olx.DefaultOptions())
	if err := ex.ExportNode(b, pointer); err != nil {
		return fmt.Errorf("failed to export %s/%s: %w", c.Category, c.URLName, err)
	}

	// Settings routed to the policy file rather than to XML attributes
	// are written alongside the definition.
	if entry := ex.PolicyEntry(b); len(entry) > 0 {
		pol := policy.Empty()
		pol.Put(c.Category, b.Usage().ID, entry)
		if err := pol.Save(outFS, rt.Course().Run); err != nil {
			return fmt.Errorf("failed to write policy: %w", err)
		}
	}

	files, err := writtenFiles(c.Out)
	if err != nil {
		return fmt.Errorf("failed to list output: %w", err)
	}

	fmt.Printf("Roundtrip %s/%s -> %s\n", c.Category, c.URLName, c.Out)
	fmt.Printf("  Pointer: %s\n", pointer.XML())
	fmt.Println("Written files:")
	if len(files) == 0 {
		fmt.Println("  (none: definition exported inline)")
	}
	for _, f := range files {
		fmt.Printf("  %s\n", f)
	}
	return nil
}

// BlockTypesCmd lists the registered block types.
type BlockTypesCmd struct {
	JSON bool `help:"Output as JSON"`
}

func (c *BlockTypesCmd) Run() error {
	types := block.List()

	if c.JSON {
		out := make([]map[string]any, 0, len(types))
		for _, t := range types {
			fields := make([]map[string]any, 0, t.Schema.Len())
			for _, f := range t.Schema.Fields() {
				fields = append(fields, map[string]any{
					"name":  f.Name,
					"scope": f.Scope.String(),
					"kind":  f.Kind.String(),
				})
			}
			entry := map[string]any{
				"category":      t.Category,
				"extension":     t.FileExtension(),
				"has_children":  t.HasChildren,
				"inline_export": t.InlineExport,
				"fields":        fields,
			}
			if t.ContentField != "" {
				entry["content_field"] = t.ContentField
			}
			if t.RawExtension != "" {
				entry["raw_extension"] = t.RawExtension
			}
			out = append(out, entry)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode types: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%-15s %-9s %-9s %-7s %s\n", "CATEGORY", "FILE", "CHILDREN", "INLINE", "FIELDS")
	fmt.Printf("%-15s %-9s %-9s %-7s %s\n", "--------", "----", "--------", "------", "------")
	for _, t := range types {
		file := t.FileExtension()
		if t.RawExtension != "" {
			file += "+" + t.RawExtension
		}
		fmt.Printf("%-15s %-9s %-9s %-7s %s\n",
			t.Category, file, yesNo(t.HasChildren), yesNo(t.InlineExport),
			strings.Join(t.Schema.SortedNames(), ", "))
	}
	fmt.Printf("\nTotal: %d block types\n", len(types))
	return nil
}

// CourseScanCmd imports every block definition found under a course
// directory and records each one in the inventory database.
type CourseScanCmd struct {
	Dir    string `arg:"" help:"Course directory" type:"existingdir"`
	DB     string `name:"db" required:"" help:"Inventory database path" type:"path"`
	Course string `help:"Course key (default: derived from course.xml)"`
}

func (c *CourseScanCmd) Run() error {
	course, err := courseKey(c.Dir, c.Course)
	if err != nil {
		return err
	}

	res := resfs.Dir(c.Dir)
	pol, err := policy.Load(res, course.Run)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	rt := olx.NewHostRuntime(olx.RuntimeConfig{Course: course, Resources: res, Policy: pol})
	im := olx.NewImporter(rt, olx.DefaultOptions())

	db, err := inventory.Open(c.DB)
	if err != nil {
		return fmt.Errorf("failed to open inventory: %w", err)
	}
	defer db.Close()

	fmt.Printf("Scanning course directory: %s\n", c.Dir)
	fmt.Printf("  Course key: %s\n", course)
	fmt.Println()

	total := 0
	failed := 0
	for _, typ := range block.List() {
		if typ.InlineExport {
			continue // inline-only types have no definition files
		}
		names, err := definitionNames(c.Dir, typ)
		if err != nil {
			return err
		}
		recorded := 0
		for _, name := range names {
			rec, err := scanBlock(im, typ, name, course, c.Dir)
			if err != nil {
				fmt.Printf("  %s/%s: %v\n", typ.Category, name, err)
				failed++
				continue
			}
			if err := db.Upsert(rec); err != nil {
				return fmt.Errorf("failed to record %s/%s: %w", typ.Category, name, err)
			}
			recorded++
		}
		if recorded > 0 {
			fmt.Printf("  %s: %d\n", typ.Category, recorded)
		}
		total += recorded
	}

	fmt.Println()
	if failed > 0 {
		fmt.Printf("Warning: %d block(s) failed to import\n", failed)
	}
	fmt.Printf("Recorded %d blocks in %s\n", total, c.DB)
	return nil
}

// CoursePackCmd packs a course directory into a compressed tar archive
// with an embedded integrity manifest.
type CoursePackCmd struct {
	Dir         string `arg:"" help:"Course directory to pack" type:"existingdir"`
	Archive     string `arg:"" help:"Output archive path" type:"path"`
	Compression string `help:"Compression format" enum:"xz,gzip" default:"xz"`
}

func (c *CoursePackCmd) Run() error {
	opts := &archive.PackOptions{Compression: archive.CompressionType(c.Compression)}
	m, err := archive.Pack(c.Dir, c.Archive, opts)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", c.Dir, err)
	}

	fmt.Printf("Packed: %s\n", c.Archive)
	fmt.Printf("  Files: %d\n", len(m.Files))
	fmt.Printf("  Compression: %s\n", c.Compression)
	info, _ := os.Stat(c.Archive)
	if info != nil {
		fmt.Printf("  Size: %d bytes\n", info.Size())
	}
	return nil
}

// CourseUnpackCmd unpacks a course archive into a directory.
type CourseUnpackCmd struct {
	Archive string `arg:"" help:"Course archive to unpack" type:"existingfile"`
	Dir     string `arg:"" help:"Destination directory" type:"path"`
}

func (c *CourseUnpackCmd) Run() error {
	m, err := archive.Unpack(c.Archive, c.Dir)
	if err != nil {
		return fmt.Errorf("failed to unpack %s: %w", c.Archive, err)
	}

	fmt.Printf("Unpacked: %s\n", c.Archive)
	fmt.Printf("  Destination: %s\n", c.Dir)
	if m != nil {
		fmt.Printf("  Manifest: %d files (version %s)\n", len(m.Files), m.ArchiveVersion)
	} else {
		fmt.Println("  No manifest in archive")
	}
	return nil
}

// CourseVerifyCmd verifies an unpacked course directory against the
// manifest it was unpacked with.
type CourseVerifyCmd struct {
	Dir string `arg:"" help:"Unpacked course directory" type:"existingdir"`
}

func (c *CourseVerifyCmd) Run() error {
	data, err := os.ReadFile(filepath.Join(c.Dir, archive.ManifestName))
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := archive.ParseManifest(data)
	if err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := archive.Verify(c.Dir, m); err != nil {
		var verr *archive.VerifyError
		if errors.As(err, &verr) {
			fmt.Println("Verification FAILED:")
			for _, p := range verr.Problems {
				fmt.Printf("  %s\n", p)
			}
			return fmt.Errorf("%d integrity problem(s) found", len(verr.Problems))
		}
		return err
	}

	fmt.Printf("Verification OK: %d files match the manifest\n", len(m.Files))
	return nil
}

// InventoryListCmd lists blocks recorded in an inventory database.
type InventoryListCmd struct {
	DB       string `name:"db" required:"" help:"Inventory database path" type:"existingfile"`
	Category string `help:"Only list blocks of this category"`
	JSON     bool   `help:"Output as JSON"`
}

func (c *InventoryListCmd) Run() error {
	db, err := inventory.Open(c.DB)
	if err != nil {
		return fmt.Errorf("failed to open inventory: %w", err)
	}
	defer db.Close()

	var records []*inventory.Record
	if c.Category != "" {
		records, err = db.ListByCategory(c.Category)
	} else {
		records, err = db.List()
	}
	if err != nil {
		return fmt.Errorf("failed to list inventory: %w", err)
	}

	if c.JSON {
		data, jerr := json.MarshalIndent(records, "", "  ")
		if jerr != nil {
			return fmt.Errorf("failed to encode records: %w", jerr)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%-15s %-24s %-28s %s\n", "CATEGORY", "URL_NAME", "DISPLAY_NAME", "IMPORTED")
	fmt.Printf("%-15s %-24s %-28s %s\n", "--------", "--------", "------------", "--------")
	for _, r := range records {
		name := r.DisplayName
		if len(name) > 28 {
			name = name[:25] + "..."
		}
		fmt.Printf("%-15s %-24s %-28s %s\n",
			r.Category, r.URLName, name, r.ImportedAt.Format(time.RFC3339))
	}
	fmt.Printf("\nTotal: %d blocks\n", len(records))
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("olx version %s\n", version)
	return nil
}

// Helper functions

// courseKey determines the course key for a course directory: the
// --course flag when given, the root course.xml pointer when present, a
// local placeholder otherwise.
func courseKey(dir, flag string) (keys.CourseKey, error) {
	if flag != "" {
		key, err := keys.ParseCourseKey(flag)
		if err != nil {
			return keys.CourseKey{}, fmt.Errorf("invalid course key: %w", err)
		}
		return key, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, "course.xml"))
	if err == nil {
		root, perr := xmltree.Parse(data)
		if perr == nil && root.Tag == "course" && root.Attr("url_name") != "" {
			return keys.CourseKey{
				Org:    root.Attr("org"),
				Course: root.Attr("course"),
				Run:    root.Attr("url_name"),
			}, nil
		}
	}

	return keys.CourseKey{Org: "local", Course: "course", Run: "run"}, nil
}

// pointerNode builds the pointer element that references a stored
// definition. Course pointers carry the org and course attributes.
func pointerNode(category, urlName string, course keys.CourseKey) *xmltree.Node {
	node := xmltree.NewElement(category)
	node.SetAttr("url_name", urlName)
	if category == "course" {
		node.SetAttr("org", course.Org)
		node.SetAttr("course", course.Course)
	}
	return node
}

// importBlock imports one block from a course directory. The exports
// store may be nil when the caller only reads.
func importBlock(dir, category, urlName, courseFlag string, exports resfs.FS) (*block.Block, *olx.HostRuntime, error) {
	if !block.Has(category) {
		return nil, nil, fmt.Errorf("unknown block category %q (see 'olx block types')", category)
	}

	course, err := courseKey(dir, courseFlag)
	if err != nil {
		return nil, nil, err
	}
	if category == "course" {
		// The url_name of a course block is its run.
		course.Run = urlName
	}

	res := resfs.Dir(dir)
	pol, err := policy.Load(res, course.Run)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load policy: %w", err)
	}

	rt := olx.NewHostRuntime(olx.RuntimeConfig{
		Course:    course,
		Resources: res,
		Exports:   exports,
		Policy:    pol,
	})
	im := olx.NewImporter(rt, olx.DefaultOptions())

	b, err := im.ImportNode(pointerNode(category, urlName, course), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to import %s/%s: %w", category, urlName, err)
	}
	return b, rt, nil
}

// blockInfo flattens a block into a JSON-friendly map: identity, the
// fields with explicit values, and child references.
func blockInfo(b *block.Block) map[string]any {
	fields := make(map[string]any)
	for _, f := range b.Type().Schema.Fields() {
		if b.IsSet(f.Name) {
			fields[f.Name] = b.Get(f.Name)
		}
	}

	info := map[string]any{
		"category":   b.Category(),
		"usage_key":  b.Usage().String(),
		"definition": b.Definition().String(),
		"fields":     fields,
	}
	if refs := b.Children(); len(refs) > 0 {
		children := make([]string, len(refs))
		for i, ref := range refs {
			children[i] = ref.Category + "/" + ref.URLName
		}
		info["children"] = children
	}
	return info
}

// definitionNames lists the url_names with a definition file for the
// given type under dir. Nested files map back through the pathname
// convention, so chapter/a/b.xml is the url_name "a:b".
func definitionNames(dir string, typ *block.Type) ([]string, error) {
	root := filepath.Join(dir, typ.Category)
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	suffix := "." + typ.FileExtension()
	var names []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), suffix) {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), suffix)
		names = append(names, strings.ReplaceAll(name, "/", ":"))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", typ.Category, err)
	}
	sort.Strings(names)
	return names, nil
}

// scanBlock imports one found definition and builds its inventory
// record. The imported_at timestamp is stamped by the database.
func scanBlock(im *olx.Importer, typ *block.Type, name string, course keys.CourseKey, dir string) (*inventory.Record, error) {
	b, err := im.ImportNode(pointerNode(typ.Category, name, course), nil)
	if err != nil {
		return nil, err
	}

	relPath := olx.FormatFilepath(typ.Category, olx.NameToPathname(name), typ.FileExtension())
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)

	return &inventory.Record{
		UsageKey:       b.Usage().String(),
		Category:       typ.Category,
		URLName:        name,
		DisplayName:    b.String("display_name"),
		DefinitionPath: relPath,
		ContentSHA256:  hex.EncodeToString(sum[:]),
	}, nil
}

// writtenFiles lists the files under dir relative to it, sorted.
func writtenFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// initLogging configures the process logger from the global flags.
func initLogging() error {
	level, err := logging.ParseLevel(CLI.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(CLI.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("olx"),
		kong.Description("edForge OLX - Course import/export toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	ctx.FatalIfErrorf(initLogging())
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
