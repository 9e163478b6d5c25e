// Package keys defines the opaque identifiers used to address course
// content: course keys, block usage keys and definition keys. Serialized
// keys are parsed with a participle grammar so malformed input fails with
// a position-aware error instead of silently producing a broken key.
package keys

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/google/uuid"
)

// CourseKey identifies a course run.
// Serialized form: "course-v1:Org+Course+Run".
type CourseKey struct {
	Org    string
	Course string
	Run    string
}

// UsageKey identifies one block placed in a course.
// Serialized form: "block-v1:Org+Course+Run+type@category+block@id".
type UsageKey struct {
	Course CourseKey
	Type   string // block category, e.g. "html"
	ID     string // block id, usually the url_name
}

// DefinitionKey identifies a block definition independent of placement.
// Serialized form: "def-v1:id+type@category".
type DefinitionKey struct {
	Type string
	ID   string
}

// String returns the serialized course key.
func (c CourseKey) String() string {
	return fmt.Sprintf("course-v1:%s+%s+%s", c.Org, c.Course, c.Run)
}

// IsZero reports whether the key is unset.
func (c CourseKey) IsZero() bool {
	return c == CourseKey{}
}

// MakeUsage builds a usage key for a block in this course.
func (c CourseKey) MakeUsage(blockType, blockID string) UsageKey {
	return UsageKey{Course: c, Type: blockType, ID: blockID}
}

// MarshalText implements encoding.TextMarshaler.
func (c CourseKey) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CourseKey) UnmarshalText(text []byte) error {
	parsed, err := ParseCourseKey(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// String returns the serialized usage key.
func (u UsageKey) String() string {
	return fmt.Sprintf("block-v1:%s+%s+%s+type@%s+block@%s",
		u.Course.Org, u.Course.Course, u.Course.Run, u.Type, u.ID)
}

// IsZero reports whether the key is unset.
func (u UsageKey) IsZero() bool {
	return u == UsageKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (u UsageKey) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UsageKey) UnmarshalText(text []byte) error {
	parsed, err := ParseUsageKey(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// String returns the serialized definition key.
func (d DefinitionKey) String() string {
	return fmt.Sprintf("def-v1:%s+type@%s", d.ID, d.Type)
}

// IsZero reports whether the key is unset.
func (d DefinitionKey) IsZero() bool {
	return d == DefinitionKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (d DefinitionKey) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DefinitionKey) UnmarshalText(text []byte) error {
	parsed, err := ParseDefinitionKey(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ScopeIDs carries the identifiers a block is constructed with.
type ScopeIDs struct {
	BlockType string
	DefID     DefinitionKey
	UsageID   UsageKey
}

// keyGrammar is the participle grammar for serialized keys.
// Examples: "course-v1:edX+DemoX+2024", "def-v1:intro+type@html",
// "block-v1:edX+DemoX+2024+type@html+block@intro"
//
//nolint:govet // participle grammar tags are not standard struct tags
type keyGrammar struct {
	Course *courseBody `  "course-v1" ":" @@`
	Block  *blockBody  `| "block-v1" ":" @@`
	Def    *defBody    `| "def-v1" ":" @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type courseBody struct {
	Org    string `@Ident`
	Course string `"+" @Ident`
	Run    string `"+" @Ident`
}

//nolint:govet // participle grammar tags are not standard struct tags
type blockBody struct {
	Org      string `@Ident`
	Course   string `"+" @Ident`
	Run      string `"+" @Ident`
	Category string `"+" "type" "@" @Ident`
	BlockID  string `"+" "block" "@" @Ident ( @":" @Ident )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type defBody struct {
	ID       string `@Ident ( @":" @Ident )*`
	Category string `"+" "type" "@" @Ident`
}

// keyLexer tokenizes serialized keys. The versioned prefixes are matched
// ahead of Ident so "block-v1" does not lex as a plain identifier.
var keyLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Prefix", Pattern: `(course|block|def)-v1`},
	{Name: "Ident", Pattern: `[A-Za-z0-9_.\-]+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Plus", Pattern: `\+`},
	{Name: "At", Pattern: `@`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// keyParser is the participle parser for serialized keys.
var keyParser = participle.MustBuild[keyGrammar](
	participle.Lexer(keyLexer),
	participle.Elide("Whitespace"),
)

func parseKey(s string) (*keyGrammar, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty key string")
	}
	parsed, err := keyParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid key format: %q: %w", s, err)
	}
	return parsed, nil
}

// ParseCourseKey parses a serialized course key.
func ParseCourseKey(s string) (CourseKey, error) {
	parsed, err := parseKey(s)
	if err != nil {
		return CourseKey{}, err
	}
	if parsed.Course == nil {
		return CourseKey{}, fmt.Errorf("not a course key: %q", s)
	}
	return CourseKey{
		Org:    parsed.Course.Org,
		Course: parsed.Course.Course,
		Run:    parsed.Course.Run,
	}, nil
}

// ParseUsageKey parses a serialized usage key.
func ParseUsageKey(s string) (UsageKey, error) {
	parsed, err := parseKey(s)
	if err != nil {
		return UsageKey{}, err
	}
	if parsed.Block == nil {
		return UsageKey{}, fmt.Errorf("not a usage key: %q", s)
	}
	return UsageKey{
		Course: CourseKey{
			Org:    parsed.Block.Org,
			Course: parsed.Block.Course,
			Run:    parsed.Block.Run,
		},
		Type: parsed.Block.Category,
		ID:   parsed.Block.BlockID,
	}, nil
}

// ParseDefinitionKey parses a serialized definition key.
func ParseDefinitionKey(s string) (DefinitionKey, error) {
	parsed, err := parseKey(s)
	if err != nil {
		return DefinitionKey{}, err
	}
	if parsed.Def == nil {
		return DefinitionKey{}, fmt.Errorf("not a definition key: %q", s)
	}
	return DefinitionKey{
		Type: parsed.Def.Category,
		ID:   parsed.Def.ID,
	}, nil
}

// IDGenerator mints definition and usage keys for blocks imported into one
// course. It is the only piece of state shared across block imports.
type IDGenerator struct {
	course CourseKey
}

// NewIDGenerator creates a generator bound to a course.
func NewIDGenerator(course CourseKey) *IDGenerator {
	return &IDGenerator{course: course}
}

// Course returns the course the generator mints keys for.
func (g *IDGenerator) Course() CourseKey {
	return g.course
}

// CreateDefinition mints a definition key for a block category. The slug
// (usually the url_name) becomes the id when present so re-imports are
// stable; otherwise a random uuid is used.
func (g *IDGenerator) CreateDefinition(category, slug string) DefinitionKey {
	id := slug
	if id == "" {
		id = uuid.NewString()
	}
	return DefinitionKey{Type: category, ID: id}
}

// CreateUsage mints the usage key for a definition in this course.
func (g *IDGenerator) CreateUsage(def DefinitionKey) UsageKey {
	return g.course.MakeUsage(def.Type, def.ID)
}
