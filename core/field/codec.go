package field

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/keys"
)

// Serialize converts a native field value to the string form stored in an
// XML attribute.
//
// Strings pass through unchanged, so a plain string attribute stays
// human-readable instead of gaining JSON quotes. Timestamps render as
// ISO-8601 with a literal Z when the UTC offset is zero. Everything else
// is JSON, with opaque keys and timestamps inside containers rendered as
// their string forms.
func Serialize(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case time.Time:
		return Timestamp(v), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jsonable(value)); err != nil {
		return "", errors.Wrapf(err, "serializing field value")
	}
	// Encode appends a newline the attribute must not carry.
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Timestamp renders a time in the ISO-8601 form used throughout course
// XML: fractional seconds only when present, "Z" for a zero UTC offset.
func Timestamp(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02T15:04:05.999999999Z07:00")
	}
	return t.Format(time.RFC3339)
}

// jsonable rewrites values json.Marshal cannot render faithfully:
// timestamps and course/usage/definition keys become strings, containers
// are walked recursively.
func jsonable(value any) any {
	switch v := value.(type) {
	case time.Time:
		return Timestamp(v)
	case keys.CourseKey:
		return v.String()
	case keys.UsageKey:
		return v.String()
	case keys.DefinitionKey:
		return v.String()
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = jsonable(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = jsonable(e)
		}
		return out
	default:
		return value
	}
}

// Deserialize converts a raw attribute string to the field's native value.
//
// The raw string is tried as JSON first. When it does not parse, or
// parses to a value the field's kind rejects, the raw string itself is
// returned unchanged: legacy course XML stores bare strings without JSON
// quotes, and those must survive. A JSON null becomes nil, which reads as
// "explicitly cleared".
func Deserialize(f Field, raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	// json.Decoder stops after one value; trailing tokens mean the raw
	// string was never JSON ("not empty" parses as "not", for example).
	if _, err := dec.Token(); err != io.EOF {
		return raw
	}
	if v == nil {
		return nil
	}
	conv, ok := f.Kind.FromJSON(v)
	if !ok {
		return raw
	}
	return conv
}

// FromJSON converts a decoded JSON value to the kind's native type. The
// second return is false when the value is not acceptable for the kind,
// in which case callers fall back to the raw form.
//
// Numbers arrive either as json.Number (attribute decoding) or as
// float64/int (policy files and defaults); both are handled. An integer
// kind only accepts numbers with no fractional part, so "3.4" stays a
// string on a count field instead of silently truncating.
func (k Kind) FromJSON(value any) (any, bool) {
	switch k {
	case String:
		s, ok := value.(string)
		return s, ok
	case Integer:
		return toInt(value)
	case Float:
		return toFloat(value)
	case Boolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			// Legacy attributes spell booleans as bare words.
			switch strings.ToLower(v) {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		return nil, false
	case List:
		v, ok := value.([]any)
		if !ok {
			return nil, false
		}
		return normalize(v).([]any), true
	case Dict:
		v, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		return normalize(v).(map[string]any), true
	case DateTime:
		switch v := value.(type) {
		case time.Time:
			return v, true
		case string:
			return parseTimestamp(v)
		}
		return nil, false
	default:
		return nil, false
	}
}

func toInt(value any) (any, bool) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		return nil, false
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
		return nil, false
	default:
		return nil, false
	}
}

func toFloat(value any) (any, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return nil, false
	}
}

// normalize replaces json.Number leaves inside containers with int64 or
// float64 so consumers never see decoder internals.
func normalize(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i, e := range v {
			v[i] = normalize(e)
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = normalize(e)
		}
		return v
	default:
		return value
	}
}

func parseTimestamp(s string) (any, bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return nil, false
}
