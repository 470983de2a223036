package schema

import "fmt"

// Record maps field names to values. Nested entity fields hold a Record of
// the nested schema.
//
// Decoded values use these Go types: String -> string, Bytes -> []byte,
// Bool -> bool, Int32 -> int32, Int64 -> int64, Uint32 -> uint32,
// Uint64 -> uint64, Float32 -> float32, Float64 -> float64.
type Record map[string]any

// String returns the string stored under name, or "" when absent or not a string.
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// Nested returns the nested record stored under name.
func (r Record) Nested(name string) Record {
	n, _ := r[name].(Record)
	return n
}

// Binding ties a schema to a Go type. Flatten turns a value into a Record for
// encoding; Build assembles a value from a decoded Record.
type Binding[T any] struct {
	Schema  *Schema
	Flatten func(T) (Record, error)
	Build   func(Record) (T, error)
}

// SchemaError reports a malformed schema
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string {
	return e.Message
}

var (
	ErrInvalidSchema = &SchemaError{"invalid schema"}
)

// Describe renders the layout as one line per field, used by CLI tooling.
func (s *Schema) Describe() []string {
	lines := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		typ := f.Type.String()
		if f.Kind == KindNested {
			typ = f.Nested.Name
		}
		line := fmt.Sprintf("%-24s %-6s %-7s off=%-4d width=%-3d", f.Name, f.Kind, typ, f.Offset, f.Width)
		if f.File != "" {
			line += " file=" + f.File
		}
		lines = append(lines, line)
	}
	return lines
}
