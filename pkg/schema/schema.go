// Package schema describes how a record type is laid out on disk.
//
// A Schema is an ordered list of fields. Every field owns a fixed slot in the
// record's inline region; the Kind of the field decides what that slot holds:
// the value itself, an (offset,length) pair into a blob file, a trie node id,
// or the byte offset of a nested record in another schema's file.
package schema

import (
	"fmt"
	"strings"
)

// Kind selects the storage strategy of a field
type Kind uint8

const (
	// KindInline stores the value directly in the record's own stream
	KindInline Kind = iota
	// KindRange stores an (offset,length) pair pointing into a blob file
	KindRange
	// KindTrie stores the id of a node in a persistent trie file
	KindTrie
	// KindNested stores the byte offset of a record in the nested schema's file
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindRange:
		return "range"
	case KindTrie:
		return "trie"
	case KindNested:
		return "nested"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ValueType is the Go-level type held by an inline or range field
type ValueType uint8

const (
	String ValueType = iota
	Bytes
	Bool
	Int32
	Int64
	Uint32
	Uint64
	Float32
	Float64
)

func (t ValueType) String() string {
	switch t {
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Size returns the natural width of fixed-size types, or 0 for String and Bytes.
func (t ValueType) Size() int {
	switch t {
	case Bool:
		return 1
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// Field is one entry of a Schema
type Field struct {
	Name   string
	Kind   Kind
	Type   ValueType // value type for inline and range fields; String for trie fields
	Offset int       // position of the slot inside the inline region
	Width  int       // size of the slot in bytes
	File   string    // blob file (range), trie file (trie) or entity file (nested)
	Nested *Schema   // nested schema, KindNested only
}

// Schema is the static layout of one record type. It is immutable once built.
type Schema struct {
	Name   string
	Fields []Field
	width  int
}

// Inline declares a field stored directly in the record stream.
func Inline(name string, typ ValueType, width int) Field {
	return Field{Name: name, Kind: KindInline, Type: typ, Width: width}
}

// Range declares a field whose bytes live in blobFile, referenced by an
// (offset,length) pair of the given width (8 or 16).
func Range(name string, typ ValueType, width int, blobFile string) Field {
	return Field{Name: name, Kind: KindRange, Type: typ, Width: width, File: blobFile}
}

// Trie declares a string field interned in trieFile and referenced by node id.
func Trie(name string, width int, trieFile string) Field {
	return Field{Name: name, Kind: KindTrie, Type: String, Width: width, File: trieFile}
}

// Nested declares a field holding a full record of another schema, stored in
// that schema's own file and referenced by offset.
func Nested(name string, width int, nested *Schema) Field {
	f := Field{Name: name, Kind: KindNested, Width: width, Nested: nested}
	if nested != nil {
		f.File = nested.FileName()
	}
	return f
}

// New builds a schema, assigning offsets as the running sum of field widths.
// It panics when the result does not validate, since schemas are declared
// statically and a broken one is a programming error.
func New(name string, fields ...Field) *Schema {
	s, err := Build(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Build is New without the panic.
func Build(name string, fields ...Field) (*Schema, error) {
	s := &Schema{Name: name, Fields: make([]Field, len(fields))}
	off := 0
	for i, f := range fields {
		f.Offset = off
		off += f.Width
		s.Fields[i] = f
	}
	s.width = off
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Width is the fixed size of one record's inline region
func (s *Schema) Width() int {
	return s.width
}

// FileName is the main record file of this type
func (s *Schema) FileName() string {
	return s.Name + ".bin"
}

// Field looks a field up by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Depth returns the number of schema levels, counting this one.
func (s *Schema) Depth() int {
	depth := 1
	for _, f := range s.Fields {
		if f.Kind == KindNested && f.Nested != nil {
			if d := f.Nested.Depth() + 1; d > depth {
				depth = d
			}
		}
	}
	return depth
}

// Validate checks the layout invariants of the schema and everything it nests.
func (s *Schema) Validate() error {
	if err := s.validate(nil); err != nil {
		return err
	}
	return s.checkFiles()
}

// checkFiles makes sure every backing file in the graph serves one role.
// Record files belong to exactly one schema; blob and trie files may be
// shared by fields of the same kind only.
func (s *Schema) checkFiles() error {
	records := make(map[string]*Schema)
	blobs := make(map[string]string)
	tries := make(map[string]string)

	var walk func(sc *Schema) error
	walk = func(sc *Schema) error {
		if owner, ok := records[sc.FileName()]; ok {
			if owner != sc {
				return fmt.Errorf("%w: two %s schemas share %s", ErrInvalidSchema, sc.Name, sc.FileName())
			}
			return nil
		}
		records[sc.FileName()] = sc
		for _, f := range sc.Fields {
			switch f.Kind {
			case KindRange:
				blobs[f.File] = sc.Name + "." + f.Name
			case KindTrie:
				tries[f.File] = sc.Name + "." + f.Name
			case KindNested:
				if err := walk(f.Nested); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(s); err != nil {
		return err
	}

	for file, field := range blobs {
		if _, ok := tries[file]; ok {
			return fmt.Errorf("%w: %s: %s is also a trie file", ErrInvalidSchema, field, file)
		}
		if _, ok := records[file]; ok {
			return fmt.Errorf("%w: %s: %s is also a record file", ErrInvalidSchema, field, file)
		}
	}
	for file, field := range tries {
		if _, ok := records[file]; ok {
			return fmt.Errorf("%w: %s: %s is also a record file", ErrInvalidSchema, field, file)
		}
	}
	return nil
}

func (s *Schema) validate(path []*Schema) error {
	if s.Name == "" {
		return fmt.Errorf("%w: schema name is empty", ErrInvalidSchema)
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("%w: schema name %q contains a path separator", ErrInvalidSchema, s.Name)
	}
	for _, p := range path {
		if p == s {
			return fmt.Errorf("%w: %s nests itself", ErrInvalidSchema, s.Name)
		}
	}
	path = append(path, s)

	seen := make(map[string]struct{}, len(s.Fields))
	off := 0
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s has a field without a name", ErrInvalidSchema, s.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s.%s declared twice", ErrInvalidSchema, s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Offset != off {
			return fmt.Errorf("%w: %s.%s at offset %d, want %d", ErrInvalidSchema, s.Name, f.Name, f.Offset, off)
		}
		off += f.Width

		if err := validateField(s, f); err != nil {
			return err
		}
		if f.Kind == KindNested {
			if err := f.Nested.validate(path); err != nil {
				return err
			}
		}
	}
	if off != s.width {
		return fmt.Errorf("%w: %s width %d does not match fields (%d)", ErrInvalidSchema, s.Name, s.width, off)
	}
	return nil
}

func validateField(s *Schema, f Field) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s.%s: %s", ErrInvalidSchema, s.Name, f.Name, fmt.Sprintf(format, args...))
	}

	switch f.Kind {
	case KindInline:
		if f.Width <= 0 {
			return bad("width must be positive")
		}
		if n := f.Type.Size(); n != 0 && n != f.Width {
			return bad("%s needs width %d, got %d", f.Type, n, f.Width)
		}
		if f.Type > Float64 {
			return bad("unknown value type %d", f.Type)
		}
	case KindRange:
		if f.Width != 8 && f.Width != 16 {
			return bad("range width must be 8 or 16, got %d", f.Width)
		}
		if f.Type != String && f.Type != Bytes {
			return bad("range fields hold string or bytes, not %s", f.Type)
		}
		if f.File == "" {
			return bad("missing blob file")
		}
	case KindTrie:
		if f.Width != 4 && f.Width != 8 {
			return bad("trie id width must be 4 or 8, got %d", f.Width)
		}
		if f.Type != String {
			return bad("trie fields hold strings")
		}
		if f.File == "" {
			return bad("missing trie file")
		}
	case KindNested:
		if f.Width != 4 && f.Width != 8 {
			return bad("entity offset width must be 4 or 8, got %d", f.Width)
		}
		if f.Nested == nil {
			return bad("missing nested schema")
		}
		if f.File != f.Nested.FileName() {
			return bad("entity file %q, want %q", f.File, f.Nested.FileName())
		}
	default:
		return bad("unknown kind %s", f.Kind)
	}
	if strings.ContainsAny(f.File, `/\`) {
		return bad("file %q contains a path separator", f.File)
	}
	return nil
}
