package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AssignsOffsets(t *testing.T) {
	user := New("User",
		Inline("user_id", String, 28),
		Trie("user_name", 4, "UserNames.bin"),
	)

	assert.Equal(t, 32, user.Width())
	assert.Equal(t, "User.bin", user.FileName())

	f, ok := user.Field("user_name")
	require.True(t, ok)
	assert.Equal(t, 28, f.Offset)
	assert.Equal(t, KindTrie, f.Kind)

	_, ok = user.Field("missing")
	assert.False(t, ok)
}

func TestNested_UsesEntityFile(t *testing.T) {
	inner := New("Inner", Inline("id", Int32, 4))
	outer := New("Outer", Nested("inner", 4, inner), Inline("n", Int64, 8))

	f, ok := outer.Field("inner")
	require.True(t, ok)
	assert.Equal(t, "Inner.bin", f.File)
	assert.Equal(t, 12, outer.Width())
	assert.Equal(t, 2, outer.Depth())
}

func TestBuild_Rejects(t *testing.T) {
	testCases := []struct {
		name   string
		fields []Field
	}{
		{"zero width inline", []Field{Inline("a", String, 0)}},
		{"int32 with width 8", []Field{Inline("a", Int32, 8)}},
		{"bool with width 2", []Field{Inline("a", Bool, 2)}},
		{"range width 12", []Field{Range("a", String, 12, "blob.bin")}},
		{"range of int", []Field{Range("a", Int32, 8, "blob.bin")}},
		{"range without file", []Field{Range("a", String, 8, "")}},
		{"trie width 2", []Field{Trie("a", 2, "t.bin")}},
		{"trie without file", []Field{Trie("a", 4, "")}},
		{"nested without schema", []Field{Nested("a", 4, nil)}},
		{"nested width 3", []Field{Nested("a", 3, New("X", Inline("x", Bool, 1)))}},
		{"duplicate names", []Field{Inline("a", Bool, 1), Inline("a", Bool, 1)}},
		{"unnamed field", []Field{Inline("", Bool, 1)}},
		{"blob in record file", []Field{Inline("id", Int32, 4), Range("note", String, 8, "T.bin")}},
		{"trie in record file", []Field{Trie("name", 4, "T.bin")}},
		{"blob and trie share a file", []Field{Range("note", String, 8, "shared.bin"), Trie("name", 4, "shared.bin")}},
		{"blob in nested record file", []Field{
			Range("note", String, 8, "Inner.bin"),
			Nested("inner", 4, New("Inner", Inline("x", Bool, 1))),
		}},
		{"trie in nested record file", []Field{
			Nested("inner", 4, New("Inner", Trie("name", 4, "Names.bin"))),
			Nested("other", 4, New("Other", Trie("name", 4, "Inner.bin"))),
		}},
		{"two schemas share a record file", []Field{
			Nested("a", 4, New("Inner", Inline("x", Bool, 1))),
			Nested("b", 4, New("Inner", Inline("y", Int32, 4))),
		}},
		{"nested schema named like the root", []Field{Nested("self", 4, New("T", Inline("x", Bool, 1)))}},
		{"nested entity file mismatch", []Field{{Name: "a", Kind: KindNested, Width: 4, Nested: New("X", Inline("x", Bool, 1)), File: "Y.bin"}}},
		{"blob file leaves the directory", []Field{Range("a", String, 8, "../outside.bin")}},
		{"trie file in a subdirectory", []Field{Trie("a", 4, "sub/names.bin")}},
		{"blob file with a backslash", []Field{Range("a", Bytes, 16, `..\outside.bin`)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build("T", tc.fields...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSchema), "got %v", err)
		})
	}
}

func TestBuild_AcceptsSharedFiles(t *testing.T) {
	inner := New("Inner", Range("body", String, 8, "Strings.bin"), Trie("tag", 4, "Tags.bin"))

	testCases := []struct {
		name   string
		fields []Field
	}{
		{"blob shared by fields", []Field{Range("a", String, 8, "Strings.bin"), Range("b", Bytes, 16, "Strings.bin")}},
		{"trie shared by fields", []Field{Trie("a", 4, "Tags.bin"), Trie("b", 8, "Tags.bin")}},
		{"same schema nested twice", []Field{Nested("first", 4, inner), Nested("second", 8, inner)}},
		{"blob shared with nested schema", []Field{Range("a", String, 8, "Strings.bin"), Nested("inner", 4, inner)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build("T", tc.fields...)
			assert.NoError(t, err)
		})
	}
}

func TestBuild_RejectsBadNames(t *testing.T) {
	_, err := Build("", Inline("a", Bool, 1))
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = Build("../escape", Inline("a", Bool, 1))
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestValidate_DetectsCycles(t *testing.T) {
	node := &Schema{Name: "Node"}
	node.Fields = []Field{
		{Name: "next", Kind: KindNested, Width: 4, Nested: node, File: "Node.bin"},
	}
	node.width = 4

	err := node.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSchema)
	assert.Contains(t, err.Error(), "nests itself")
}

func TestValidate_DetectsTamperedOffsets(t *testing.T) {
	s := New("T", Inline("a", Int32, 4), Inline("b", Int32, 4))
	s.Fields[1].Offset = 6

	assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)
}

func TestNew_PanicsOnInvalidSchema(t *testing.T) {
	assert.Panics(t, func() {
		New("T", Inline("a", Int64, 4))
	})
}

func TestRecordAccessors(t *testing.T) {
	r := Record{
		"name":  "Alice",
		"count": int32(3),
		"inner": Record{"id": "x"},
	}

	assert.Equal(t, "Alice", r.String("name"))
	assert.Equal(t, "", r.String("count"))
	assert.Equal(t, "x", r.Nested("inner").String("id"))
	assert.Nil(t, r.Nested("name"))
}

func TestDescribe(t *testing.T) {
	inner := New("Inner", Inline("id", Int32, 4))
	s := New("T", Range("title", String, 8, "Strings.bin"), Nested("inner", 4, inner))

	lines := s.Describe()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "file=Strings.bin")
	assert.Contains(t, lines[1], "Inner")
}
