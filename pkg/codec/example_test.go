package codec_test

import (
	"fmt"
	"log"
	"os"

	"github.com/ssargent/recordstore/pkg/codec"
	"github.com/ssargent/recordstore/pkg/schema"
	"github.com/ssargent/recordstore/pkg/session"
)

// ExampleEncode demonstrates writing and reading back a small batch
func ExampleEncode() {
	dir, err := os.MkdirTemp("", "codec_example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	user := schema.New("User",
		schema.Inline("user_id", schema.String, 8),
		schema.Trie("user_name", 4, "UserNames.bin"),
		schema.Range("bio", schema.String, 8, "Strings.bin"),
	)

	records := []schema.Record{
		{"user_id": "U1", "user_name": "Bob", "bio": "likes tries"},
		{"user_id": "U2", "user_name": "Bobby", "bio": ""},
		{"user_id": "U3", "user_name": "Alice", "bio": "writes codecs"},
	}
	if err := codec.Encode(dir, user, records, session.ModeAppend); err != nil {
		log.Fatal(err)
	}

	it, err := codec.Decode(dir, user)
	if err != nil {
		log.Fatal(err)
	}
	defer it.Close()

	for it.Next() {
		r := it.Record()
		fmt.Printf("%s %s %q\n", r.String("user_id"), r.String("user_name"), r.String("bio"))
	}
	if err := it.Err(); err != nil {
		log.Fatal(err)
	}

	// Output:
	// U1 Bob "likes tries"
	// U2 Bobby ""
	// U3 Alice "writes codecs"
}

// ExampleIterator_Truncated demonstrates how a torn write is reported
func ExampleIterator_Truncated() {
	dir, err := os.MkdirTemp("", "codec_example_truncated")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	point := schema.New("Point",
		schema.Inline("x", schema.Int32, 4),
		schema.Inline("y", schema.Int32, 4),
	)
	records := []schema.Record{{"x": 1, "y": 2}, {"x": 3, "y": 4}}
	if err := codec.Encode(dir, point, records, session.ModeAppend); err != nil {
		log.Fatal(err)
	}

	// simulate a crash in the middle of the second record
	if err := os.Truncate(dir+"/Point.bin", 12); err != nil {
		log.Fatal(err)
	}

	got, truncated, err := codec.DecodeAll(dir, point)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("records=%d truncated=%v first=(%d,%d)\n", len(got), truncated, got[0]["x"], got[0]["y"])

	// Output:
	// records=1 truncated=true first=(1,2)
}
