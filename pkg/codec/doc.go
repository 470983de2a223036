// Package codec encodes and decodes schema-described records to a directory
// of binary files.
//
// Every record type T owns a main file, T.bin, which is a plain concatenation
// of fixed-width inline regions, one per record, in insertion order. The width
// of the region is the sum of the field widths declared in the schema; values
// that do not fit inline live in side files and the region only stores a
// reference to them.
//
// # Field Strategies
//
// Each field of a schema.Schema selects one of four strategies:
//
//	inline  [value(width)]                  stored in T.bin
//	range   [offset(4|8)][length(4|8)]      bytes in an append-only blob file
//	trie    [id(4|8)]                       string interned in a trie file
//	nested  [offset(4|8)]                   full record in the nested type's file
//
// All integers are little-endian. Inline strings are cut to the slot width
// at a rune boundary and padded with NUL bytes; decoding strips trailing NULs.
// Inline byte slices must match the slot width exactly.
//
// Range fields append their bytes to the blob file once and write the
// resulting (offset,length) pair. An empty value is a zero-length entry, not
// a missing one. Blob files are never rewritten or compacted.
//
// Trie fields intern their string in a patricia.Trie persisted to the trie
// file and write the id of the node where the string ends. Ids are dense
// pre-order numbers and change whenever a new key changes the trie's shape.
// Encode interns every trie value of a batch before writing any record and
// renumbers once, so all ids written by one batch agree with the trie file
// flushed at the end of that batch. A later batch that adds keys may
// renumber the ids stored by earlier batches.
//
// Nested fields encode the nested record first, into the nested schema's own
// file, and store the byte offset where it starts. Schemas form a DAG, so the
// recursion is bounded by the schema depth; WithMaxDepth caps it further.
//
// # Usage
//
//	user := schema.New("User",
//	    schema.Inline("user_id", schema.String, 28),
//	    schema.Trie("user_name", 4, "UserNames.bin"),
//	)
//
//	err := codec.Encode(dir, user, []schema.Record{
//	    {"user_id": "U1", "user_name": "Alice"},
//	}, session.ModeAppend)
//	if err != nil {
//	    return err
//	}
//
//	it, err := codec.Decode(dir, user)
//	if err != nil {
//	    return err
//	}
//	defer it.Close()
//	for it.Next() {
//	    fmt.Println(it.Record().String("user_name"))
//	}
//	if err := it.Err(); err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Encoding checks every value against the schema before writing anything.
// A value of the wrong Go type fails the whole batch with ErrSchemaMismatch;
// I/O failures are wrapped in ErrIO. Nothing is retried or rolled back.
//
// Decoding treats incomplete data as the end of the sequence rather than an
// error: a trailing partial region in T.bin, a nested offset past the end of
// the entity file, or a range reaching past the end of its blob file all stop
// the iterator, and Iterator.Truncated reports it. A trie id with no matching
// key decodes to the empty string. Other I/O failures end the sequence with
// Iterator.Err set.
//
// # Thread Safety
//
// Encoders and iterators are not safe for concurrent use, and two writers
// must never target the same directory at the same time.
package codec
