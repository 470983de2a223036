package codec

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssargent/recordstore/pkg/blob"
	"github.com/ssargent/recordstore/pkg/metrics"
	"github.com/ssargent/recordstore/pkg/patricia"
	"github.com/ssargent/recordstore/pkg/schema"
	"github.com/ssargent/recordstore/pkg/session"
)

// Encoder writes records of one batch through a session
type Encoder struct {
	sess     *session.Session
	mode     session.Mode
	tries    map[string]*patricia.FileTrie
	blobs    map[string]*blob.Store
	logger   *zap.SugaredLogger
	rawLog   *zap.Logger
	metrics  *metrics.Metrics
	maxDepth int
}

// NewEncoder returns an encoder writing through sess. Record files (the main
// file and nested entity files) are opened with mode; blob and trie files are
// always extended.
func NewEncoder(sess *session.Session, mode session.Mode, opts ...Option) *Encoder {
	o := buildOptions(opts)
	return &Encoder{
		sess:     sess,
		mode:     mode,
		tries:    make(map[string]*patricia.FileTrie),
		blobs:    make(map[string]*blob.Store),
		logger:   o.logger.Sugar(),
		rawLog:   o.logger,
		metrics:  o.metrics,
		maxDepth: o.maxDepth,
	}
}

// Encode writes records of schema s to dir as one batch and closes every file
// it opened before returning.
func Encode(dir string, s *schema.Schema, records []schema.Record, mode session.Mode, opts ...Option) (err error) {
	o := buildOptions(opts)
	sess, err := session.New(dir, session.WithLogger(o.logger), session.WithSync(o.sync))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if cerr := sess.CloseAll(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %w", ErrIO, cerr))
		}
	}()

	return NewEncoder(sess, mode, opts...).Write(s, records)
}

// Write encodes records in order. Every value is checked against the schema
// before anything is written, so a mismatch leaves all files untouched.
//
// Trie values of the whole call are interned first and the tries renumbered
// once, so the ids written by one call are consistent with the trie files
// flushed when the session closes. A second Write on the same session may
// renumber ids written by the first.
func (e *Encoder) Write(s *schema.Schema, records []schema.Record) error {
	if d := s.Depth(); d > e.maxDepth {
		return fmt.Errorf("%w: %s spans %d levels, limit %d", ErrDepthExceeded, s.Name, d, e.maxDepth)
	}

	keys := make(map[string][]string)
	for i, rec := range records {
		if err := collect(s, rec, keys); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	// create mode truncates even when the batch is empty
	for _, sc := range recordSchemas(s) {
		if _, err := e.sess.Open(sc.FileName(), e.mode); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}

	for file, values := range keys {
		ft, err := e.trie(file)
		if err != nil {
			return err
		}
		for _, v := range values {
			if ft.Add(v) {
				e.metrics.TrieKeyInserted(file)
			}
		}
		ft.Renumber()
	}

	for i, rec := range records {
		if _, err := e.write(s, rec, 1); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	e.logger.Debugw("encoded batch", "type", s.Name, "records", len(records), "mode", e.mode.String())
	return nil
}

// recordSchemas lists s and every schema it nests, each once.
func recordSchemas(s *schema.Schema) []*schema.Schema {
	var out []*schema.Schema
	seen := make(map[*schema.Schema]bool)
	var walk func(sc *schema.Schema)
	walk = func(sc *schema.Schema) {
		if seen[sc] {
			return
		}
		seen[sc] = true
		out = append(out, sc)
		for _, f := range sc.Fields {
			if f.Kind == schema.KindNested {
				walk(f.Nested)
			}
		}
	}
	walk(s)
	return out
}

// collect validates rec against s and gathers trie values per trie file.
func collect(s *schema.Schema, rec schema.Record, keys map[string][]string) error {
	for _, f := range s.Fields {
		v := rec[f.Name]
		switch f.Kind {
		case schema.KindInline:
			if err := putInline(make([]byte, f.Width), f, v); err != nil {
				return err
			}
		case schema.KindRange:
			if _, err := rangeBytes(f, v); err != nil {
				return err
			}
		case schema.KindTrie:
			str, err := trieString(f, v)
			if err != nil {
				return err
			}
			keys[f.File] = append(keys[f.File], str)
		case schema.KindNested:
			nested, err := nestedRecord(f, v)
			if err != nil {
				return err
			}
			if err := collect(f.Nested, nested, keys); err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
		}
	}
	return nil
}

// write encodes one record of s and returns its offset in s's file.
func (e *Encoder) write(s *schema.Schema, rec schema.Record, depth int) (int64, error) {
	if depth > e.maxDepth {
		return 0, fmt.Errorf("%w: %s at level %d", ErrDepthExceeded, s.Name, depth)
	}

	buf := make([]byte, s.Width())
	for _, f := range s.Fields {
		slot := buf[f.Offset : f.Offset+f.Width]
		v := rec[f.Name]

		switch f.Kind {
		case schema.KindInline:
			if err := putInline(slot, f, v); err != nil {
				return 0, err
			}

		case schema.KindRange:
			data, err := rangeBytes(f, v)
			if err != nil {
				return 0, err
			}
			store, err := e.blob(f.File)
			if err != nil {
				return 0, err
			}
			ref, err := store.Append(data)
			if err != nil {
				return 0, fmt.Errorf("%w: %w", ErrIO, err)
			}
			if err := blob.PutRef(slot, ref); err != nil {
				return 0, fmt.Errorf("%w: %s: %w", ErrSchemaMismatch, f.Name, err)
			}
			e.metrics.BlobAppended(f.File, len(data))

		case schema.KindTrie:
			str, err := trieString(f, v)
			if err != nil {
				return 0, err
			}
			ft, err := e.trie(f.File)
			if err != nil {
				return 0, err
			}
			id := ft.Encode(str)
			if id == patricia.NotFound {
				// keys are interned before writing starts
				return 0, fmt.Errorf("%w: %q missing from %s", ErrSchemaMismatch, str, f.File)
			}
			if err := putID(slot, f, uint64(id)); err != nil {
				return 0, err
			}

		case schema.KindNested:
			nested, err := nestedRecord(f, v)
			if err != nil {
				return 0, err
			}
			off, err := e.write(f.Nested, nested, depth+1)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", f.Name, err)
			}
			if err := putID(slot, f, uint64(off)); err != nil {
				return 0, err
			}
		}
	}

	main, err := e.sess.Open(s.FileName(), e.mode)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	off := main.Size()
	if _, err := main.Write(buf); err != nil {
		return 0, fmt.Errorf("%w: write %s: %w", ErrIO, s.FileName(), err)
	}
	e.metrics.RecordEncoded(s.Name)
	return off, nil
}

func (e *Encoder) trie(file string) (*patricia.FileTrie, error) {
	if ft, ok := e.tries[file]; ok {
		return ft, nil
	}
	ft, err := patricia.OpenFile(e.sess, file, session.ModeOpen, e.rawLog)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	e.tries[file] = ft
	e.sess.OnClose(ft.Flush)
	return ft, nil
}

func (e *Encoder) blob(file string) (*blob.Store, error) {
	if b, ok := e.blobs[file]; ok {
		return b, nil
	}
	b, err := blob.Open(e.sess, file, session.ModeAppend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	e.blobs[file] = b
	return b, nil
}

func rangeBytes(f schema.Field, v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if f.Type == schema.String {
			return []byte(x), nil
		}
	case []byte:
		if f.Type == schema.Bytes {
			return x, nil
		}
	}
	return nil, mismatch(f, v)
}

func trieString(f schema.Field, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	}
	return "", mismatch(f, v)
}

func nestedRecord(f schema.Field, v any) (schema.Record, error) {
	switch x := v.(type) {
	case nil:
		return schema.Record{}, nil
	case schema.Record:
		return x, nil
	case map[string]any:
		return schema.Record(x), nil
	}
	return nil, fmt.Errorf("%w: %s is a nested %s, got %T", ErrSchemaMismatch, f.Name, f.Nested.Name, v)
}
