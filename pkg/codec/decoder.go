package codec

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssargent/recordstore/pkg/blob"
	"github.com/ssargent/recordstore/pkg/metrics"
	"github.com/ssargent/recordstore/pkg/patricia"
	"github.com/ssargent/recordstore/pkg/schema"
	"github.com/ssargent/recordstore/pkg/session"
)

// Iterator streams the records of one type in file order. Files are opened
// lazily and released when the sequence ends or Close is called. Callers that
// stop early must call Close.
type Iterator struct {
	sess     *session.Session
	schema   *schema.Schema
	main     *session.File
	pos      int64
	record   schema.Record
	count    int
	err      error
	done     bool
	trunc    bool
	tries    map[string]*patricia.FileTrie
	blobs    map[string]*blob.Store
	logger   *zap.SugaredLogger
	rawLog   *zap.Logger
	metrics  *metrics.Metrics
	maxDepth int
}

// Decode opens a fresh read pass over the records of s stored in dir. A
// missing record file reads as empty.
func Decode(dir string, s *schema.Schema, opts ...Option) (*Iterator, error) {
	o := buildOptions(opts)
	if d := s.Depth(); d > o.maxDepth {
		return nil, fmt.Errorf("%w: %s spans %d levels, limit %d", ErrDepthExceeded, s.Name, d, o.maxDepth)
	}

	sess, err := session.New(dir, session.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	main, err := sess.Open(s.FileName(), session.ModeRead)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("%w: %w", ErrIO, err), sess.CloseAll())
	}

	return &Iterator{
		sess:     sess,
		schema:   s,
		main:     main,
		tries:    make(map[string]*patricia.FileTrie),
		blobs:    make(map[string]*blob.Store),
		logger:   o.logger.Sugar(),
		rawLog:   o.logger,
		metrics:  o.metrics,
		maxDepth: o.maxDepth,
	}, nil
}

// DecodeAll drains a read pass. truncated reports whether the sequence
// stopped at an incomplete record.
func DecodeAll(dir string, s *schema.Schema, opts ...Option) (records []schema.Record, truncated bool, err error) {
	it, err := Decode(dir, s, opts...)
	if err != nil {
		return nil, false, err
	}
	for it.Next() {
		records = append(records, it.Record())
	}
	err = multierr.Append(it.Err(), it.Close())
	return records, it.Truncated(), err
}

// Next advances to the next record. It returns false at the end of the file,
// at the first incomplete record, or on a fatal error reported by Err.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}

	width := int64(it.schema.Width())
	size := it.main.Size()
	if it.pos >= size {
		it.finish()
		return false
	}
	if it.pos+width > size {
		it.truncated(fmt.Errorf("%w: %s has %d trailing bytes at offset %d",
			ErrTruncatedRecord, it.schema.FileName(), size-it.pos, it.pos))
		return false
	}

	rec, err := it.readAt(it.schema, it.main, it.pos, 1)
	if err != nil {
		if errors.Is(err, ErrTruncatedRecord) {
			it.truncated(err)
		} else {
			it.err = err
			it.finish()
		}
		return false
	}

	it.pos += width
	it.count++
	it.record = rec
	return true
}

// Record returns the current record
func (it *Iterator) Record() schema.Record {
	return it.record
}

// Err returns the fatal error that ended the sequence, if any. Truncation is
// not an error.
func (it *Iterator) Err() error {
	return it.err
}

// Truncated reports whether the sequence ended at an incomplete record
func (it *Iterator) Truncated() bool {
	return it.trunc
}

// Count returns the number of records produced so far
func (it *Iterator) Count() int {
	return it.count
}

// Offset is the byte position of the next record in the main file
func (it *Iterator) Offset() int64 {
	return it.pos
}

// Close releases every file of the read pass. It is safe to call more than once.
func (it *Iterator) Close() error {
	it.done = true
	it.record = nil
	if err := it.sess.CloseAll(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (it *Iterator) truncated(err error) {
	it.trunc = true
	it.metrics.DecodeTruncated(it.schema.Name)
	it.logger.Warnw("record stream ends with an incomplete record",
		"type", it.schema.Name, "offset", it.pos, "records", it.count, "reason", err.Error())
	it.finish()
}

func (it *Iterator) finish() {
	it.done = true
	if err := it.Close(); err != nil && it.err == nil {
		it.err = err
	}
	it.record = nil
}

// readAt decodes one record of s stored at off in f.
func (it *Iterator) readAt(s *schema.Schema, f *session.File, off int64, depth int) (schema.Record, error) {
	if depth > it.maxDepth {
		return nil, fmt.Errorf("%w: %s at level %d", ErrDepthExceeded, s.Name, depth)
	}

	buf := make([]byte, s.Width())
	if off < 0 || off+int64(len(buf)) > f.Size() {
		return nil, fmt.Errorf("%w: %s offset %d beyond end %d", ErrTruncatedRecord, s.FileName(), off, f.Size())
	}
	if _, err := f.ReadAt(buf, off); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s at %d: %w", ErrTruncatedRecord, s.FileName(), off, err)
		}
		return nil, fmt.Errorf("%w: read %s at %d: %w", ErrIO, s.FileName(), off, err)
	}

	rec := make(schema.Record, len(s.Fields))
	for _, fd := range s.Fields {
		slot := buf[fd.Offset : fd.Offset+fd.Width]

		switch fd.Kind {
		case schema.KindInline:
			v, err := readInline(slot, fd)
			if err != nil {
				return nil, err
			}
			rec[fd.Name] = v

		case schema.KindRange:
			ref, err := blob.ParseRef(slot)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrSchemaMismatch, fd.Name, err)
			}
			store, err := it.blob(fd.File)
			if err != nil {
				return nil, err
			}
			data, err := store.Read(ref)
			if err != nil {
				if errors.Is(err, blob.ErrOutOfRange) {
					return nil, fmt.Errorf("%w: %s: %w", ErrTruncatedRecord, fd.Name, err)
				}
				return nil, fmt.Errorf("%w: %w", ErrIO, err)
			}
			switch {
			case fd.Type == schema.String:
				rec[fd.Name] = string(data)
			case len(data) == 0:
				// nil and empty input share one slot; decode both as nil
				rec[fd.Name] = []byte(nil)
			default:
				rec[fd.Name] = data
			}

		case schema.KindTrie:
			ft, err := it.trie(fd.File)
			if err != nil {
				return nil, err
			}
			id := readID(slot)
			key, ok := ft.Decode(int64(id))
			if !ok {
				it.metrics.TrieIDMissing(fd.File)
				it.logger.Debugw("trie id not found, using empty string",
					"type", s.Name, "field", fd.Name, "file", fd.File, "id", id)
			}
			rec[fd.Name] = key

		case schema.KindNested:
			nf, err := it.sess.Open(fd.File, session.ModeRead)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIO, err)
			}
			nested, err := it.readAt(fd.Nested, nf, int64(readID(slot)), depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fd.Name, err)
			}
			rec[fd.Name] = nested
		}
	}

	it.metrics.RecordDecoded(s.Name)
	return rec, nil
}

func (it *Iterator) trie(file string) (*patricia.FileTrie, error) {
	if ft, ok := it.tries[file]; ok {
		return ft, nil
	}
	ft, err := patricia.OpenFile(it.sess, file, session.ModeRead, it.rawLog)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	it.tries[file] = ft
	return ft, nil
}

func (it *Iterator) blob(file string) (*blob.Store, error) {
	if b, ok := it.blobs[file]; ok {
		return b, nil
	}
	b, err := blob.Open(it.sess, file, session.ModeRead)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	it.blobs[file] = b
	return b, nil
}
