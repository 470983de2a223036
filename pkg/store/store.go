// Package store is the entry point to a directory of schema-described record
// files. It wraps the codec with batch bookkeeping (an optional journal,
// metrics and logging), typed access through schema bindings, trie lookups
// and crash recovery.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssargent/recordstore/pkg/codec"
	"github.com/ssargent/recordstore/pkg/config"
	"github.com/ssargent/recordstore/pkg/journal"
	"github.com/ssargent/recordstore/pkg/patricia"
	"github.com/ssargent/recordstore/pkg/schema"
	"github.com/ssargent/recordstore/pkg/session"
)

// Store provides batch access to one data directory. Batches are serialized
// by a mutex; other processes must not write the same directory.
type Store struct {
	config  Config
	journal *journal.Journal
	logger  *zap.SugaredLogger
	mutex   sync.Mutex
	isOpen  bool
}

// FromConfig maps a loaded configuration file onto store settings
func FromConfig(c *config.Config, logger *zap.Logger) (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	mode, err := c.Mode()
	if err != nil {
		return Config{}, err
	}
	return Config{
		DataDir:  c.DataDir,
		Mode:     mode,
		MaxDepth: c.MaxDepth,
		Sync:     c.Sync,
		Journal:  c.Journal.Enabled,
		Logger:   logger,
	}, nil
}

// Open prepares the data directory and, when enabled, the batch journal.
func Open(cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("%w: data directory is empty", ErrInvalidInput)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}

	s := &Store{
		config: cfg,
		logger: cfg.Logger.Sugar(),
	}
	if cfg.Journal {
		j, err := journal.Open(cfg.DataDir, cfg.Logger)
		if err != nil {
			return nil, err
		}
		s.journal = j
	}
	s.isOpen = true
	s.logger.Debugw("opened store", "dir", cfg.DataDir, "mode", cfg.Mode.String(), "journal", cfg.Journal)
	return s, nil
}

// Dir returns the data directory
func (s *Store) Dir() string {
	return s.config.DataDir
}

// Journal returns the batch journal, or nil when it is disabled
func (s *Store) Journal() *journal.Journal {
	return s.journal
}

// Close shuts down the store
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil
	}
	s.isOpen = false

	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// Write appends records of sc using the configured write mode
func (s *Store) Write(sc *schema.Schema, records []schema.Record) error {
	return s.WriteMode(sc, records, s.config.Mode)
}

// WriteMode encodes records as one batch with an explicit mode.
func (s *Store) WriteMode(sc *schema.Schema, records []schema.Record, mode session.Mode) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ErrNotOpen
	}

	start := time.Now()
	err := s.writeBatch(sc, records, mode)
	s.config.Metrics.RecordBatch("write", err == nil, time.Since(start))
	if err != nil {
		s.logger.Errorw("write batch failed", "type", sc.Name, "records", len(records), "error", err)
		return err
	}
	s.logger.Infow("wrote batch", "type", sc.Name, "records", len(records),
		"mode", mode.String(), "duration", time.Since(start))
	return nil
}

func (s *Store) writeBatch(sc *schema.Schema, records []schema.Record, mode session.Mode) error {
	if s.journal == nil {
		return codec.Encode(s.config.DataDir, sc, records, mode, s.codecOptions()...)
	}

	before, err := s.fileSize(sc.FileName())
	if err != nil {
		return err
	}
	startSize := before
	if mode == session.ModeCreate {
		startSize = 0
	}

	id, err := s.journal.Begin(sc.Name, mode.String(), startSize)
	if err != nil {
		return err
	}
	if err := codec.Encode(s.config.DataDir, sc, records, mode, s.codecOptions()...); err != nil {
		// nothing reached the record file, so there is nothing to recover
		if size, serr := s.fileSize(sc.FileName()); serr == nil && size == before {
			return multierr.Append(err, s.journal.Abort(id))
		}
		s.logger.Warnw("batch left pending in journal", "batch", id.String(), "type", sc.Name)
		return err
	}

	endSize, err := s.fileSize(sc.FileName())
	if err != nil {
		return err
	}
	return s.journal.Commit(id, len(records), endSize)
}

// Read starts a read pass over every record of sc. The caller must drain or
// close the iterator.
func (s *Store) Read(sc *schema.Schema) (*codec.Iterator, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil, ErrNotOpen
	}
	return codec.Decode(s.config.DataDir, sc, s.codecOptions()...)
}

// ReadRecords drains a read pass into memory
func (s *Store) ReadRecords(sc *schema.Schema) (records []schema.Record, truncated bool, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil, false, ErrNotOpen
	}

	start := time.Now()
	records, truncated, err = codec.DecodeAll(s.config.DataDir, sc, s.codecOptions()...)
	s.config.Metrics.RecordBatch("read", err == nil, time.Since(start))
	return records, truncated, err
}

// Retrieve lists the keys of a trie file that start with prefix.
func (s *Store) Retrieve(trieFile, prefix string) ([]string, error) {
	var keys []string
	err := s.withTrie(trieFile, session.ModeRead, func(ft *patricia.FileTrie) error {
		keys = ft.Retrieve(prefix)
		return nil
	})
	return keys, err
}

// EncodeKey returns the id of key in a trie file, or patricia.NotFound
func (s *Store) EncodeKey(trieFile, key string) (int64, error) {
	id := patricia.NotFound
	err := s.withTrie(trieFile, session.ModeRead, func(ft *patricia.FileTrie) error {
		id = ft.Encode(key)
		return nil
	})
	return id, err
}

// DecodeKey resolves an id of a trie file
func (s *Store) DecodeKey(trieFile string, id int64) (string, bool, error) {
	var (
		key string
		ok  bool
	)
	err := s.withTrie(trieFile, session.ModeRead, func(ft *patricia.FileTrie) error {
		key, ok = ft.Decode(id)
		return nil
	})
	return key, ok, err
}

// DumpTrie renders a trie file as an indented tree
func (s *Store) DumpTrie(trieFile string) (string, error) {
	var out string
	err := s.withTrie(trieFile, session.ModeRead, func(ft *patricia.FileTrie) error {
		out = ft.Trie().PrettyString()
		return nil
	})
	return out, err
}

// MergeTrie merges the keys of the trie file at srcPath into trieFile and
// returns how many keys were new. Ids stored in records that reference
// trieFile are invalidated when keys are added.
func (s *Store) MergeTrie(trieFile, srcPath string) (int, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return 0, err
	}
	src, partial, err := patricia.UnmarshalTrie(data)
	if err != nil {
		return 0, err
	}
	if partial {
		s.logger.Warnw("merging a partially readable trie", "path", srcPath, "keys", src.Len())
	}

	added := 0
	err = s.withTrie(trieFile, session.ModeOpen, func(ft *patricia.FileTrie) error {
		added = ft.MergeTrie(src)
		return ft.Flush()
	})
	return added, err
}

func (s *Store) withTrie(trieFile string, mode session.Mode, fn func(*patricia.FileTrie) error) (err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ErrNotOpen
	}

	sess, err := session.New(s.config.DataDir, session.WithLogger(s.config.Logger))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.CloseAll(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ft, err := patricia.OpenFile(sess, trieFile, mode, s.config.Logger)
	if err != nil {
		return err
	}
	return fn(ft)
}

// Stats returns size information for sc and every file it references
func (s *Store) Stats(sc *schema.Schema) (*Stats, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil, ErrNotOpen
	}

	size, err := s.fileSize(sc.FileName())
	if err != nil {
		return nil, err
	}
	width := int64(sc.Width())
	st := &Stats{
		Type:          sc.Name,
		Width:         sc.Width(),
		Records:       size / width,
		TrailingBytes: size % width,
		Files:         make(map[string]int64),
	}
	for _, name := range referencedFiles(sc) {
		n, err := s.fileSize(name)
		if err != nil {
			return nil, err
		}
		st.Files[name] = n
	}
	if s.journal != nil {
		pending, err := s.journal.Pending(sc.Name)
		if err != nil {
			return nil, err
		}
		st.PendingWrites = len(pending)
	}
	return st, nil
}

func (s *Store) codecOptions() []codec.Option {
	return []codec.Option{
		codec.WithLogger(s.config.Logger),
		codec.WithMetrics(s.config.Metrics),
		codec.WithMaxDepth(s.config.MaxDepth),
		codec.WithSync(s.config.Sync),
	}
}

// fileSize returns 0 for files that do not exist yet
func (s *Store) fileSize(name string) (int64, error) {
	info, err := os.Stat(filepath.Join(s.config.DataDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// recordSchemas returns sc and every schema it nests, each once, root first
func recordSchemas(sc *schema.Schema) []*schema.Schema {
	var out []*schema.Schema
	seen := make(map[string]bool)
	var visit func(*schema.Schema)
	visit = func(cur *schema.Schema) {
		if seen[cur.Name] {
			return
		}
		seen[cur.Name] = true
		out = append(out, cur)
		for _, f := range cur.Fields {
			if f.Kind == schema.KindNested {
				visit(f.Nested)
			}
		}
	}
	visit(sc)
	return out
}

// referencedFiles lists every file a read of sc may open
func referencedFiles(sc *schema.Schema) []string {
	var files []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			files = append(files, name)
		}
	}
	for _, cur := range recordSchemas(sc) {
		add(cur.FileName())
		for _, f := range cur.Fields {
			if f.Kind == schema.KindRange || f.Kind == schema.KindTrie {
				add(f.File)
			}
		}
	}
	return files
}
