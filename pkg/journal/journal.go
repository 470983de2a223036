// Package journal keeps a small manifest of write batches next to the record
// files. A batch is begun before the first byte is written and committed
// after its session closes; batches that never commit mark the directory as
// possibly holding a torn write, which the store's recovery can repair.
package journal

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DirName is the journal directory inside a data directory
const DirName = ".journal"

const keyPrefix = "batch/"

// Status is the lifecycle state of a batch
type Status string

const (
	StatusPending   Status = "pending"
	StatusCommitted Status = "committed"
	StatusRecovered Status = "recovered"
	StatusAborted   Status = "aborted"
)

// Batch is one journal entry
type Batch struct {
	ID        ksuid.KSUID `yaml:"-"`
	Type      string      `yaml:"type"`
	Mode      string      `yaml:"mode"`
	Status    Status      `yaml:"status"`
	StartSize int64       `yaml:"start_size"`
	EndSize   int64       `yaml:"end_size"`
	Records   int         `yaml:"records"`
	Started   time.Time   `yaml:"started"`
	Finished  time.Time   `yaml:"finished,omitempty"`
}

// JournalError represents a journal error
type JournalError struct {
	Message string
}

func (e *JournalError) Error() string {
	return e.Message
}

var (
	ErrNotFound = &JournalError{"batch not found"}
	ErrClosed   = &JournalError{"journal is closed"}
)

// Journal is a pebble-backed batch manifest
type Journal struct {
	db     *pebble.DB
	path   string
	logger *zap.SugaredLogger
}

// Open opens or creates the journal under dataDir.
func Open(dataDir string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := filepath.Join(dataDir, DirName)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Journal{db: db, path: path, logger: logger.Sugar()}, nil
}

// Path returns the journal directory
func (j *Journal) Path() string {
	return j.path
}

// Begin records the start of a write batch and returns its id.
func (j *Journal) Begin(typeName, mode string, startSize int64) (ksuid.KSUID, error) {
	b := Batch{
		ID:        ksuid.New(),
		Type:      typeName,
		Mode:      mode,
		Status:    StatusPending,
		StartSize: startSize,
		EndSize:   startSize,
		Started:   time.Now().UTC(),
	}
	if err := j.put(&b); err != nil {
		return ksuid.Nil, err
	}
	j.logger.Debugw("batch started", "id", b.ID.String(), "type", typeName, "mode", mode, "start_size", startSize)
	return b.ID, nil
}

// Commit closes out a batch that finished writing.
func (j *Journal) Commit(id ksuid.KSUID, records int, endSize int64) error {
	b, err := j.Get(id)
	if err != nil {
		return err
	}
	b.Status = StatusCommitted
	b.Records = records
	b.EndSize = endSize
	b.Finished = time.Now().UTC()
	if err := j.put(b); err != nil {
		return err
	}
	j.logger.Debugw("batch committed", "id", id.String(), "type", b.Type, "records", records, "end_size", endSize)
	return nil
}

// Abort closes out a batch that failed before changing the record file.
func (j *Journal) Abort(id ksuid.KSUID) error {
	b, err := j.Get(id)
	if err != nil {
		return err
	}
	b.Status = StatusAborted
	b.Finished = time.Now().UTC()
	if err := j.put(b); err != nil {
		return err
	}
	j.logger.Debugw("batch aborted", "id", id.String(), "type", b.Type)
	return nil
}

// MarkRecovered closes out an interrupted batch after its files were repaired.
func (j *Journal) MarkRecovered(id ksuid.KSUID, endSize int64) error {
	b, err := j.Get(id)
	if err != nil {
		return err
	}
	b.Status = StatusRecovered
	b.EndSize = endSize
	b.Finished = time.Now().UTC()
	if err := j.put(b); err != nil {
		return err
	}
	j.logger.Infow("batch marked recovered", "id", id.String(), "type", b.Type, "end_size", endSize)
	return nil
}

// Get returns one batch
func (j *Journal) Get(id ksuid.KSUID) (*Batch, error) {
	if j.db == nil {
		return nil, ErrClosed
	}
	data, closer, err := j.db.Get(key(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read batch %s: %w", id, err)
	}
	defer closer.Close()

	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", id, err)
	}
	b.ID = id
	return &b, nil
}

// List returns all batches, oldest first. An empty typeName matches every type.
func (j *Journal) List(typeName string) ([]Batch, error) {
	if j.db == nil {
		return nil, ErrClosed
	}
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("batch0"), // '0' follows '/'
	})
	if err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	defer iter.Close()

	var batches []Batch
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.Parse(string(iter.Key()[len(keyPrefix):]))
		if err != nil {
			j.logger.Warnw("skipping journal entry with bad key", "key", string(iter.Key()), "error", err)
			continue
		}
		var b Batch
		if err := yaml.Unmarshal(iter.Value(), &b); err != nil {
			return nil, fmt.Errorf("decode batch %s: %w", id, err)
		}
		b.ID = id
		if typeName == "" || b.Type == typeName {
			batches = append(batches, b)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	// ksuids only order by second
	sort.SliceStable(batches, func(i, k int) bool {
		return batches[i].Started.Before(batches[k].Started)
	})
	return batches, nil
}

// Pending returns the batches of typeName that began but never committed
func (j *Journal) Pending(typeName string) ([]Batch, error) {
	all, err := j.List(typeName)
	if err != nil {
		return nil, err
	}
	var pending []Batch
	for _, b := range all {
		if b.Status == StatusPending {
			pending = append(pending, b)
		}
	}
	return pending, nil
}

// Close closes the journal
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func (j *Journal) put(b *Batch) error {
	if j.db == nil {
		return ErrClosed
	}
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", b.ID, err)
	}
	if err := j.db.Set(key(b.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("write batch %s: %w", b.ID, err)
	}
	return nil
}

func key(id ksuid.KSUID) []byte {
	return []byte(keyPrefix + id.String())
}
