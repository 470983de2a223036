package store

import (
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ssargent/recordstore/pkg/journal"
	"github.com/ssargent/recordstore/pkg/metrics"
	"github.com/ssargent/recordstore/pkg/session"
)

// Config holds configuration for the record store
type Config struct {
	DataDir  string           // Directory for record, blob and trie files
	Mode     session.Mode     // Write mode used by Write
	MaxDepth int              // Nested record recursion bound (0 = codec default)
	Sync     bool             // Fsync files at the end of each write batch
	Journal  bool             // Keep a batch journal under DataDir
	Logger   *zap.Logger      // Optional, defaults to a no-op logger
	Metrics  *metrics.Metrics // Optional
}

// Stats holds statistics about one record type
type Stats struct {
	Type          string
	Width         int
	Records       int64
	TrailingBytes int64
	Files         map[string]int64 // every file the type touches, by size
	PendingWrites int
}

// FileCheck describes the state of one record file
type FileCheck struct {
	Name     string
	Size     int64
	Width    int
	Records  int64
	Trailing int64
}

// VerifyResult holds the outcome of a verification pass
type VerifyResult struct {
	Files     []FileCheck
	Decoded   int
	Truncated bool
	Pending   []journal.Batch
}

// OK reports whether the type decoded completely with no torn batches
func (v *VerifyResult) OK() bool {
	if v.Truncated || len(v.Pending) > 0 {
		return false
	}
	for _, f := range v.Files {
		if f.Trailing != 0 {
			return false
		}
	}
	return true
}

// FileRecovery records what recovery did to one file
type FileRecovery struct {
	Name       string
	SizeBefore int64
	SizeAfter  int64
}

// RecoveryResult holds statistics about a recovery pass
type RecoveryResult struct {
	RecordsValidated int
	BytesTruncated   int64
	Files            []FileRecovery
	BatchesRecovered []ksuid.KSUID
	RecoveryTime     int64 // nanoseconds
}

// Errors
var (
	ErrNotOpen      = &StoreError{"store is not open"}
	ErrInvalidInput = &StoreError{"invalid input"}
)

// StoreError represents a record store error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
