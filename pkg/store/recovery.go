package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/ssargent/recordstore/pkg/codec"
	"github.com/ssargent/recordstore/pkg/schema"
)

// Verify inspects the record files of sc without changing them: per-file
// record counts and trailing bytes, a full decode pass, and the batches the
// journal still holds open.
func (s *Store) Verify(sc *schema.Schema) (*VerifyResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil, ErrNotOpen
	}

	result := &VerifyResult{}
	for _, cur := range recordSchemas(sc) {
		check, err := s.checkFile(cur)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, check)
	}

	it, err := codec.Decode(s.config.DataDir, sc, s.codecOptions()...)
	if err != nil {
		return nil, err
	}
	for it.Next() {
	}
	result.Decoded = it.Count()
	result.Truncated = it.Truncated()
	if err := multierr.Append(it.Err(), it.Close()); err != nil {
		return nil, err
	}

	if s.journal != nil {
		pending, err := s.journal.Pending(sc.Name)
		if err != nil {
			return nil, err
		}
		result.Pending = pending
	}

	s.logger.Infow("verified record files", "type", sc.Name, "decoded", result.Decoded,
		"truncated", result.Truncated, "pending_batches", len(result.Pending))
	return result, nil
}

// Recover repairs the files of sc after an interrupted write. Every record
// file is cut back to whole records, then the main file is cut at the first
// record that does not decode completely. Open journal batches of sc are
// marked recovered.
func (s *Store) Recover(sc *schema.Schema) (*RecoveryResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil, ErrNotOpen
	}

	startTime := time.Now()
	result := &RecoveryResult{}

	for _, cur := range recordSchemas(sc) {
		check, err := s.checkFile(cur)
		if err != nil {
			return nil, err
		}
		if check.Trailing == 0 {
			continue
		}
		if err := s.cut(result, check.Name, check.Size, check.Size-check.Trailing); err != nil {
			return nil, err
		}
	}

	it, err := codec.Decode(s.config.DataDir, sc, s.codecOptions()...)
	if err != nil {
		return nil, err
	}
	for it.Next() {
	}
	result.RecordsValidated = it.Count()
	truncated, offset := it.Truncated(), it.Offset()
	if err := multierr.Append(it.Err(), it.Close()); err != nil {
		return nil, err
	}

	mainSize, err := s.fileSize(sc.FileName())
	if err != nil {
		return nil, err
	}
	if truncated && offset < mainSize {
		if err := s.cut(result, sc.FileName(), mainSize, offset); err != nil {
			return nil, err
		}
		mainSize = offset
	}

	if s.journal != nil {
		pending, err := s.journal.Pending(sc.Name)
		if err != nil {
			return nil, err
		}
		for _, b := range pending {
			if err := s.journal.MarkRecovered(b.ID, mainSize); err != nil {
				return nil, err
			}
			result.BatchesRecovered = append(result.BatchesRecovered, b.ID)
		}
	}

	result.RecoveryTime = time.Since(startTime).Nanoseconds()
	s.config.Metrics.Recovered(sc.Name, result.BytesTruncated)
	if result.BytesTruncated > 0 || len(result.BatchesRecovered) > 0 {
		s.logger.Infow("recovered record files", "type", sc.Name,
			"records", result.RecordsValidated, "bytes_truncated", result.BytesTruncated,
			"batches", len(result.BatchesRecovered), "duration", time.Duration(result.RecoveryTime))
	}
	return result, nil
}

func (s *Store) checkFile(sc *schema.Schema) (FileCheck, error) {
	size, err := s.fileSize(sc.FileName())
	if err != nil {
		return FileCheck{}, err
	}
	width := int64(sc.Width())
	return FileCheck{
		Name:     sc.FileName(),
		Size:     size,
		Width:    sc.Width(),
		Records:  size / width,
		Trailing: size % width,
	}, nil
}

// cut truncates a data file and records the change
func (s *Store) cut(result *RecoveryResult, name string, before, after int64) error {
	if err := os.Truncate(filepath.Join(s.config.DataDir, name), after); err != nil {
		return fmt.Errorf("truncate %s to %d: %w", name, after, err)
	}
	s.logger.Warnw("truncated record file", "file", name, "size_before", before, "size_after", after)
	result.Files = append(result.Files, FileRecovery{Name: name, SizeBefore: before, SizeAfter: after})
	result.BytesTruncated += before - after
	return nil
}
