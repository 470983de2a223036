package store

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/ssargent/recordstore/pkg/schema"
	"github.com/ssargent/recordstore/pkg/session"
)

// WriteAll flattens values through b and writes them as one batch.
func WriteAll[T any](s *Store, b schema.Binding[T], values []T) error {
	return WriteAllMode(s, b, values, s.config.Mode)
}

// WriteAllMode is WriteAll with an explicit write mode.
func WriteAllMode[T any](s *Store, b schema.Binding[T], values []T, mode session.Mode) error {
	records := make([]schema.Record, len(values))
	for i, v := range values {
		rec, err := b.Flatten(v)
		if err != nil {
			return fmt.Errorf("%w: %s value %d: %w", ErrInvalidInput, b.Schema.Name, i, err)
		}
		records[i] = rec
	}
	return s.WriteMode(b.Schema, records, mode)
}

// ReadAll decodes every record of b's schema and builds values from them.
// truncated reports whether the file ended with an incomplete record.
func ReadAll[T any](s *Store, b schema.Binding[T]) (values []T, truncated bool, err error) {
	it, err := s.Read(b.Schema)
	if err != nil {
		return nil, false, err
	}
	for it.Next() {
		v, berr := b.Build(it.Record())
		if berr != nil {
			err = fmt.Errorf("%s record %d: %w", b.Schema.Name, it.Count()-1, berr)
			break
		}
		values = append(values, v)
	}
	err = multierr.Combine(err, it.Err(), it.Close())
	if err != nil {
		return nil, false, err
	}
	return values, it.Truncated(), nil
}
