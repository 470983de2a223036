package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ssargent/recordstore/pkg/schema"
)

// putInline writes v into slot, which is zeroed and exactly f.Width long.
// A nil v leaves the zero value in place.
func putInline(slot []byte, f schema.Field, v any) error {
	if v == nil {
		return nil
	}
	le := binary.LittleEndian

	switch f.Type {
	case schema.String:
		s, ok := v.(string)
		if !ok {
			return mismatch(f, v)
		}
		copy(slot, fitString(s, len(slot)))
	case schema.Bytes:
		b, ok := v.([]byte)
		if !ok {
			return mismatch(f, v)
		}
		if len(b) != len(slot) {
			return fmt.Errorf("%w: %s holds %d bytes, got %d", ErrSchemaMismatch, f.Name, len(slot), len(b))
		}
		copy(slot, b)
	case schema.Bool:
		b, ok := v.(bool)
		if !ok {
			return mismatch(f, v)
		}
		if b {
			slot[0] = 1
		}
	case schema.Int32:
		n, err := signed(f, v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		le.PutUint32(slot, uint32(int32(n)))
	case schema.Int64:
		n, err := signed(f, v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		le.PutUint64(slot, uint64(n))
	case schema.Uint32:
		n, err := unsigned(f, v, math.MaxUint32)
		if err != nil {
			return err
		}
		le.PutUint32(slot, uint32(n))
	case schema.Uint64:
		n, err := unsigned(f, v, math.MaxUint64)
		if err != nil {
			return err
		}
		le.PutUint64(slot, n)
	case schema.Float32:
		x, ok := v.(float32)
		if !ok {
			return mismatch(f, v)
		}
		le.PutUint32(slot, math.Float32bits(x))
	case schema.Float64:
		x, ok := v.(float64)
		if !ok {
			return mismatch(f, v)
		}
		le.PutUint64(slot, math.Float64bits(x))
	default:
		return mismatch(f, v)
	}
	return nil
}

// readInline is the inverse of putInline.
func readInline(slot []byte, f schema.Field) (any, error) {
	le := binary.LittleEndian

	switch f.Type {
	case schema.String:
		return strings.TrimRight(string(slot), "\x00"), nil
	case schema.Bytes:
		return append([]byte(nil), slot...), nil
	case schema.Bool:
		return slot[0] != 0, nil
	case schema.Int32:
		return int32(le.Uint32(slot)), nil
	case schema.Int64:
		return int64(le.Uint64(slot)), nil
	case schema.Uint32:
		return le.Uint32(slot), nil
	case schema.Uint64:
		return le.Uint64(slot), nil
	case schema.Float32:
		return math.Float32frombits(le.Uint32(slot)), nil
	case schema.Float64:
		return math.Float64frombits(le.Uint64(slot)), nil
	}
	return nil, fmt.Errorf("%w: %s has unknown type %s", ErrSchemaMismatch, f.Name, f.Type)
}

// fitString cuts s to at most width bytes without splitting a rune.
func fitString(s string, width int) string {
	if len(s) <= width {
		return s
	}
	cut := width
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func signed(f schema.Field, v any, lo, hi int64) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		if f.Type != schema.Int32 {
			return 0, mismatch(f, v)
		}
		n = int64(x)
	case int64:
		if f.Type != schema.Int64 {
			return 0, mismatch(f, v)
		}
		n = x
	default:
		return 0, mismatch(f, v)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s value %d out of range", ErrSchemaMismatch, f.Name, n)
	}
	return n, nil
}

func unsigned(f schema.Field, v any, hi uint64) (uint64, error) {
	var n uint64
	switch x := v.(type) {
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%w: %s value %d is negative", ErrSchemaMismatch, f.Name, x)
		}
		n = uint64(x)
	case uint32:
		if f.Type != schema.Uint32 {
			return 0, mismatch(f, v)
		}
		n = uint64(x)
	case uint64:
		if f.Type != schema.Uint64 {
			return 0, mismatch(f, v)
		}
		n = x
	default:
		return 0, mismatch(f, v)
	}
	if n > hi {
		return 0, fmt.Errorf("%w: %s value %d out of range", ErrSchemaMismatch, f.Name, n)
	}
	return n, nil
}

func mismatch(f schema.Field, v any) error {
	return fmt.Errorf("%w: %s is %s %s, got %T", ErrSchemaMismatch, f.Name, f.Kind, f.Type, v)
}

// putID stores an unsigned id or offset in a 4 or 8 byte slot.
func putID(slot []byte, f schema.Field, n uint64) error {
	switch len(slot) {
	case 4:
		if n > math.MaxUint32 {
			return fmt.Errorf("%w: %s value %d does not fit 4 bytes", ErrSchemaMismatch, f.Name, n)
		}
		binary.LittleEndian.PutUint32(slot, uint32(n))
	case 8:
		binary.LittleEndian.PutUint64(slot, n)
	default:
		return fmt.Errorf("%w: %s has slot width %d", ErrSchemaMismatch, f.Name, len(slot))
	}
	return nil
}

func readID(slot []byte) uint64 {
	if len(slot) == 4 {
		return uint64(binary.LittleEndian.Uint32(slot))
	}
	return binary.LittleEndian.Uint64(slot)
}
