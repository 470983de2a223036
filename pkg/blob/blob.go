// Package blob implements the append-only side files that hold the bytes of
// range-indexed fields. A record only keeps a Ref (offset,length) into the
// blob file; entries are never rewritten, moved or reclaimed.
package blob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ssargent/recordstore/pkg/session"
)

// Ref locates one entry inside a blob file
type Ref struct {
	Offset uint64
	Length uint64
}

// End is the first byte past the entry
func (r Ref) End() uint64 {
	return r.Offset + r.Length
}

func (r Ref) String() string {
	return fmt.Sprintf("[%d,+%d]", r.Offset, r.Length)
}

// PutRef writes r into dst using the slot layout implied by len(dst):
// 8 bytes hold two little-endian uint32, 16 bytes hold two uint64.
func PutRef(dst []byte, r Ref) error {
	switch len(dst) {
	case 8:
		if r.Offset > math.MaxUint32 || r.Length > math.MaxUint32 {
			return fmt.Errorf("%w: %s does not fit a 32-bit slot", ErrRefOverflow, r)
		}
		binary.LittleEndian.PutUint32(dst[0:4], uint32(r.Offset))
		binary.LittleEndian.PutUint32(dst[4:8], uint32(r.Length))
	case 16:
		binary.LittleEndian.PutUint64(dst[0:8], r.Offset)
		binary.LittleEndian.PutUint64(dst[8:16], r.Length)
	default:
		return fmt.Errorf("%w: slot width %d", ErrBadSlot, len(dst))
	}
	return nil
}

// ParseRef is the inverse of PutRef.
func ParseRef(src []byte) (Ref, error) {
	switch len(src) {
	case 8:
		return Ref{
			Offset: uint64(binary.LittleEndian.Uint32(src[0:4])),
			Length: uint64(binary.LittleEndian.Uint32(src[4:8])),
		}, nil
	case 16:
		return Ref{
			Offset: binary.LittleEndian.Uint64(src[0:8]),
			Length: binary.LittleEndian.Uint64(src[8:16]),
		}, nil
	}
	return Ref{}, fmt.Errorf("%w: slot width %d", ErrBadSlot, len(src))
}

// Store is one blob file opened through a session
type Store struct {
	name string
	file *session.File
}

// Open binds name in the session's directory. Writers use session.ModeAppend,
// readers session.ModeRead; a handle already opened in the session is reused.
func Open(s *session.Session, name string, mode session.Mode) (*Store, error) {
	f, err := s.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return &Store{name: name, file: f}, nil
}

// Name returns the blob file name relative to the session directory
func (s *Store) Name() string {
	return s.name
}

// Size is the current end of the blob file, including buffered appends
func (s *Store) Size() int64 {
	return s.file.Size()
}

// Append writes p at the end of the file and returns where it landed.
// An empty p yields a zero-length Ref at the current end.
func (s *Store) Append(p []byte) (Ref, error) {
	ref := Ref{Offset: uint64(s.file.Size()), Length: uint64(len(p))}
	if len(p) == 0 {
		return ref, nil
	}
	if _, err := s.file.Write(p); err != nil {
		return Ref{}, fmt.Errorf("append to %s: %w", s.name, err)
	}
	return ref, nil
}

// Read returns the bytes of ref. A ref reaching past the end of the file
// fails with ErrOutOfRange; callers decide whether that is fatal.
func (s *Store) Read(ref Ref) ([]byte, error) {
	size := uint64(s.file.Size())
	if ref.Offset > size || ref.Length > size-ref.Offset {
		return nil, fmt.Errorf("%w: %s %s, file size %d", ErrOutOfRange, s.name, ref, size)
	}
	buf := make([]byte, ref.Length)
	if ref.Length == 0 {
		return buf, nil
	}
	if _, err := s.file.ReadAt(buf, int64(ref.Offset)); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s %s", ErrOutOfRange, s.name, ref)
		}
		return nil, fmt.Errorf("read %s %s: %w", s.name, ref, err)
	}
	return buf, nil
}
