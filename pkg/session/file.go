package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Mode controls how a file is opened the first time a session sees it
type Mode int

const (
	// ModeAppend opens or creates the file and positions writes at its end
	ModeAppend Mode = iota
	// ModeCreate creates the file, truncating any existing content
	ModeCreate
	// ModeOpen opens an existing file for reading and writing. A missing
	// file is created instead of failing.
	ModeOpen
	// ModeRead opens an existing file read-only. A missing file is created
	// empty first, so reads against a fresh directory see no data.
	ModeRead
)

func (m Mode) String() string {
	switch m {
	case ModeAppend:
		return "append"
	case ModeCreate:
		return "create"
	case ModeOpen:
		return "open"
	case ModeRead:
		return "read"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a config string to a write Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "append":
		return ModeAppend, nil
	case "create", "truncate":
		return ModeCreate, nil
	case "open":
		return ModeOpen, nil
	case "read":
		return ModeRead, nil
	}
	return 0, fmt.Errorf("unknown file mode %q", s)
}

const defaultBufferSize = 64 * 1024

// File is a session-owned handle. Writes are buffered and always land at the
// logical end of the file; reads go through ReadAt and see buffered writes.
type File struct {
	path     string
	mode     Mode
	file     *os.File
	writer   *bufio.Writer
	size     int64
	readOnly bool
}

func openFile(path string, mode Mode) (*File, bool, error) {
	promoted := false
	if mode == ModeOpen || mode == ModeRead {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			promoted = true
		}
	}

	var flags int
	switch mode {
	case ModeAppend, ModeOpen:
		flags = os.O_CREATE | os.O_RDWR
	case ModeCreate:
		flags = os.O_CREATE | os.O_RDWR | os.O_TRUNC
	case ModeRead:
		if promoted {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return nil, false, err
			}
			if err := f.Close(); err != nil {
				return nil, false, err
			}
		}
		flags = os.O_RDONLY
	default:
		return nil, false, fmt.Errorf("unknown file mode %d", int(mode))
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, false, err
	}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, false, err
	}

	f := &File{
		path:     path,
		mode:     mode,
		file:     file,
		size:     size,
		readOnly: mode == ModeRead,
	}
	if !f.readOnly {
		f.writer = bufio.NewWriterSize(file, defaultBufferSize)
	}
	return f, promoted, nil
}

// Path returns the file's location on disk
func (f *File) Path() string {
	return f.path
}

// Mode returns the mode the file was first opened with
func (f *File) Mode() Mode {
	return f.mode
}

// Size returns the logical size, including writes still sitting in the buffer
func (f *File) Size() int64 {
	return f.size
}

// Write appends p at the end of the file.
func (f *File) Write(p []byte) (int, error) {
	if f.readOnly {
		return 0, fmt.Errorf("%s: opened read-only", f.path)
	}
	n, err := f.writer.Write(p)
	f.size += int64(n)
	return n, err
}

// ReadAt reads len(p) bytes at off. A short read returns io.ErrUnexpectedEOF
// or io.EOF like io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if err := f.Flush(); err != nil {
		return 0, err
	}
	return f.file.ReadAt(p, off)
}

// Rewrite replaces the whole content of the file with p.
func (f *File) Rewrite(p []byte) error {
	if f.readOnly {
		return fmt.Errorf("%s: opened read-only", f.path)
	}
	if err := f.writer.Flush(); err != nil {
		return err
	}
	if err := f.file.Truncate(0); err != nil {
		return err
	}
	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	f.size = 0
	if _, err := f.Write(p); err != nil {
		return err
	}
	return f.writer.Flush()
}

// Flush pushes buffered writes to the operating system
func (f *File) Flush() error {
	if f.writer == nil || f.writer.Buffered() == 0 {
		return nil
	}
	return f.writer.Flush()
}

// Sync flushes and fsyncs the file
func (f *File) Sync() error {
	if f.readOnly {
		return nil
	}
	if err := f.Flush(); err != nil {
		return err
	}
	return f.file.Sync()
}

func (f *File) close() error {
	if err := f.Flush(); err != nil {
		_ = f.file.Close()
		return err
	}
	return f.file.Close()
}
