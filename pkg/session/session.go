// Package session brokers file access for one read or write batch.
//
// A Session caches one handle per path for the lifetime of a batch, so every
// component touching the same file shares a single write position. CloseAll
// runs registered flush hooks, then flushes and closes every handle exactly
// once. Sessions are not safe for concurrent use.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger used for debug output
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger.Sugar()
		}
	}
}

// WithSync makes CloseAll fsync every writable file before closing it
func WithSync(sync bool) Option {
	return func(s *Session) {
		s.sync = sync
	}
}

// Session is the batch-scoped file cache
type Session struct {
	dir    string
	files  map[string]*File
	order  []string
	hooks  []func() error
	logger *zap.SugaredLogger
	sync   bool
	closed bool
}

// New creates a session rooted at dir. The directory is created if needed.
func New(dir string, opts ...Option) (*Session, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	s := &Session{
		dir:    dir,
		files:  make(map[string]*File),
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory the session resolves names against
func (s *Session) Dir() string {
	return s.dir
}

// Path resolves a file name inside the session directory
func (s *Session) Path(name string) string {
	return filepath.Clean(filepath.Join(s.dir, name))
}

// Open returns the cached handle for name, opening it with mode on first use.
// Later calls return the same handle whatever mode they ask for.
func (s *Session) Open(name string, mode Mode) (*File, error) {
	if s.closed {
		return nil, fmt.Errorf("session for %s is closed", s.dir)
	}

	path := s.Path(name)
	if f, ok := s.files[path]; ok {
		return f, nil
	}

	f, promoted, err := openFile(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s (%s): %w", path, mode, err)
	}
	if promoted {
		s.logger.Debugw("file did not exist, created it", "path", path, "mode", mode.String())
	}
	s.logger.Debugw("opened file", "path", path, "mode", mode.String(), "size", f.Size())

	s.files[path] = f
	s.order = append(s.order, path)
	return f, nil
}

// Opened reports whether name already has a handle in this session
func (s *Session) Opened(name string) bool {
	_, ok := s.files[s.Path(name)]
	return ok
}

// OnClose registers fn to run at the start of CloseAll, before any handle is
// closed. Hooks run in registration order.
func (s *Session) OnClose(fn func() error) {
	s.hooks = append(s.hooks, fn)
}

// CloseAll runs the close hooks, then flushes and closes every handle.
// Every handle is closed even when an earlier step fails; all failures are
// returned together. Calling CloseAll again is a no-op.
func (s *Session) CloseAll() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	for _, hook := range s.hooks {
		err = multierr.Append(err, hook())
	}
	s.hooks = nil

	for _, path := range s.order {
		f := s.files[path]
		if s.sync {
			err = multierr.Append(err, f.Sync())
		}
		if cerr := f.close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", path, cerr))
		}
	}
	s.logger.Debugw("closed session", "dir", s.dir, "files", len(s.order), "error", err)

	s.files = make(map[string]*File)
	s.order = nil
	return err
}

// Closed reports whether CloseAll has run
func (s *Session) Closed() bool {
	return s.closed
}
