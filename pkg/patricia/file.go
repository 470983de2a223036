package patricia

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ssargent/recordstore/pkg/session"
)

// FileTrie is a trie bound to one file of a session. The file is read once
// when the FileTrie is opened; keys added afterwards are collected in a
// separate trie and merged into the loaded one by Renumber. Flush writes the
// merged trie back when anything changed.
type FileTrie struct {
	name    string
	file    *session.File
	base    *Trie
	pending *Trie
	partial bool
	dirty   bool
	logger  *zap.SugaredLogger
}

// OpenFile loads name from the session directory. A missing or empty file
// gives an empty trie.
func OpenFile(s *session.Session, name string, mode session.Mode, logger *zap.Logger) (*FileTrie, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := s.Open(name, mode)
	if err != nil {
		return nil, err
	}

	data := make([]byte, f.Size())
	if len(data) > 0 {
		if _, err := f.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("read trie %s: %w", name, err)
		}
	}
	base, partial, err := UnmarshalTrie(data)
	if err != nil {
		return nil, fmt.Errorf("load trie %s: %w", name, err)
	}

	ft := &FileTrie{
		name:    name,
		file:    f,
		base:    base,
		pending: New(),
		partial: partial,
		logger:  logger.Sugar(),
	}
	if partial {
		ft.logger.Warnw("trie file ends early, loaded what was readable",
			"file", name, "bytes", len(data), "keys", base.Len())
	}
	return ft, nil
}

// Name returns the trie file name
func (ft *FileTrie) Name() string {
	return ft.name
}

// Partial reports whether the file was truncated or malformed when loaded
func (ft *FileTrie) Partial() bool {
	return ft.partial
}

// Dirty reports whether the in-memory trie differs from the file
func (ft *FileTrie) Dirty() bool {
	return ft.dirty
}

// Add interns key and reports whether it was new.
func (ft *FileTrie) Add(key string) bool {
	if ft.base.Contains(key) {
		return false
	}
	if !ft.pending.Add(key) {
		return false
	}
	ft.dirty = true
	return true
}

// MergeTrie adds every key of other and returns how many were new.
func (ft *FileTrie) MergeTrie(other *Trie) int {
	added := 0
	other.Walk(func(key string, n *Node) bool {
		if n.Terminal() && ft.Add(key) {
			added++
		}
		return true
	})
	return added
}

// Renumber merges pending keys into the loaded trie and recomputes ids.
// Ids handed out before the call are invalid if any key was pending.
func (ft *FileTrie) Renumber() {
	if ft.pending.Len() > 0 {
		ft.logger.Debugw("merging new keys into trie", "file", ft.name,
			"existing", ft.base.Len(), "new", ft.pending.Len())
		ft.base = Merge(ft.base, ft.pending)
		ft.pending = New()
	}
	if !ft.base.Numbered() {
		ft.base.WriteEncodings()
	}
}

// Trie returns the merged, numbered trie
func (ft *FileTrie) Trie() *Trie {
	ft.Renumber()
	return ft.base
}

// Encode returns the id of key after merging pending keys, or NotFound.
func (ft *FileTrie) Encode(key string) int64 {
	return ft.Trie().Encode(key)
}

// Decode resolves an id against the merged trie.
func (ft *FileTrie) Decode(id int64) (string, bool) {
	return ft.Trie().Decode(id)
}

// Retrieve returns the keys starting with prefix, pending keys included.
func (ft *FileTrie) Retrieve(prefix string) []string {
	return ft.Trie().Retrieve(prefix)
}

// Flush rewrites the file when keys were added since it was loaded.
func (ft *FileTrie) Flush() error {
	if !ft.dirty {
		return nil
	}
	data, err := ft.Trie().MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize trie %s: %w", ft.name, err)
	}
	if err := ft.file.Rewrite(data); err != nil {
		return fmt.Errorf("write trie %s: %w", ft.name, err)
	}
	ft.dirty = false
	ft.partial = false
	ft.logger.Debugw("wrote trie", "file", ft.name, "keys", ft.base.Len(), "bytes", len(data))
	return nil
}
