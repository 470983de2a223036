package session

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_OpenCachesHandles(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_cache_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	s, err := New(tmpDir)
	require.NoError(t, err)
	defer s.CloseAll()

	a, err := s.Open("T.bin", ModeAppend)
	require.NoError(t, err)

	b, err := s.Open("./T.bin", ModeCreate)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, ModeAppend, b.Mode())
	assert.True(t, s.Opened("T.bin"))
	assert.False(t, s.Opened("Other.bin"))
}

func TestSession_OpenPromotesMissingFiles(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_promote_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	s, err := New(tmpDir)
	require.NoError(t, err)

	f, err := s.Open("missing.bin", ModeOpen)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.Size())

	r, err := s.Open("also-missing.bin", ModeRead)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Size())

	require.NoError(t, s.CloseAll())

	assert.FileExists(t, filepath.Join(tmpDir, "missing.bin"))
	assert.FileExists(t, filepath.Join(tmpDir, "also-missing.bin"))
}

func TestSession_CreatesDirectory(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_dir_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	nested := filepath.Join(tmpDir, "nested", "deep")
	s, err := New(nested)
	require.NoError(t, err)
	require.NoError(t, s.CloseAll())

	assert.DirExists(t, nested)
}

func TestFile_AppendAndReadBack(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_append_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("head"), 0644))

	s, err := New(tmpDir)
	require.NoError(t, err)

	f, err := s.Open("data.bin", ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, int64(4), f.Size())

	_, err = f.Write([]byte("tail"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), f.Size())

	// buffered bytes are visible to ReadAt
	buf := make([]byte, 8)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "headtail", string(buf))

	require.NoError(t, s.CloseAll())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "headtail", string(data))
}

func TestFile_CreateTruncates(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_truncate_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0644))

	s, err := New(tmpDir)
	require.NoError(t, err)

	f, err := s.Open("data.bin", ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.Size())

	_, err = f.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, s.CloseAll())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFile_Rewrite(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_rewrite_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	s, err := New(tmpDir)
	require.NoError(t, err)

	f, err := s.Open("trie.bin", ModeOpen)
	require.NoError(t, err)
	_, err = f.Write([]byte("a much longer first version"))
	require.NoError(t, err)

	require.NoError(t, f.Rewrite([]byte("short")))
	assert.Equal(t, int64(5), f.Size())
	require.NoError(t, s.CloseAll())

	data, err := os.ReadFile(filepath.Join(tmpDir, "trie.bin"))
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))
}

func TestFile_ReadPastEnd(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_short_read_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	s, err := New(tmpDir)
	require.NoError(t, err)
	defer s.CloseAll()

	f, err := s.Open("data.bin", ModeAppend)
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 0)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFile_ReadOnlyRejectsWrites(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_readonly_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	s, err := New(tmpDir)
	require.NoError(t, err)
	defer s.CloseAll()

	f, err := s.Open("data.bin", ModeRead)
	require.NoError(t, err)

	_, err = f.Write([]byte("x"))
	assert.Error(t, err)
	assert.Error(t, f.Rewrite([]byte("x")))
}

func TestSession_CloseAllRunsHooksOnce(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_hooks_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	s, err := New(tmpDir, WithSync(true))
	require.NoError(t, err)

	f, err := s.Open("data.bin", ModeAppend)
	require.NoError(t, err)

	calls := 0
	s.OnClose(func() error {
		calls++
		// hooks run before handles close, so writes still succeed
		_, err := f.Write([]byte("flushed by hook"))
		return err
	})

	require.NoError(t, s.CloseAll())
	require.NoError(t, s.CloseAll())
	assert.Equal(t, 1, calls)
	assert.True(t, s.Closed())

	data, err := os.ReadFile(filepath.Join(tmpDir, "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, "flushed by hook", string(data))

	_, err = s.Open("data.bin", ModeAppend)
	assert.Error(t, err)
}

func TestSession_CloseAllCombinesErrors(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session_errors_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	s, err := New(tmpDir)
	require.NoError(t, err)

	first := errors.New("first hook failed")
	second := errors.New("second hook failed")
	s.OnClose(func() error { return first })
	s.OnClose(func() error { return second })

	err = s.CloseAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		in   string
		want Mode
	}{
		{"", ModeAppend},
		{"append", ModeAppend},
		{"create", ModeCreate},
		{"truncate", ModeCreate},
		{"open", ModeOpen},
		{"read", ModeRead},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseMode("bogus")
	assert.Error(t, err)
}
