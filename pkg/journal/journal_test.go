package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "journal_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	j, err := Open(tmpDir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, tmpDir
}

func TestJournal_BeginCommit(t *testing.T) {
	j, dir := openTestJournal(t)
	assert.Equal(t, filepath.Join(dir, DirName), j.Path())

	id, err := j.Begin("Sale", "append", 128)
	require.NoError(t, err)
	assert.NotEqual(t, ksuid.Nil, id)

	b, err := j.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, "Sale", b.Type)
	assert.Equal(t, int64(128), b.StartSize)
	assert.True(t, b.Finished.IsZero())

	require.NoError(t, j.Commit(id, 3, 512))

	b, err = j.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, b.Status)
	assert.Equal(t, 3, b.Records)
	assert.Equal(t, int64(512), b.EndSize)
	assert.False(t, b.Finished.IsZero())
}

func TestJournal_Pending(t *testing.T) {
	j, _ := openTestJournal(t)

	done, err := j.Begin("Sale", "append", 0)
	require.NoError(t, err)
	require.NoError(t, j.Commit(done, 1, 10))

	torn, err := j.Begin("Sale", "append", 10)
	require.NoError(t, err)
	_, err = j.Begin("User", "create", 0)
	require.NoError(t, err)

	pending, err := j.Pending("Sale")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, torn, pending[0].ID)

	all, err := j.Pending("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, j.MarkRecovered(torn, 10))
	pending, err = j.Pending("Sale")
	require.NoError(t, err)
	assert.Empty(t, pending)

	b, err := j.Get(torn)
	require.NoError(t, err)
	assert.Equal(t, StatusRecovered, b.Status)

	list, err := j.List("Sale")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestJournal_NotFound(t *testing.T) {
	j, _ := openTestJournal(t)

	_, err := j.Get(ksuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, j.Commit(ksuid.New(), 1, 1), ErrNotFound)
	assert.ErrorIs(t, j.MarkRecovered(ksuid.New(), 1), ErrNotFound)
	assert.ErrorIs(t, j.Abort(ksuid.New()), ErrNotFound)
}

func TestJournal_Abort(t *testing.T) {
	j, _ := openTestJournal(t)

	id, err := j.Begin("Sale", "append", 64)
	require.NoError(t, err)
	require.NoError(t, j.Abort(id))

	b, err := j.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, b.Status)
	assert.Equal(t, int64(64), b.EndSize)

	pending, err := j.Pending("Sale")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestJournal_Reopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "journal_reopen_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	j, err := Open(tmpDir, nil)
	require.NoError(t, err)
	id, err := j.Begin("Sale", "append", 0)
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	_, err = j.Begin("Sale", "append", 0)
	assert.ErrorIs(t, err, ErrClosed)

	j2, err := Open(tmpDir, nil)
	require.NoError(t, err)
	defer j2.Close()

	pending, err := j2.Pending("Sale")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
}
