package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointManager(t *testing.T) {
	mgr := NewManager("")

	mgr.Update("/logs/vcslog-git-1", 2, 5678)

	pos, ok := mgr.GetPosition("/logs/vcslog-git-1")
	require.True(t, ok)
	assert.Equal(t, 2, pos.Records)
	assert.Equal(t, uint64(5678), pos.Inode)

	assert.Equal(t, 2, mgr.Records("/logs/vcslog-git-1", 5678))
	assert.Equal(t, 0, mgr.Records("/logs/vcslog-git-1", 9999), "replaced file starts over")
	assert.Equal(t, 0, mgr.Records("/logs/vcslog-hg-2", 1))

	mgr.Forget("/logs/vcslog-git-1")
	assert.Equal(t, 0, mgr.Len())
}

func TestCheckpointLoadAndSave(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".follow.json")

	mgr1 := NewManager(file)
	mgr1.Update("/logs/vcslog-git-1", 1, 123)
	mgr1.Update("/logs/vcslog-svn-2", 3, 456)
	require.NoError(t, mgr1.Save())

	_, err := os.Stat(file + ".tmp")
	assert.True(t, os.IsNotExist(err))

	mgr2 := NewManager(file)
	require.NoError(t, mgr2.Load())
	assert.Equal(t, 2, mgr2.Len())
	assert.Equal(t, 1, mgr2.Records("/logs/vcslog-git-1", 123))
	assert.Equal(t, 3, mgr2.Records("/logs/vcslog-svn-2", 456))
}

func TestCheckpointLoadMissingFile(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, mgr.Load())
	assert.Equal(t, 0, mgr.Len())
}

func TestCheckpointLoadCorrupt(t *testing.T) {
	file := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0644))

	assert.Error(t, NewManager(file).Load())
}

func TestCheckpointMemoryOnly(t *testing.T) {
	mgr := NewManager("")
	mgr.Update("/logs/vcslog-git-1", 1, 1)
	assert.NoError(t, mgr.Save())
	assert.NoError(t, mgr.Load())
	assert.Equal(t, 1, mgr.Len())
}
