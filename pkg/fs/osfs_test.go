package fs_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/milosgajdos/go-tftp/pkg/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystemStatMissing(t *testing.T) {
	osfs := fs.OSFileSystem{}

	exists, _, err := osfs.Stat(filepath.Join(t.TempDir(), "nope.bin"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOSFileSystemCreateWriteStat(t *testing.T) {
	osfs := fs.OSFileSystem{}
	path := filepath.Join(t.TempDir(), "upload.bin")

	w, err := osfs.Create(path)
	require.NoError(t, err)

	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	exists, size, err := osfs.Stat(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.EqualValues(t, 5, size)
}

func TestOSFileSystemCreateRejectsExisting(t *testing.T) {
	osfs := fs.OSFileSystem{}
	path := filepath.Join(t.TempDir(), "taken.bin")

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := osfs.Create(path)
	require.Error(t, err)
}

func TestOSFileSystemAbortRemovesFile(t *testing.T) {
	osfs := fs.OSFileSystem{}
	path := filepath.Join(t.TempDir(), "partial.bin")

	w, err := osfs.Create(path)
	require.NoError(t, err)

	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOSFileSystemOpenReadsBack(t *testing.T) {
	osfs := fs.OSFileSystem{}
	path := filepath.Join(t.TempDir(), "readme.bin")

	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	r, err := osfs.Open(path)
	require.NoError(t, err)

	defer r.Close()

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "content", string(b))
}

func TestOSFileSystemFreeBytes(t *testing.T) {
	osfs := fs.OSFileSystem{}

	free, err := osfs.FreeBytes(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}
