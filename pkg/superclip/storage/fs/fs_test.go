package fs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBackend(t *testing.T) *Backend {
	t.Helper()
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return backend
}

func TestNew(t *testing.T) {
	t.Run("requires a base dir", func(t *testing.T) {
		_, err := New(Config{})
		assert.Error(t, err)
	})

	t.Run("creates the base dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "blobs")
		_, err := New(Config{BaseDir: dir})
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestPutOpenDelete(t *testing.T) {
	backend := setupBackend(t)
	ctx := context.Background()

	data := []byte("file store round trip")
	stored, err := backend.Put(ctx, "sample.txt", "text/plain", data)
	require.NoError(t, err)
	assert.Equal(t, "sample.txt", stored.Name)
	assert.Equal(t, int64(len(data)), stored.Size)
	assert.Equal(t, "text/plain", stored.Mime)
	assert.NotEmpty(t, stored.Location)

	reader, err := backend.Open(ctx, stored.Location)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, data, got)

	require.NoError(t, backend.Delete(ctx, stored.Location))

	_, err = backend.Open(ctx, stored.Location)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "missing blob must satisfy fs.ErrNotExist, got %v", err)
}

func TestDeleteAbsentBlob(t *testing.T) {
	backend := setupBackend(t)

	assert.NoError(t, backend.Delete(context.Background(), "never-stored.bin"))
}

func TestOpenRejectsPathTraversal(t *testing.T) {
	backend := setupBackend(t)

	for _, location := range []string{"../outside.txt", "sub/inside.txt", ""} {
		_, err := backend.Open(context.Background(), location)
		assert.True(t, errors.Is(err, fs.ErrNotExist), "location %q: got %v", location, err)
	}
}
