package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutOpenDelete(t *testing.T) {
	backend := New()
	ctx := context.Background()

	data := []byte("in-memory round trip")
	stored, err := backend.Put(ctx, "note.txt", "text/plain", data)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), stored.Size)
	assert.Equal(t, 1, backend.Len())

	reader, err := backend.Open(ctx, stored.Location)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, backend.Delete(ctx, stored.Location))
	assert.Equal(t, 0, backend.Len())

	_, err = backend.Open(ctx, stored.Location)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestPutCopiesData(t *testing.T) {
	backend := New()
	ctx := context.Background()

	data := []byte("original")
	stored, err := backend.Put(ctx, "x.bin", "application/octet-stream", data)
	require.NoError(t, err)

	// Mutating the caller's slice must not affect the stored blob.
	copy(data, "XXXXXXXX")

	reader, err := backend.Open(ctx, stored.Location)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestConcurrentAccess(t *testing.T) {
	backend := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			stored, err := backend.Put(ctx, fmt.Sprintf("f%d.bin", n), "application/octet-stream", []byte{byte(n)})
			assert.NoError(t, err)
			reader, err := backend.Open(ctx, stored.Location)
			if assert.NoError(t, err) {
				reader.Close()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, backend.Len())
}
