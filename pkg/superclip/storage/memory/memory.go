// Package memory provides an in-memory blob store. It backs tests and
// single-process deployments where uploads do not need to survive a
// restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
	"github.com/pixia1234/super-clipboard/pkg/superclip/blobkey"
)

type object struct {
	data []byte
	mime string
}

// Backend is an in-memory implementation of the superclip.BlobStore
// interface.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	keys    blobkey.Generator
}

// New creates a new in-memory storage backend.
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
		keys:    blobkey.NewTimestampGenerator(),
	}
}

// Put stores data under a generated key.
func (b *Backend) Put(ctx context.Context, name, mime string, data []byte) (*superclip.StoredFile, error) {
	key := b.keys.Generate(name, mime)

	b.mu.Lock()
	defer b.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	b.objects[key] = object{data: stored, mime: mime}

	return &superclip.StoredFile{
		Name:     name,
		Size:     int64(len(data)),
		Mime:     mime,
		Location: key,
	}, nil
}

// Open returns a reader over a previously stored blob.
func (b *Backend) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[location]
	if !exists {
		return nil, fmt.Errorf("blob %s: %w", location, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes a blob. Deleting an absent blob is not an error.
func (b *Backend) Delete(ctx context.Context, location string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, location)
	return nil
}

// Len reports the number of stored blobs.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
