// Package fs provides a filesystem blob store. Uploads land as flat
// files under a base directory, named by timestamp so keys never
// collide with user-controlled input.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
	"github.com/pixia1234/super-clipboard/pkg/superclip/blobkey"
)

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// Backend is a filesystem implementation of the superclip.BlobStore
// interface.
type Backend struct {
	baseDir string
	keys    blobkey.Generator
}

// New creates a new filesystem storage backend, creating the base
// directory if it does not exist.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Backend{
		baseDir: config.BaseDir,
		keys:    blobkey.NewTimestampGenerator(),
	}, nil
}

// Put writes data to a freshly generated file under the base directory.
func (b *Backend) Put(ctx context.Context, name, mime string, data []byte) (*superclip.StoredFile, error) {
	key := b.keys.Generate(name, mime)
	path := filepath.Join(b.baseDir, key)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, &superclip.StorageError{Backend: "fs", Op: "put", Err: err}
	}
	return &superclip.StoredFile{
		Name:     name,
		Size:     int64(len(data)),
		Mime:     mime,
		Location: key,
	}, nil
}

// Open opens the backing file for a stored blob. A missing file
// surfaces as an error satisfying errors.Is(err, fs.ErrNotExist).
func (b *Backend) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	path, err := b.resolve(location)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, &superclip.StorageError{Backend: "fs", Op: "open", Err: err}
	}
	return file, nil
}

// Delete removes the backing file. Deleting an absent blob is not an
// error.
func (b *Backend) Delete(ctx context.Context, location string) error {
	path, err := b.resolve(location)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &superclip.StorageError{Backend: "fs", Op: "delete", Err: err}
	}
	return nil
}

// resolve joins a stored key with the base directory, rejecting keys
// that would escape it.
func (b *Backend) resolve(location string) (string, error) {
	if location == "" || location != filepath.Base(location) {
		return "", fmt.Errorf("blob %s: %w", location, fs.ErrNotExist)
	}
	return filepath.Join(b.baseDir, location), nil
}
