// Package blobkey generates storage keys for uploaded blobs.
package blobkey

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// Generator produces a storage key for an uploaded blob from its
// display name and mime type. Keys must be unique within a store and
// safe to use as file names.
type Generator interface {
	Generate(fileName, mimeType string) string
}

// TimestampGenerator names blobs by UTC timestamp with microsecond
// precision plus the original file extension, falling back to an
// extension guessed from the mime type. A rolling sequence number keeps
// keys unique when two uploads land in the same microsecond.
type TimestampGenerator struct {
	seq atomic.Uint64
}

// NewTimestampGenerator creates the default key generator.
func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{}
}

// Generate implements Generator.
func (g *TimestampGenerator) Generate(fileName, mimeType string) string {
	now := time.Now().UTC()
	seq := g.seq.Add(1) % 1000
	return fmt.Sprintf("%s%06d%03d%s",
		now.Format("20060102150405"),
		now.Nanosecond()/1000,
		seq,
		blobExtension(fileName, mimeType),
	)
}

// blobExtension picks the stored extension: the name's own extension
// when present, otherwise one guessed from the mime type.
func blobExtension(fileName, mimeType string) string {
	if ext := sanitizeExtension(filepath.Ext(fileName)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// sanitizeExtension keeps only characters safe for file names.
func sanitizeExtension(ext string) string {
	var b strings.Builder
	for _, r := range ext {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() <= 1 {
		return ""
	}
	return b.String()
}
