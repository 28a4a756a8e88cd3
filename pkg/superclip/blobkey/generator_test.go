package blobkey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimestampGenerator_Generate(t *testing.T) {
	g := NewTimestampGenerator()

	t.Run("keeps the file extension", func(t *testing.T) {
		key := g.Generate("report.pdf", "application/pdf")
		assert.True(t, strings.HasSuffix(key, ".pdf"), key)
	})

	t.Run("falls back to mime extension", func(t *testing.T) {
		key := g.Generate("noext", "application/json")
		assert.True(t, strings.HasSuffix(key, ".json"), key)
	})

	t.Run("unknown mime yields no extension", func(t *testing.T) {
		key := g.Generate("noext", "application/x-unheard-of")
		assert.NotContains(t, key, ".")
	})

	t.Run("drops unsafe extension characters", func(t *testing.T) {
		key := g.Generate("weird.p\x00d/f", "")
		assert.NotContains(t, key, "\x00")
		assert.NotContains(t, key, "/")
	})
}

func TestTimestampGenerator_Uniqueness(t *testing.T) {
	g := NewTimestampGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		key := g.Generate("same-name.bin", "application/octet-stream")
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}
