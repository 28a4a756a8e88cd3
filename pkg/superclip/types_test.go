package superclip_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

func TestClipLifecycleChecks(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("IsExpired", func(t *testing.T) {
		tests := []struct {
			name      string
			expiresAt time.Time
			expired   bool
		}{
			{"before expiry", now.Add(time.Hour), false},
			{"exactly at expiry", now, true},
			{"after expiry", now.Add(-time.Second), true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				clip := &superclip.Clip{ExpiresAt: tt.expiresAt}
				assert.Equal(t, tt.expired, clip.IsExpired(now))
			})
		}
	})

	t.Run("ReachedLimit", func(t *testing.T) {
		clip := &superclip.Clip{MaxDownloads: 3, DownloadCount: 2}
		assert.False(t, clip.ReachedLimit())

		clip.DownloadCount = 3
		assert.True(t, clip.ReachedLimit())

		clip.DownloadCount = 4
		assert.True(t, clip.ReachedLimit())
	})

	t.Run("IsActive", func(t *testing.T) {
		clip := &superclip.Clip{
			ExpiresAt:     now.Add(time.Hour),
			MaxDownloads:  1,
			DownloadCount: 0,
		}
		assert.True(t, clip.IsActive(now))

		clip.DownloadCount = 1
		assert.False(t, clip.IsActive(now))

		clip.DownloadCount = 0
		clip.ExpiresAt = now
		assert.False(t, clip.IsActive(now))
	})
}

func TestTokenIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	token := &superclip.Token{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, token.IsExpired(now))

	token.ExpiresAt = now
	assert.True(t, token.IsExpired(now))
}

func TestClipKindIsValid(t *testing.T) {
	assert.True(t, superclip.ClipKindText.IsValid())
	assert.True(t, superclip.ClipKindFile.IsValid())
	assert.False(t, superclip.ClipKind("image").IsValid())
	assert.False(t, superclip.ClipKind("").IsValid())
}
