package superclip_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

func TestSanitizeMaxDownloads(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name      string
		requested *int
		want      int
	}{
		{"missing falls back to default", nil, 10},
		{"zero clamps to one", intPtr(0), 1},
		{"negative clamps to one", intPtr(-5), 1},
		{"in range passes through", intPtr(42), 42},
		{"one is allowed", intPtr(1), 1},
		{"cap passes through", intPtr(500), 500},
		{"above cap clamps to cap", intPtr(501), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := superclip.SanitizeMaxDownloads(tt.requested, 10, 500)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLimitsOrDefaults(t *testing.T) {
	t.Run("zero value gets all defaults", func(t *testing.T) {
		limits := superclip.Limits{}.OrDefaults()
		assert.Equal(t, superclip.DefaultLimits(), limits)
	})

	t.Run("set fields are kept", func(t *testing.T) {
		limits := superclip.Limits{
			DefaultMaxDownloads: 3,
			TokenTTL:            time.Hour,
		}.OrDefaults()

		assert.Equal(t, 3, limits.DefaultMaxDownloads)
		assert.Equal(t, time.Hour, limits.TokenTTL)
		assert.Equal(t, 500, limits.MaxAllowedDownloads)
		assert.Equal(t, int64(50<<20), limits.MaxFileSize)
	})
}

func TestTokenTTLFromHours(t *testing.T) {
	assert.Equal(t, 720*time.Hour, superclip.TokenTTLFromHours(720))
	assert.Equal(t, time.Hour, superclip.TokenTTLFromHours(0))
	assert.Equal(t, time.Hour, superclip.TokenTTLFromHours(-3))
}
