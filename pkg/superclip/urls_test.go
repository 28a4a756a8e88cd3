package superclip_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

func TestDirectURL(t *testing.T) {
	tests := []struct {
		name string
		clip superclip.Clip
		want string
	}{
		{
			name: "access code wins",
			clip: superclip.Clip{OwnerID: "owner-1", AccessCode: "12345", AccessToken: "long-token"},
			want: "https://clip.example.com/owner-1.12345",
		},
		{
			name: "token used without code",
			clip: superclip.Clip{OwnerID: "owner-1", AccessToken: "long-token"},
			want: "https://clip.example.com/owner-1.long-token",
		},
		{
			name: "neither yields empty",
			clip: superclip.Clip{OwnerID: "owner-1"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := superclip.DirectURL(&tt.clip, "https://clip.example.com/")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDownloadURL(t *testing.T) {
	id := uuid.MustParse("0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0")
	clip := &superclip.Clip{ID: id, OwnerID: "owner with spaces"}

	got := superclip.DownloadURL(clip, "http://localhost:5173")
	assert.Equal(t, "http://localhost:5173/api/clips/0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0/file?ownerId=owner+with+spaces", got)
}
