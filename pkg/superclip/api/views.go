package api

import (
	"net/http"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

// ClipView is the wire representation of a clip. Timestamps are epoch
// milliseconds; optional fields serialize as null when absent.
type ClipView struct {
	ID               string      `json:"id"`
	Kind             string      `json:"kind"`
	CreatedAt        int64       `json:"createdAt"`
	ExpiresAt        int64       `json:"expiresAt"`
	MaxDownloads     int         `json:"maxDownloads"`
	DownloadCount    int         `json:"downloadCount"`
	AccessCode       *string     `json:"accessCode"`
	AccessToken      *string     `json:"accessToken"`
	OwnerID          string      `json:"ownerId"`
	AccessTokenOwner *string     `json:"accessTokenOwner"`
	Payload          PayloadView `json:"payload"`
	DirectURL        *string     `json:"directUrl"`
}

// PayloadView carries exactly one of the two payload variants.
type PayloadView struct {
	Text *string   `json:"text"`
	File *FileView `json:"file"`
}

// FileView describes the stored file of a file clip, including the API
// URL that streams its bytes.
type FileView struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Mime        string `json:"mime"`
	DownloadURL string `json:"downloadUrl"`
}

// TokenView is the wire representation of a persistent token binding.
type TokenView struct {
	Token      string `json:"token"`
	OwnerID    string `json:"ownerId"`
	UpdatedAt  int64  `json:"updatedAt"`
	LastUsedAt *int64 `json:"lastUsedAt"`
	ExpiresAt  int64  `json:"expiresAt"`
}

// ClipListResponse wraps the clips of one owner.
type ClipListResponse struct {
	Items []ClipView `json:"items"`
}

// DeleteResponse reports a successful delete.
type DeleteResponse struct {
	OK bool `json:"ok"`
}

// DownloadResponse returns the clip state after a tracked download. A
// true Removed tells the client this was the last valid access.
type DownloadResponse struct {
	Clip    ClipView `json:"clip"`
	Removed bool     `json:"removed"`
}

func newClipView(clip *superclip.Clip, baseURL string) ClipView {
	view := ClipView{
		ID:            clip.ID.String(),
		Kind:          string(clip.Kind),
		CreatedAt:     clip.CreatedAt.UnixMilli(),
		ExpiresAt:     clip.ExpiresAt.UnixMilli(),
		MaxDownloads:  clip.MaxDownloads,
		DownloadCount: clip.DownloadCount,
		OwnerID:       clip.OwnerID,
	}
	if clip.AccessCode != "" {
		view.AccessCode = &clip.AccessCode
	}
	if clip.AccessToken != "" {
		view.AccessToken = &clip.AccessToken
		// The token's bound owner is by construction the clip's owner.
		view.AccessTokenOwner = &clip.OwnerID
	}
	if clip.Kind == superclip.ClipKindText {
		view.Payload.Text = &clip.Text
	}
	if clip.File != nil {
		view.Payload.File = &FileView{
			Name:        clip.File.Name,
			Size:        clip.File.Size,
			Mime:        clip.File.Mime,
			DownloadURL: superclip.DownloadURL(clip, baseURL),
		}
	}
	if direct := superclip.DirectURL(clip, baseURL); direct != "" {
		view.DirectURL = &direct
	}
	return view
}

func newTokenView(token *superclip.Token) TokenView {
	view := TokenView{
		Token:     token.Value,
		OwnerID:   token.OwnerID,
		UpdatedAt: token.UpdatedAt.UnixMilli(),
		ExpiresAt: token.ExpiresAt.UnixMilli(),
	}
	if token.LastUsedAt != nil {
		lastUsed := token.LastUsedAt.UnixMilli()
		view.LastUsedAt = &lastUsed
	}
	return view
}

// requestBaseURL reconstructs the externally visible base URL of the
// request, honoring the forwarded protocol set by proxies.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
