package superclip

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// ClipKind identifies which payload variant a clip carries.
type ClipKind string

const (
	ClipKindText ClipKind = "text"
	ClipKindFile ClipKind = "file"
)

// IsValid checks whether the kind is one of the supported variants.
func (k ClipKind) IsValid() bool {
	return k == ClipKindText || k == ClipKindFile
}

// StoredFile describes an uploaded blob held by a BlobStore. Location
// is the backend-specific key returned by Put; callers treat it as
// opaque.
type StoredFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Mime     string `json:"mime"`
	Location string `json:"location"`
}

// Clip is one shareable unit of text or file content. Timestamps are
// stored with second precision. A clip is mutated only by the
// download-count increment; everything else is immutable after
// creation.
type Clip struct {
	ID            uuid.UUID   `json:"id"`
	Kind          ClipKind    `json:"kind"`
	CreatedAt     time.Time   `json:"created_at"`
	ExpiresAt     time.Time   `json:"expires_at"`
	MaxDownloads  int         `json:"max_downloads"`
	DownloadCount int         `json:"download_count"`
	AccessCode    string      `json:"access_code,omitempty"`
	AccessToken   string      `json:"access_token,omitempty"`
	OwnerID       string      `json:"owner_id"`
	Text          string      `json:"text,omitempty"`
	File          *StoredFile `json:"file,omitempty"`
}

// IsExpired reports whether the clip's expiry has passed at the given
// instant. Expiry is inclusive: a clip expiring exactly now is expired.
func (c *Clip) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ReachedLimit reports whether the download count has reached the
// configured maximum.
func (c *Clip) ReachedLimit() bool {
	return c.DownloadCount >= c.MaxDownloads
}

// IsActive reports whether the clip can still be served: not expired
// and below its download limit.
func (c *Clip) IsActive(now time.Time) bool {
	return !c.IsExpired(now) && !c.ReachedLimit()
}

// Token is a persistent owner binding independent of any single clip.
// It lets a client re-claim the same owner id across sessions by
// presenting the same token value.
type Token struct {
	Value      string     `json:"token"`
	OwnerID    string     `json:"owner_id"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// IsExpired reports whether the token's TTL has elapsed at the given
// instant.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// FileDownload is the result of a file download request: the updated
// clip, an open reader over the blob, and whether this access consumed
// the last allowed download. When Removed is true the caller should
// delete the clip after streaming finishes.
type FileDownload struct {
	Clip    *Clip
	Reader  io.ReadCloser
	Removed bool
}
