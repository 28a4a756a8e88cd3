package superclip

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// CreateClipParams carries a validated clip payload into a repository.
// The repository generates the id and creation timestamp, sanitizes
// MaxDownloads against its configured limits, and enforces access-code
// uniqueness atomically with the insert.
type CreateClipParams struct {
	Kind         ClipKind
	ExpiresAt    time.Time
	MaxDownloads *int
	AccessCode   string
	AccessToken  string
	OwnerID      string
	Text         string
	File         *StoredFile
}

// Repository owns all persisted clip and token state. Implementations
// must make every mutating operation atomic with respect to the others:
// the read-check-write sequence inside create, delete, increment, purge
// and the token operations runs under a single writer discipline.
//
// Lookup methods return ErrClipNotFound (or ErrTokenNotRegistered for
// tokens) when no row matches.
type Repository interface {
	CreateClip(ctx context.Context, params CreateClipParams) (*Clip, error)
	GetClip(ctx context.Context, id uuid.UUID) (*Clip, error)
	GetClipByCode(ctx context.Context, code string) (*Clip, error)
	GetClipByCodeAndOwner(ctx context.Context, code, ownerID string) (*Clip, error)
	// GetClipByToken returns the most recently created clip carrying the
	// token. When ownerID is empty the lookup is not owner-scoped.
	GetClipByToken(ctx context.Context, token, ownerID string) (*Clip, error)
	ListClips(ctx context.Context, ownerID string) ([]*Clip, error)
	// DeleteClip removes a clip and its backing blob. It succeeds only
	// when the clip exists and belongs to ownerID; both a miss and an
	// ownership mismatch return ErrClipNotFound.
	DeleteClip(ctx context.Context, id uuid.UUID, ownerID string) error
	// IncrementDownloads adds one to the clip's download count and
	// reports whether the new count reached the limit.
	IncrementDownloads(ctx context.Context, id uuid.UUID, ownerID string) (*Clip, bool, error)
	// PurgeInactive deletes every clip that is expired or at its
	// download limit, along with backing blobs, and returns the number
	// of clips removed.
	PurgeInactive(ctx context.Context) (int, error)

	// RegisterToken claims or refreshes a persistent token binding.
	// ownerID may be empty, in which case a fresh owner id is generated.
	RegisterToken(ctx context.Context, token, ownerID string) (*Token, error)
	// EnsureTokenOwner validates that a token is live and bound to
	// ownerID, refreshing its last-used time and extending its TTL.
	// Expired tokens are removed and reported with ErrTokenExpired.
	EnsureTokenOwner(ctx context.Context, token, ownerID string) (*Token, error)
}

// BlobStore persists raw upload bytes. Put stores data under a
// generated key and returns the resulting handle; Open returns a reader
// over a previously stored blob or an error satisfying
// errors.Is(err, fs.ErrNotExist) when the blob is gone; Delete is
// best-effort and removing an absent blob is not an error.
type BlobStore interface {
	Put(ctx context.Context, name, mime string, data []byte) (*StoredFile, error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	Delete(ctx context.Context, location string) error
}

// CaptchaVerifier checks a client-submitted challenge token before clip
// creation. A nil error means the token passed.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}
