package superclip

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// Service provides the clip lifecycle operations: creation with
// access-code and token binding rules, owner-scoped reads and deletes,
// download counting, free-form identifier resolution, and purge of
// inactive records.
type Service interface {
	// CreateClip validates the request, verifies the captcha token when
	// a verifier is configured, binds the persistent token when one is
	// supplied, stores the blob for file clips, and inserts the clip.
	CreateClip(ctx context.Context, req CreateClipRequest) (*Clip, error)

	// GetClip returns an active clip by id, scoped to its owner. An
	// inactive clip is deleted on access and reported as not found.
	GetClip(ctx context.Context, id uuid.UUID, ownerID string) (*Clip, error)

	// GetClipByCode returns an active clip by access code, without
	// owner scoping. An inactive clip is deleted on access and reported
	// as not found.
	GetClipByCode(ctx context.Context, code string) (*Clip, error)

	// ListClips purges inactive clips and returns the owner's remaining
	// clips, newest first.
	ListClips(ctx context.Context, ownerID string) ([]*Clip, error)

	// DeleteClip removes an owner's clip and its backing blob.
	DeleteClip(ctx context.Context, id uuid.UUID, ownerID string) error

	// RegisterDownload increments a clip's download count and reports
	// whether this access consumed the last allowed download. Callers
	// that receive removed=true should delete the clip once they are
	// done serving it.
	RegisterDownload(ctx context.Context, id uuid.UUID, ownerID string) (clip *Clip, removed bool, err error)

	// DownloadClipFile checks that the clip is an active file clip owned
	// by ownerID, opens its blob, and registers the download. The caller
	// owns the returned reader and deletes the clip afterwards when
	// Removed is set.
	DownloadClipFile(ctx context.Context, id uuid.UUID, ownerID string) (*FileDownload, error)

	// ResolveClip maps a free-form identifier (access code,
	// "owner.code", "owner.token", or bare token) to one active clip.
	ResolveClip(ctx context.Context, identifier string) (*Clip, error)

	// OpenBlob opens the backing blob of a file clip. A clip whose blob
	// is missing is deleted and reported with ErrBlobMissing.
	OpenBlob(ctx context.Context, clip *Clip) (io.ReadCloser, error)

	// RegisterToken claims or refreshes a persistent token binding.
	RegisterToken(ctx context.Context, req RegisterTokenRequest) (*Token, error)

	// EnsureTokenOwner validates that a token is live and bound to
	// ownerID, refreshing its last-used time and TTL.
	EnsureTokenOwner(ctx context.Context, token, ownerID string) (*Token, error)

	// PurgeInactive deletes every expired or exhausted clip and returns
	// the number removed.
	PurgeInactive(ctx context.Context) (int, error)
}

// Option configures a service.
type Option func(*service)

// WithRepository sets the repository for the service.
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob store used for file clip payloads.
func WithBlobStore(blobs BlobStore) Option {
	return func(s *service) {
		s.blobs = blobs
	}
}

// WithCaptchaVerifier enables captcha verification on clip creation.
func WithCaptchaVerifier(verifier CaptchaVerifier) Option {
	return func(s *service) {
		s.captcha = verifier
	}
}

// WithLimits overrides the default lifecycle bounds.
func WithLimits(limits Limits) Option {
	return func(s *service) {
		s.limits = limits
	}
}

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service with the given options. A repository is
// required; everything else has defaults.
func New(opts ...Option) (Service, error) {
	svc := &service{
		limits: DefaultLimits(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	svc.limits = svc.limits.OrDefaults()
	return svc, nil
}
