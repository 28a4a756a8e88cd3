package superclip

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// service is the default Service implementation.
type service struct {
	repository Repository
	blobs      BlobStore
	captcha    CaptchaVerifier
	limits     Limits
	logger     *slog.Logger
}

func (s *service) CreateClip(ctx context.Context, req CreateClipRequest) (*Clip, error) {
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if !req.Kind.IsValid() {
		return nil, ErrInvalidKind
	}

	// Captcha runs first so a rejected request never touches the store.
	if s.captcha != nil {
		if err := s.captcha.Verify(ctx, req.CaptchaToken); err != nil {
			s.logger.Warn("captcha verification failed", "error", err)
			return nil, ErrCaptchaFailed
		}
	}

	accessToken := strings.TrimSpace(req.AccessToken)
	if accessToken != "" {
		if _, err := s.repository.EnsureTokenOwner(ctx, accessToken, ownerID); err != nil {
			if !errors.Is(err, ErrTokenNotRegistered) {
				return nil, err
			}
			// Unknown tokens are claimed on first use.
			if _, err := s.repository.RegisterToken(ctx, accessToken, ownerID); err != nil {
				return nil, err
			}
		}
	}

	var blob *StoredFile
	switch req.Kind {
	case ClipKindText:
		if strings.TrimSpace(req.Text) == "" {
			return nil, ErrTextRequired
		}
	case ClipKindFile:
		if req.File == nil {
			return nil, ErrFileRequired
		}
		if s.blobs == nil {
			return nil, ErrNoBlobStore
		}
		mimeType, data, err := ParseDataURL(req.File.DataURL)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > s.limits.MaxFileSize {
			return nil, ErrFileTooLarge
		}
		name := req.File.Name
		if name == "" {
			name = "uploaded"
		}
		blob, err = s.blobs.Put(ctx, name, mimeType, data)
		if err != nil {
			return nil, err
		}
	}

	clip, err := s.repository.CreateClip(ctx, CreateClipParams{
		Kind:         req.Kind,
		ExpiresAt:    time.UnixMilli(req.ExpiresAt).UTC(),
		MaxDownloads: req.MaxDownloads,
		AccessCode:   strings.TrimSpace(req.AccessCode),
		AccessToken:  accessToken,
		OwnerID:      ownerID,
		Text:         req.Text,
		File:         blob,
	})
	if err != nil {
		if blob != nil {
			if delErr := s.blobs.Delete(ctx, blob.Location); delErr != nil {
				s.logger.Warn("failed to roll back blob", "location", blob.Location, "error", delErr)
			}
		}
		return nil, err
	}
	return clip, nil
}

func (s *service) GetClip(ctx context.Context, id uuid.UUID, ownerID string) (*Clip, error) {
	ownerID = strings.TrimSpace(ownerID)
	clip, err := s.repository.GetClip(ctx, id)
	if err != nil {
		return nil, err
	}
	if clip.OwnerID != ownerID {
		return nil, ErrClipNotFound
	}
	if !clip.IsActive(time.Now().UTC()) {
		s.discardClip(ctx, clip)
		return nil, ErrClipNotFound
	}
	return clip, nil
}

func (s *service) GetClipByCode(ctx context.Context, code string) (*Clip, error) {
	clip, err := s.repository.GetClipByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !clip.IsActive(time.Now().UTC()) {
		s.discardClip(ctx, clip)
		return nil, ErrClipNotFound
	}
	return clip, nil
}

func (s *service) ListClips(ctx context.Context, ownerID string) ([]*Clip, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if _, err := s.repository.PurgeInactive(ctx); err != nil {
		return nil, err
	}
	return s.repository.ListClips(ctx, ownerID)
}

func (s *service) DeleteClip(ctx context.Context, id uuid.UUID, ownerID string) error {
	return s.repository.DeleteClip(ctx, id, ownerID)
}

func (s *service) RegisterDownload(ctx context.Context, id uuid.UUID, ownerID string) (*Clip, bool, error) {
	return s.repository.IncrementDownloads(ctx, id, ownerID)
}

func (s *service) DownloadClipFile(ctx context.Context, id uuid.UUID, ownerID string) (*FileDownload, error) {
	ownerID = strings.TrimSpace(ownerID)
	clip, err := s.repository.GetClip(ctx, id)
	if err != nil {
		return nil, err
	}
	if clip.OwnerID != ownerID {
		return nil, ErrClipNotFound
	}
	if clip.File == nil {
		s.discardClip(ctx, clip)
		return nil, ErrBlobMissing
	}
	if !clip.IsActive(time.Now().UTC()) {
		s.discardClip(ctx, clip)
		return nil, ErrClipGone
	}
	reader, err := s.OpenBlob(ctx, clip)
	if err != nil {
		return nil, err
	}
	updated, removed, err := s.repository.IncrementDownloads(ctx, id, ownerID)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return &FileDownload{Clip: updated, Reader: reader, Removed: removed}, nil
}

func (s *service) ResolveClip(ctx context.Context, identifier string) (*Clip, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil, ErrClipNotFound
	}
	clip, err := s.lookupClip(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	if clip == nil {
		return nil, ErrClipNotFound
	}
	if !clip.IsActive(time.Now().UTC()) {
		s.discardClip(ctx, clip)
		return nil, ErrClipNotFound
	}
	return clip, nil
}

func (s *service) OpenBlob(ctx context.Context, clip *Clip) (io.ReadCloser, error) {
	if clip.File == nil {
		s.discardClip(ctx, clip)
		return nil, ErrBlobMissing
	}
	if s.blobs == nil {
		return nil, ErrNoBlobStore
	}
	reader, err := s.blobs.Open(ctx, clip.File.Location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.discardClip(ctx, clip)
			return nil, ErrBlobMissing
		}
		return nil, err
	}
	return reader, nil
}

func (s *service) RegisterToken(ctx context.Context, req RegisterTokenRequest) (*Token, error) {
	return s.repository.RegisterToken(ctx, strings.TrimSpace(req.Token), strings.TrimSpace(req.OwnerID))
}

func (s *service) EnsureTokenOwner(ctx context.Context, token, ownerID string) (*Token, error) {
	return s.repository.EnsureTokenOwner(ctx, strings.TrimSpace(token), strings.TrimSpace(ownerID))
}

func (s *service) PurgeInactive(ctx context.Context) (int, error) {
	return s.repository.PurgeInactive(ctx)
}

// discardClip removes a clip found to be unavailable during a read,
// so stale records disappear on access instead of waiting for the
// reaper.
func (s *service) discardClip(ctx context.Context, clip *Clip) {
	if err := s.repository.DeleteClip(ctx, clip.ID, clip.OwnerID); err != nil && !errors.Is(err, ErrClipNotFound) {
		s.logger.Warn("failed to discard inactive clip", "clip_id", clip.ID, "error", err)
	}
}
