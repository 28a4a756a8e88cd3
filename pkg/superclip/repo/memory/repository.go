// Package memory provides an in-memory repository implementation for
// testing and development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

// clipRecord pairs a stored clip with an insertion sequence so that
// newest-first ordering stays stable when creation timestamps collide
// at second precision.
type clipRecord struct {
	clip *superclip.Clip
	seq  uint64
}

// Repository is an in-memory superclip.Repository. All state lives in
// maps guarded by one mutex; every mutating operation runs its whole
// read-check-write sequence under the write lock.
type Repository struct {
	mu     sync.RWMutex
	clips  map[uuid.UUID]*clipRecord
	tokens map[string]*superclip.Token
	seq    uint64
	blobs  superclip.BlobStore
	limits superclip.Limits
}

// Config holds the parameters for creating a memory repository.
type Config struct {
	// Blobs, when set, receives best-effort deletes for the backing
	// blobs of removed clips.
	Blobs superclip.BlobStore
	// Limits are the lifecycle bounds; unset fields use defaults.
	Limits superclip.Limits
}

// New creates an empty in-memory repository.
func New(cfg Config) *Repository {
	return &Repository{
		clips:  make(map[uuid.UUID]*clipRecord),
		tokens: make(map[string]*superclip.Token),
		blobs:  cfg.Blobs,
		limits: cfg.Limits.OrDefaults(),
	}
}

func (r *Repository) CreateClip(ctx context.Context, params superclip.CreateClipParams) (*superclip.Clip, error) {
	now := time.Now().UTC()
	if !params.ExpiresAt.After(now) {
		return nil, superclip.ErrInvalidExpiry
	}
	ownerID := strings.TrimSpace(params.OwnerID)
	if ownerID == "" {
		return nil, superclip.ErrOwnerRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if params.AccessCode != "" {
		for _, rec := range r.clips {
			if rec.clip.AccessCode == params.AccessCode {
				return nil, superclip.ErrAccessCodeTaken
			}
		}
	}

	r.seq++
	clip := &superclip.Clip{
		ID:           uuid.New(),
		Kind:         params.Kind,
		CreatedAt:    now.Truncate(time.Second),
		ExpiresAt:    params.ExpiresAt.Truncate(time.Second),
		MaxDownloads: superclip.SanitizeMaxDownloads(params.MaxDownloads, r.limits.DefaultMaxDownloads, r.limits.MaxAllowedDownloads),
		AccessCode:   params.AccessCode,
		AccessToken:  params.AccessToken,
		OwnerID:      ownerID,
		Text:         params.Text,
		File:         cloneStoredFile(params.File),
	}
	r.clips[clip.ID] = &clipRecord{clip: clip, seq: r.seq}
	return cloneClip(clip), nil
}

func (r *Repository) GetClip(ctx context.Context, id uuid.UUID) (*superclip.Clip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.clips[id]
	if !ok {
		return nil, superclip.ErrClipNotFound
	}
	return cloneClip(rec.clip), nil
}

func (r *Repository) GetClipByCode(ctx context.Context, code string) (*superclip.Clip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.clips {
		if rec.clip.AccessCode != "" && rec.clip.AccessCode == code {
			return cloneClip(rec.clip), nil
		}
	}
	return nil, superclip.ErrClipNotFound
}

func (r *Repository) GetClipByCodeAndOwner(ctx context.Context, code, ownerID string) (*superclip.Clip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.clips {
		if rec.clip.AccessCode != "" && rec.clip.AccessCode == code && rec.clip.OwnerID == ownerID {
			return cloneClip(rec.clip), nil
		}
	}
	return nil, superclip.ErrClipNotFound
}

func (r *Repository) GetClipByToken(ctx context.Context, token, ownerID string) (*superclip.Clip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *clipRecord
	for _, rec := range r.clips {
		if rec.clip.AccessToken == "" || rec.clip.AccessToken != token {
			continue
		}
		if ownerID != "" && rec.clip.OwnerID != ownerID {
			continue
		}
		if best == nil || newerThan(rec, best) {
			best = rec
		}
	}
	if best == nil {
		return nil, superclip.ErrClipNotFound
	}
	return cloneClip(best.clip), nil
}

func (r *Repository) ListClips(ctx context.Context, ownerID string) ([]*superclip.Clip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*clipRecord
	for _, rec := range r.clips {
		if rec.clip.OwnerID == ownerID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return newerThan(records[i], records[j])
	})

	clips := make([]*superclip.Clip, len(records))
	for i, rec := range records {
		clips[i] = cloneClip(rec.clip)
	}
	return clips, nil
}

func (r *Repository) DeleteClip(ctx context.Context, id uuid.UUID, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return superclip.ErrClipNotFound
	}

	r.mu.Lock()
	rec, ok := r.clips[id]
	if !ok || rec.clip.OwnerID != ownerID {
		r.mu.Unlock()
		return superclip.ErrClipNotFound
	}
	file := rec.clip.File
	delete(r.clips, id)
	r.mu.Unlock()

	r.deleteBlob(ctx, file)
	return nil
}

func (r *Repository) IncrementDownloads(ctx context.Context, id uuid.UUID, ownerID string) (*superclip.Clip, bool, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, false, superclip.ErrClipNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.clips[id]
	if !ok || rec.clip.OwnerID != ownerID {
		return nil, false, superclip.ErrClipNotFound
	}
	rec.clip.DownloadCount++
	reached := rec.clip.DownloadCount >= rec.clip.MaxDownloads
	return cloneClip(rec.clip), reached, nil
}

func (r *Repository) PurgeInactive(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	var files []*superclip.StoredFile
	count := 0
	for id, rec := range r.clips {
		if rec.clip.IsExpired(now) || rec.clip.ReachedLimit() {
			files = append(files, rec.clip.File)
			delete(r.clips, id)
			count++
		}
	}
	r.mu.Unlock()

	for _, file := range files {
		r.deleteBlob(ctx, file)
	}
	return count, nil
}

func (r *Repository) RegisterToken(ctx context.Context, token, ownerID string) (*superclip.Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, superclip.ErrTokenInvalid
	}
	ownerID = strings.TrimSpace(ownerID)
	now := time.Now().UTC().Truncate(time.Second)
	expiresAt := now.Add(r.limits.TokenTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tokens[token]
	if ok {
		if existing.IsExpired(now) {
			// Stale binding: the token is recycled. The previous owner
			// may reclaim it by hinting its old owner id; anyone else
			// gets a fresh one.
			assigned := uuid.NewString()
			if ownerID != "" && ownerID == existing.OwnerID {
				assigned = ownerID
			}
			rec := &superclip.Token{
				Value:     token,
				OwnerID:   assigned,
				UpdatedAt: now,
				ExpiresAt: expiresAt,
			}
			r.tokens[token] = rec
			return cloneToken(rec), nil
		}
		if ownerID != "" && ownerID == existing.OwnerID {
			existing.UpdatedAt = now
			existing.ExpiresAt = expiresAt
			return cloneToken(existing), nil
		}
		return nil, superclip.ErrTokenOccupied
	}

	assigned := ownerID
	if assigned == "" {
		assigned = uuid.NewString()
	}
	rec := &superclip.Token{
		Value:     token,
		OwnerID:   assigned,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}
	r.tokens[token] = rec
	return cloneToken(rec), nil
}

func (r *Repository) EnsureTokenOwner(ctx context.Context, token, ownerID string) (*superclip.Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, superclip.ErrTokenInvalid
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, superclip.ErrTokenInvalid
	}
	now := time.Now().UTC().Truncate(time.Second)
	newExpires := now.Add(r.limits.TokenTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tokens[token]
	if !ok {
		return nil, superclip.ErrTokenNotRegistered
	}
	if existing.IsExpired(now) {
		delete(r.tokens, token)
		return nil, superclip.ErrTokenExpired
	}
	if existing.OwnerID != ownerID {
		return nil, superclip.ErrTokenOccupied
	}

	lastUsed := now
	existing.LastUsedAt = &lastUsed
	existing.ExpiresAt = newExpires
	return cloneToken(existing), nil
}

// newerThan orders records newest first by creation time, breaking
// second-precision ties by insertion order.
func newerThan(a, b *clipRecord) bool {
	if !a.clip.CreatedAt.Equal(b.clip.CreatedAt) {
		return a.clip.CreatedAt.After(b.clip.CreatedAt)
	}
	return a.seq > b.seq
}

func (r *Repository) deleteBlob(ctx context.Context, file *superclip.StoredFile) {
	if file == nil || r.blobs == nil {
		return
	}
	_ = r.blobs.Delete(ctx, file.Location)
}

func cloneClip(c *superclip.Clip) *superclip.Clip {
	cp := *c
	cp.File = cloneStoredFile(c.File)
	return &cp
}

func cloneStoredFile(f *superclip.StoredFile) *superclip.StoredFile {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func cloneToken(t *superclip.Token) *superclip.Token {
	cp := *t
	if t.LastUsedAt != nil {
		lastUsed := *t.LastUsedAt
		cp.LastUsedAt = &lastUsed
	}
	return &cp
}
