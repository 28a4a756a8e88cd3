// Package postgres provides a repository implementation backed by
// PostgreSQL through pgx. Unlike the memory and sqlite repositories,
// which serialize read-check-write sequences with their own locks, this
// implementation pushes each lifecycle transition into a single
// conditional statement so the database resolves races.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// schemaStatements is the DDL applied by EnsureSchema. Statements are
// idempotent so the call is safe on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS clips (
		seq BIGINT GENERATED ALWAYS AS IDENTITY,
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		max_downloads INTEGER NOT NULL,
		download_count INTEGER NOT NULL DEFAULT 0,
		access_code TEXT UNIQUE,
		access_token TEXT,
		owner_id TEXT NOT NULL,
		text_content TEXT,
		file_name TEXT,
		file_location TEXT,
		file_size BIGINT,
		file_mime TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clips_expires_at ON clips (expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_clips_access_token ON clips (access_token)`,
	`CREATE INDEX IF NOT EXISTS idx_clips_owner_id ON clips (owner_id)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		token TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		last_used_at TIMESTAMPTZ,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON tokens (expires_at)`,
}

const clipColumns = `id, kind, created_at, expires_at, max_downloads, download_count,
	access_code, access_token, owner_id, text_content,
	file_name, file_location, file_size, file_mime`

// Config holds the repository collaborators.
type Config struct {
	// Blobs, when set, receives best-effort deletes for the backing
	// blobs of removed clips.
	Blobs superclip.BlobStore
	// Limits are the lifecycle bounds; unset fields use defaults.
	Limits superclip.Limits
	// Logger receives operational messages. Defaults to slog.Default().
	Logger *slog.Logger
}

// Repository implements superclip.Repository using PostgreSQL.
type Repository struct {
	db     DBTX
	blobs  superclip.BlobStore
	limits superclip.Limits
	logger *slog.Logger
}

// New creates a new PostgreSQL repository on an existing connection or
// transaction.
func New(db DBTX, cfg Config) *Repository {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		blobs:  cfg.Blobs,
		limits: cfg.Limits.OrDefaults(),
		logger: logger,
	}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool.
func NewWithPool(pool *pgxpool.Pool, cfg Config) *Repository {
	return New(pool, cfg)
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres repository: ensure schema: %w", err)
		}
	}
	return nil
}

// handlePostgresError maps driver errors onto domain errors where a
// constraint carries the meaning, and annotates the rest.
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "access_code") {
				return superclip.ErrAccessCodeTaken
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - run EnsureSchema or apply migrations")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
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
		File:         params.File,
	}

	query := `
		INSERT INTO clips (
			id, kind, created_at, expires_at, max_downloads, download_count,
			access_code, access_token, owner_id, text_content,
			file_name, file_location, file_size, file_mime
		) VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10, $11, $12, $13)`

	var fileName, fileLocation, fileMime *string
	var fileSize *int64
	if clip.File != nil {
		fileName = &clip.File.Name
		fileLocation = &clip.File.Location
		fileSize = &clip.File.Size
		fileMime = &clip.File.Mime
	}
	_, err := r.db.Exec(ctx, query,
		clip.ID, string(clip.Kind), clip.CreatedAt, clip.ExpiresAt, clip.MaxDownloads,
		nullableText(clip.AccessCode), nullableText(clip.AccessToken), clip.OwnerID,
		nullableText(clip.Text), fileName, fileLocation, fileSize, fileMime)
	if err != nil {
		return nil, r.handlePostgresError("create clip", err)
	}
	return clip, nil
}

func (r *Repository) GetClip(ctx context.Context, id uuid.UUID) (*superclip.Clip, error) {
	query := "SELECT " + clipColumns + " FROM clips WHERE id = $1"
	return r.selectClip(ctx, query, id)
}

func (r *Repository) GetClipByCode(ctx context.Context, code string) (*superclip.Clip, error) {
	query := "SELECT " + clipColumns + " FROM clips WHERE access_code = $1"
	return r.selectClip(ctx, query, code)
}

func (r *Repository) GetClipByCodeAndOwner(ctx context.Context, code, ownerID string) (*superclip.Clip, error) {
	query := "SELECT " + clipColumns + " FROM clips WHERE access_code = $1 AND owner_id = $2"
	return r.selectClip(ctx, query, code, ownerID)
}

func (r *Repository) GetClipByToken(ctx context.Context, token, ownerID string) (*superclip.Clip, error) {
	if ownerID != "" {
		query := "SELECT " + clipColumns + ` FROM clips
			WHERE access_token = $1 AND owner_id = $2
			ORDER BY created_at DESC, seq DESC LIMIT 1`
		return r.selectClip(ctx, query, token, ownerID)
	}
	query := "SELECT " + clipColumns + ` FROM clips
		WHERE access_token = $1
		ORDER BY created_at DESC, seq DESC LIMIT 1`
	return r.selectClip(ctx, query, token)
}

func (r *Repository) ListClips(ctx context.Context, ownerID string) ([]*superclip.Clip, error) {
	query := "SELECT " + clipColumns + ` FROM clips
		WHERE owner_id = $1
		ORDER BY created_at DESC, seq DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("list clips", err)
	}
	defer rows.Close()

	var clips []*superclip.Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list clips", err)
	}
	return clips, nil
}

func (r *Repository) DeleteClip(ctx context.Context, id uuid.UUID, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return superclip.ErrClipNotFound
	}

	query := `DELETE FROM clips WHERE id = $1 AND owner_id = $2 RETURNING file_location`
	var fileLocation *string
	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(&fileLocation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return superclip.ErrClipNotFound
		}
		return r.handlePostgresError("delete clip", err)
	}

	if fileLocation != nil {
		r.deleteBlob(ctx, *fileLocation)
	}
	return nil
}

func (r *Repository) IncrementDownloads(ctx context.Context, id uuid.UUID, ownerID string) (*superclip.Clip, bool, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, false, superclip.ErrClipNotFound
	}

	query := `
		UPDATE clips SET download_count = download_count + 1
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + clipColumns
	clip, err := scanClip(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, superclip.ErrClipNotFound
		}
		return nil, false, r.handlePostgresError("increment downloads", err)
	}
	return clip, clip.ReachedLimit(), nil
}

func (r *Repository) PurgeInactive(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	query := `
		DELETE FROM clips
		WHERE expires_at <= $1 OR download_count >= max_downloads
		RETURNING file_location`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return 0, r.handlePostgresError("purge inactive", err)
	}
	defer rows.Close()

	count := 0
	var locations []string
	for rows.Next() {
		count++
		var location *string
		if err := rows.Scan(&location); err != nil {
			return 0, r.handlePostgresError("purge inactive", err)
		}
		if location != nil {
			locations = append(locations, *location)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, r.handlePostgresError("purge inactive", err)
	}

	for _, location := range locations {
		r.deleteBlob(ctx, location)
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

	freshOwner := uuid.NewString()
	insertOwner := ownerID
	if insertOwner == "" {
		insertOwner = freshOwner
	}

	// One statement covers the whole state machine. A fresh token is
	// inserted; an expired row is rebound (the hinted owner reclaims
	// its id, anyone else gets a fresh one); a live row refreshes only
	// when the hint matches its owner. A live row with no matching
	// hint fails the conflict filter, so nothing changes and no row
	// comes back.
	query := `
		INSERT INTO tokens (token, owner_id, updated_at, last_used_at, expires_at)
		VALUES ($1, $2, $3, NULL, $4)
		ON CONFLICT (token) DO UPDATE SET
			owner_id = CASE
				WHEN tokens.expires_at <= $3 THEN
					CASE WHEN $5 <> '' AND $5 = tokens.owner_id THEN $5 ELSE $6 END
				ELSE tokens.owner_id
			END,
			updated_at = $3,
			last_used_at = CASE WHEN tokens.expires_at <= $3 THEN NULL ELSE tokens.last_used_at END,
			expires_at = $4
		WHERE tokens.expires_at <= $3 OR ($5 <> '' AND tokens.owner_id = $5)
		RETURNING owner_id, updated_at, last_used_at, expires_at`

	record := &superclip.Token{Value: token}
	var lastUsedAt *time.Time
	err := r.db.QueryRow(ctx, query, token, insertOwner, now, expiresAt, ownerID, freshOwner).
		Scan(&record.OwnerID, &record.UpdatedAt, &lastUsedAt, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, superclip.ErrTokenOccupied
		}
		return nil, r.handlePostgresError("register token", err)
	}
	record.UpdatedAt = record.UpdatedAt.UTC()
	record.ExpiresAt = record.ExpiresAt.UTC()
	if lastUsedAt != nil {
		lastUsed := lastUsedAt.UTC()
		record.LastUsedAt = &lastUsed
	}
	return record, nil
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

	// Optimistic path: touch the row only if it is live and owned by
	// the caller. updated_at is not in the SET list, so RETURNING
	// yields the registration timestamp unchanged.
	query := `
		UPDATE tokens SET last_used_at = $3, expires_at = $4
		WHERE token = $1 AND owner_id = $2 AND expires_at > $3
		RETURNING updated_at`
	var updatedAt time.Time
	err := r.db.QueryRow(ctx, query, token, ownerID, now, newExpires).Scan(&updatedAt)
	if err == nil {
		lastUsed := now
		return &superclip.Token{
			Value:      token,
			OwnerID:    ownerID,
			UpdatedAt:  updatedAt.UTC(),
			LastUsedAt: &lastUsed,
			ExpiresAt:  newExpires,
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, r.handlePostgresError("ensure token owner", err)
	}

	// Diagnose why the touch missed: absent, expired, or held by a
	// different owner.
	var rowOwner string
	var rowExpires time.Time
	err = r.db.QueryRow(ctx, `SELECT owner_id, expires_at FROM tokens WHERE token = $1`, token).
		Scan(&rowOwner, &rowExpires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, superclip.ErrTokenNotRegistered
		}
		return nil, r.handlePostgresError("ensure token owner", err)
	}
	if !rowExpires.After(now) {
		// Remove the stale row unless a concurrent registration
		// already rebound it.
		_, err := r.db.Exec(ctx, `DELETE FROM tokens WHERE token = $1 AND expires_at <= $2`, token, now)
		if err != nil {
			return nil, r.handlePostgresError("ensure token owner", err)
		}
		return nil, superclip.ErrTokenExpired
	}
	return nil, superclip.ErrTokenOccupied
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) selectClip(ctx context.Context, query string, args ...interface{}) (*superclip.Clip, error) {
	clip, err := scanClip(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, superclip.ErrClipNotFound
		}
		return nil, r.handlePostgresError("select clip", err)
	}
	return clip, nil
}

func scanClip(row rowScanner) (*superclip.Clip, error) {
	var clip superclip.Clip
	var kind string
	var accessCode, accessToken, textContent *string
	var fileName, fileLocation, fileMime *string
	var fileSize *int64

	err := row.Scan(
		&clip.ID, &kind, &clip.CreatedAt, &clip.ExpiresAt,
		&clip.MaxDownloads, &clip.DownloadCount,
		&accessCode, &accessToken, &clip.OwnerID, &textContent,
		&fileName, &fileLocation, &fileSize, &fileMime)
	if err != nil {
		return nil, err
	}

	clip.Kind = superclip.ClipKind(kind)
	clip.CreatedAt = clip.CreatedAt.UTC()
	clip.ExpiresAt = clip.ExpiresAt.UTC()
	clip.AccessCode = derefString(accessCode)
	clip.AccessToken = derefString(accessToken)
	clip.Text = derefString(textContent)
	if fileLocation != nil {
		clip.File = &superclip.StoredFile{
			Name:     derefString(fileName),
			Location: *fileLocation,
			Mime:     derefString(fileMime),
		}
		if fileSize != nil {
			clip.File.Size = *fileSize
		}
	}
	return &clip, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *Repository) deleteBlob(ctx context.Context, location string) {
	if location == "" || r.blobs == nil {
		return
	}
	if err := r.blobs.Delete(ctx, location); err != nil {
		r.logger.Warn("failed to delete blob", "location", location, "error", err)
	}
}
