// Package sqlite provides a repository implementation backed by an
// embedded SQLite database. It is the default persistent store: a
// single file, no external service, safe for concurrent use through a
// connection pool with WAL journaling.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS clips (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    max_downloads INTEGER NOT NULL,
    download_count INTEGER NOT NULL,
    access_code TEXT UNIQUE,
    access_token TEXT,
    owner_id TEXT NOT NULL,
    text_content TEXT,
    file_name TEXT,
    file_location TEXT,
    file_size INTEGER,
    file_mime TEXT
);
CREATE INDEX IF NOT EXISTS idx_clips_expires_at ON clips (expires_at);
CREATE INDEX IF NOT EXISTS idx_clips_access_code ON clips (access_code);
CREATE INDEX IF NOT EXISTS idx_clips_access_token ON clips (access_token);

CREATE TABLE IF NOT EXISTS tokens (
    token TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    last_used_at INTEGER,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON tokens (expires_at);
`

const clipColumns = `id, kind, created_at, expires_at, max_downloads, download_count,
	access_code, access_token, owner_id, text_content,
	file_name, file_location, file_size, file_mime`

// Config holds the parameters for opening a SQLite repository.
type Config struct {
	// Path is the filesystem path to the database file. The parent
	// directory must exist; the file is created if it does not.
	Path string
	// PoolSize is the number of connections in the pool. Defaults to 4
	// if zero or negative.
	PoolSize int
	// Blobs, when set, receives best-effort deletes for the backing
	// blobs of removed clips.
	Blobs superclip.BlobStore
	// Limits are the lifecycle bounds; unset fields use defaults.
	Limits superclip.Limits
	// Logger receives operational messages. Defaults to slog.Default().
	Logger *slog.Logger
}

// Repository is a SQLite-backed superclip.Repository. Mutating
// operations run inside IMMEDIATE transactions, so the read-check-write
// sequences (access-code uniqueness, ownership checks, token state
// transitions) are serialized by SQLite's single-writer lock.
type Repository struct {
	pool   *sqlitex.Pool
	blobs  superclip.BlobStore
	limits superclip.Limits
	logger *slog.Logger
}

// Open creates the connection pool and the schema. The caller must
// call Close when done.
func Open(cfg Config) (*Repository, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite repository: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite repository: opening %s: %w", cfg.Path, err)
	}

	repo := &Repository{
		pool:   pool,
		blobs:  cfg.Blobs,
		limits: cfg.Limits.OrDefaults(),
		logger: logger,
	}
	if err := repo.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("sqlite repository opened", "path", cfg.Path, "pool_size", poolSize)
	return repo, nil
}

// Close closes the connection pool, blocking until all borrowed
// connections are returned.
func (r *Repository) Close() error {
	return r.pool.Close()
}

func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite repository: %s: %w", pragma, err)
		}
	}
	return nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite repository: ensure schema: %w", err)
	}
	defer r.pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		return fmt.Errorf("sqlite repository: ensure schema: %w", err)
	}
	return nil
}

// withTx runs fn on a pooled connection inside an IMMEDIATE
// transaction. The transaction commits when fn returns nil and rolls
// back otherwise.
func (r *Repository) withTx(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite repository: take connection: %w", err)
	}
	defer r.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlite repository: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	return fn(conn)
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

	err := r.withTx(ctx, func(conn *sqlite.Conn) error {
		if clip.AccessCode != "" {
			taken := false
			err := sqlitex.Execute(conn, "SELECT id FROM clips WHERE access_code = ?", &sqlitex.ExecOptions{
				Args: []any{clip.AccessCode},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					taken = true
					return nil
				},
			})
			if err != nil {
				return fmt.Errorf("sqlite repository: check access code: %w", err)
			}
			if taken {
				return superclip.ErrAccessCodeTaken
			}
		}

		var fileName, fileLocation, fileMime any
		var fileSize any
		if clip.File != nil {
			fileName = clip.File.Name
			fileLocation = clip.File.Location
			fileSize = clip.File.Size
			fileMime = clip.File.Mime
		}
		err := sqlitex.Execute(conn, `INSERT INTO clips (
			id, kind, created_at, expires_at, max_downloads, download_count,
			access_code, access_token, owner_id, text_content,
			file_name, file_location, file_size, file_mime
		) VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				clip.ID.String(),
				string(clip.Kind),
				clip.CreatedAt.Unix(),
				clip.ExpiresAt.Unix(),
				clip.MaxDownloads,
				nullableText(clip.AccessCode),
				nullableText(clip.AccessToken),
				clip.OwnerID,
				nullableText(clip.Text),
				fileName,
				fileLocation,
				fileSize,
				fileMime,
			},
		})
		if err != nil {
			return fmt.Errorf("sqlite repository: insert clip: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clip, nil
}

func (r *Repository) GetClip(ctx context.Context, id uuid.UUID) (*superclip.Clip, error) {
	return r.selectClip(ctx, "SELECT "+clipColumns+" FROM clips WHERE id = ?", id.String())
}

func (r *Repository) GetClipByCode(ctx context.Context, code string) (*superclip.Clip, error) {
	return r.selectClip(ctx, "SELECT "+clipColumns+" FROM clips WHERE access_code = ?", code)
}

func (r *Repository) GetClipByCodeAndOwner(ctx context.Context, code, ownerID string) (*superclip.Clip, error) {
	return r.selectClip(ctx, "SELECT "+clipColumns+" FROM clips WHERE access_code = ? AND owner_id = ?", code, ownerID)
}

func (r *Repository) GetClipByToken(ctx context.Context, token, ownerID string) (*superclip.Clip, error) {
	if ownerID != "" {
		return r.selectClip(ctx,
			"SELECT "+clipColumns+" FROM clips WHERE access_token = ? AND owner_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
			token, ownerID)
	}
	return r.selectClip(ctx,
		"SELECT "+clipColumns+" FROM clips WHERE access_token = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		token)
}

func (r *Repository) ListClips(ctx context.Context, ownerID string) ([]*superclip.Clip, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite repository: take connection: %w", err)
	}
	defer r.pool.Put(conn)

	var clips []*superclip.Clip
	err = sqlitex.Execute(conn,
		"SELECT "+clipColumns+" FROM clips WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC",
		&sqlitex.ExecOptions{
			Args: []any{ownerID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				clip, err := scanClip(stmt)
				if err != nil {
					return err
				}
				clips = append(clips, clip)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite repository: list clips: %w", err)
	}
	return clips, nil
}

func (r *Repository) DeleteClip(ctx context.Context, id uuid.UUID, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return superclip.ErrClipNotFound
	}

	var fileLocation string
	err := r.withTx(ctx, func(conn *sqlite.Conn) error {
		found := false
		rowOwner := ""
		err := sqlitex.Execute(conn, "SELECT owner_id, file_location FROM clips WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{id.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				rowOwner = stmt.ColumnText(0)
				fileLocation = stmt.ColumnText(1)
				return nil
			},
		})
		if err != nil {
			return fmt.Errorf("sqlite repository: load clip for delete: %w", err)
		}
		if !found || rowOwner != ownerID {
			return superclip.ErrClipNotFound
		}
		err = sqlitex.Execute(conn, "DELETE FROM clips WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{id.String()},
		})
		if err != nil {
			return fmt.Errorf("sqlite repository: delete clip: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.deleteBlob(ctx, fileLocation)
	return nil
}

func (r *Repository) IncrementDownloads(ctx context.Context, id uuid.UUID, ownerID string) (*superclip.Clip, bool, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, false, superclip.ErrClipNotFound
	}

	var clip *superclip.Clip
	err := r.withTx(ctx, func(conn *sqlite.Conn) error {
		loaded, err := selectClipOn(conn, "SELECT "+clipColumns+" FROM clips WHERE id = ?", id.String())
		if err != nil {
			return err
		}
		if loaded.OwnerID != ownerID {
			return superclip.ErrClipNotFound
		}
		loaded.DownloadCount++
		err = sqlitex.Execute(conn, "UPDATE clips SET download_count = ? WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{loaded.DownloadCount, id.String()},
		})
		if err != nil {
			return fmt.Errorf("sqlite repository: update download count: %w", err)
		}
		clip = loaded
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return clip, clip.ReachedLimit(), nil
}

func (r *Repository) PurgeInactive(ctx context.Context) (int, error) {
	now := time.Now().UTC().Unix()

	var locations []string
	count := 0
	err := r.withTx(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"SELECT file_location FROM clips WHERE expires_at <= ? OR download_count >= max_downloads",
			&sqlitex.ExecOptions{
				Args: []any{now},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					count++
					if !stmt.ColumnIsNull(0) {
						locations = append(locations, stmt.ColumnText(0))
					}
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("sqlite repository: find inactive clips: %w", err)
		}
		err = sqlitex.Execute(conn,
			"DELETE FROM clips WHERE expires_at <= ? OR download_count >= max_downloads",
			&sqlitex.ExecOptions{Args: []any{now}})
		if err != nil {
			return fmt.Errorf("sqlite repository: purge clips: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, location := range locations {
		r.deleteBlob(ctx, location)
	}
	return count, nil
}

// tokenRow mirrors one row of the tokens table.
type tokenRow struct {
	ownerID    string
	updatedAt  int64
	lastUsedAt *int64
	expiresAt  int64
}

func (r *Repository) RegisterToken(ctx context.Context, token, ownerID string) (*superclip.Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, superclip.ErrTokenInvalid
	}
	ownerID = strings.TrimSpace(ownerID)
	now := time.Now().UTC().Truncate(time.Second)
	expiresAt := now.Add(r.limits.TokenTTL)

	record := &superclip.Token{
		Value:     token,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}
	err := r.withTx(ctx, func(conn *sqlite.Conn) error {
		row, err := selectTokenRow(conn, token)
		if err != nil {
			return err
		}
		switch {
		case row == nil:
			record.OwnerID = ownerID
			if record.OwnerID == "" {
				record.OwnerID = uuid.NewString()
			}
			return insertTokenRow(conn, token, record.OwnerID, now.Unix(), expiresAt.Unix())
		case row.expiresAt <= now.Unix():
			// Stale binding: the token is recycled. The previous owner
			// may reclaim it by hinting its old owner id; anyone else
			// gets a fresh one.
			record.OwnerID = uuid.NewString()
			if ownerID != "" && ownerID == row.ownerID {
				record.OwnerID = ownerID
			}
			err := sqlitex.Execute(conn,
				"UPDATE tokens SET owner_id = ?, updated_at = ?, last_used_at = NULL, expires_at = ? WHERE token = ?",
				&sqlitex.ExecOptions{Args: []any{record.OwnerID, now.Unix(), expiresAt.Unix(), token}})
			if err != nil {
				return fmt.Errorf("sqlite repository: rebind token: %w", err)
			}
			return nil
		case ownerID != "" && ownerID == row.ownerID:
			record.OwnerID = row.ownerID
			if row.lastUsedAt != nil {
				lastUsed := time.Unix(*row.lastUsedAt, 0).UTC()
				record.LastUsedAt = &lastUsed
			}
			err := sqlitex.Execute(conn,
				"UPDATE tokens SET updated_at = ?, expires_at = ? WHERE token = ?",
				&sqlitex.ExecOptions{Args: []any{now.Unix(), expiresAt.Unix(), token}})
			if err != nil {
				return fmt.Errorf("sqlite repository: refresh token: %w", err)
			}
			return nil
		default:
			return superclip.ErrTokenOccupied
		}
	})
	if err != nil {
		return nil, err
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

	var (
		record *superclip.Token
		// outcome reports business failures that must still commit:
		// removing an expired token is a write.
		outcome error
	)
	err := r.withTx(ctx, func(conn *sqlite.Conn) error {
		row, err := selectTokenRow(conn, token)
		if err != nil {
			return err
		}
		if row == nil {
			outcome = superclip.ErrTokenNotRegistered
			return nil
		}
		if row.expiresAt <= now.Unix() {
			err := sqlitex.Execute(conn, "DELETE FROM tokens WHERE token = ?", &sqlitex.ExecOptions{
				Args: []any{token},
			})
			if err != nil {
				return fmt.Errorf("sqlite repository: remove expired token: %w", err)
			}
			outcome = superclip.ErrTokenExpired
			return nil
		}
		if row.ownerID != ownerID {
			outcome = superclip.ErrTokenOccupied
			return nil
		}

		err = sqlitex.Execute(conn,
			"UPDATE tokens SET last_used_at = ?, expires_at = ? WHERE token = ?",
			&sqlitex.ExecOptions{Args: []any{now.Unix(), newExpires.Unix(), token}})
		if err != nil {
			return fmt.Errorf("sqlite repository: touch token: %w", err)
		}
		lastUsed := now
		record = &superclip.Token{
			Value:      token,
			OwnerID:    ownerID,
			UpdatedAt:  time.Unix(row.updatedAt, 0).UTC(),
			LastUsedAt: &lastUsed,
			ExpiresAt:  newExpires,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}
	return record, nil
}

func (r *Repository) selectClip(ctx context.Context, query string, args ...any) (*superclip.Clip, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite repository: take connection: %w", err)
	}
	defer r.pool.Put(conn)
	return selectClipOn(conn, query, args...)
}

func selectClipOn(conn *sqlite.Conn, query string, args ...any) (*superclip.Clip, error) {
	var clip *superclip.Clip
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if clip != nil {
				return nil
			}
			loaded, err := scanClip(stmt)
			if err != nil {
				return err
			}
			clip = loaded
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite repository: select clip: %w", err)
	}
	if clip == nil {
		return nil, superclip.ErrClipNotFound
	}
	return clip, nil
}

func scanClip(stmt *sqlite.Stmt) (*superclip.Clip, error) {
	id, err := uuid.Parse(stmt.ColumnText(0))
	if err != nil {
		return nil, fmt.Errorf("sqlite repository: parse clip id %q: %w", stmt.ColumnText(0), err)
	}
	clip := &superclip.Clip{
		ID:            id,
		Kind:          superclip.ClipKind(stmt.ColumnText(1)),
		CreatedAt:     time.Unix(stmt.ColumnInt64(2), 0).UTC(),
		ExpiresAt:     time.Unix(stmt.ColumnInt64(3), 0).UTC(),
		MaxDownloads:  int(stmt.ColumnInt64(4)),
		DownloadCount: int(stmt.ColumnInt64(5)),
		AccessCode:    stmt.ColumnText(6),
		AccessToken:   stmt.ColumnText(7),
		OwnerID:       stmt.ColumnText(8),
		Text:          stmt.ColumnText(9),
	}
	if !stmt.ColumnIsNull(11) {
		clip.File = &superclip.StoredFile{
			Name:     stmt.ColumnText(10),
			Location: stmt.ColumnText(11),
			Size:     stmt.ColumnInt64(12),
			Mime:     stmt.ColumnText(13),
		}
	}
	return clip, nil
}

func selectTokenRow(conn *sqlite.Conn, token string) (*tokenRow, error) {
	var row *tokenRow
	err := sqlitex.Execute(conn,
		"SELECT owner_id, updated_at, last_used_at, expires_at FROM tokens WHERE token = ?",
		&sqlitex.ExecOptions{
			Args: []any{token},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				loaded := &tokenRow{
					ownerID:   stmt.ColumnText(0),
					updatedAt: stmt.ColumnInt64(1),
					expiresAt: stmt.ColumnInt64(3),
				}
				if !stmt.ColumnIsNull(2) {
					lastUsed := stmt.ColumnInt64(2)
					loaded.lastUsedAt = &lastUsed
				}
				row = loaded
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite repository: select token: %w", err)
	}
	return row, nil
}

func insertTokenRow(conn *sqlite.Conn, token, ownerID string, updatedAt, expiresAt int64) error {
	err := sqlitex.Execute(conn,
		"INSERT INTO tokens (token, owner_id, updated_at, last_used_at, expires_at) VALUES (?, ?, ?, NULL, ?)",
		&sqlitex.ExecOptions{Args: []any{token, ownerID, updatedAt, expiresAt}})
	if err != nil {
		return fmt.Errorf("sqlite repository: insert token: %w", err)
	}
	return nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *Repository) deleteBlob(ctx context.Context, location string) {
	if location == "" || r.blobs == nil {
		return
	}
	if err := r.blobs.Delete(ctx, location); err != nil {
		r.logger.Warn("failed to delete blob", "location", location, "error", err)
	}
}
