package superclip

import (
	"errors"
	"fmt"
)

// Common errors returned by the service and repositories.
var (
	// ErrClipNotFound is returned when a clip cannot be located, is not
	// owned by the caller, or resolved to an inactive record. The same
	// error covers all three cases so callers cannot distinguish a clip
	// that never existed from one that just expired.
	ErrClipNotFound = errors.New("clip not found")

	// ErrClipGone is returned when a clip exists but can no longer be
	// served: expired or at its download limit at the moment of access.
	ErrClipGone = errors.New("clip expired or download limit reached")

	// ErrBlobMissing is returned when a file clip's backing blob is
	// absent from the blob store.
	ErrBlobMissing = errors.New("stored file missing")

	// ErrAccessCodeTaken is returned when a requested access code is
	// already used by another clip.
	ErrAccessCodeTaken = errors.New("access code already taken")

	// ErrInvalidExpiry is returned when a clip's expiry is not strictly
	// in the future at creation time.
	ErrInvalidExpiry = errors.New("expiry must be in the future")

	// ErrOwnerRequired is returned when an owner id is empty after
	// trimming whitespace.
	ErrOwnerRequired = errors.New("owner id required")

	// ErrInvalidKind is returned for a clip kind other than text or file.
	ErrInvalidKind = errors.New("invalid clip kind")

	// ErrTextRequired is returned when a text clip carries no text.
	ErrTextRequired = errors.New("text payload required")

	// ErrFileRequired is returned when a file clip carries no file payload.
	ErrFileRequired = errors.New("file payload required")

	// ErrFileTooLarge is returned when a decoded upload exceeds the
	// configured size limit.
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrInvalidDataURL is returned when an upload's data URL cannot be
	// parsed or decoded.
	ErrInvalidDataURL = errors.New("invalid data url")

	// ErrNoBlobStore is returned when a file clip is created on a
	// service configured without a blob store.
	ErrNoBlobStore = errors.New("no blob store configured")

	// ErrTokenInvalid is returned when a persistent token or its owner
	// id is empty after trimming whitespace.
	ErrTokenInvalid = errors.New("persistent token invalid")

	// ErrTokenNotRegistered is returned when a persistent token has no
	// registration record.
	ErrTokenNotRegistered = errors.New("persistent token not registered")

	// ErrTokenExpired is returned when a persistent token's TTL has
	// elapsed. The stale record is removed as a side effect.
	ErrTokenExpired = errors.New("persistent token expired")

	// ErrTokenOccupied is returned when a persistent token is live and
	// bound to a different owner.
	ErrTokenOccupied = errors.New("persistent token occupied by another device")

	// ErrCaptchaFailed is returned when the configured captcha verifier
	// rejects a create request.
	ErrCaptchaFailed = errors.New("captcha verification failed")
)

// ClipError provides context about clip-related errors.
type ClipError struct {
	ClipID string
	Op     string
	Err    error
}

func (e *ClipError) Error() string {
	return fmt.Sprintf("clip %s: %s: %v", e.ClipID, e.Op, e.Err)
}

func (e *ClipError) Unwrap() error {
	return e.Err
}

// StorageError provides context about blob store errors.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
