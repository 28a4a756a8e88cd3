package superclip

import "time"

// Limits bundles the configurable bounds applied during clip and token
// lifecycle decisions.
type Limits struct {
	// DefaultMaxDownloads is used when a create request carries no
	// download limit.
	DefaultMaxDownloads int
	// MaxAllowedDownloads caps any requested download limit.
	MaxAllowedDownloads int
	// MaxFileSize caps the decoded size of an uploaded blob, in bytes.
	MaxFileSize int64
	// TokenTTL is how long a persistent token binding stays live after
	// each registration or use.
	TokenTTL time.Duration
}

// DefaultLimits returns the standard bounds: 10 downloads by default,
// 500 at most, 50 MiB uploads, 30 day token TTL.
func DefaultLimits() Limits {
	return Limits{
		DefaultMaxDownloads: 10,
		MaxAllowedDownloads: 500,
		MaxFileSize:         50 << 20,
		TokenTTL:            720 * time.Hour,
	}
}

// OrDefaults fills any unset field from DefaultLimits.
func (l Limits) OrDefaults() Limits {
	d := DefaultLimits()
	if l.DefaultMaxDownloads <= 0 {
		l.DefaultMaxDownloads = d.DefaultMaxDownloads
	}
	if l.MaxAllowedDownloads <= 0 {
		l.MaxAllowedDownloads = d.MaxAllowedDownloads
	}
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = d.MaxFileSize
	}
	if l.TokenTTL <= 0 {
		l.TokenTTL = d.TokenTTL
	}
	return l
}

// SanitizeMaxDownloads normalizes a requested download limit: missing
// values fall back to the default, everything else is clamped into
// [1, maxAllowed].
func SanitizeMaxDownloads(requested *int, def, maxAllowed int) int {
	if requested == nil {
		return def
	}
	n := *requested
	if n < 1 {
		n = 1
	}
	if n > maxAllowed {
		n = maxAllowed
	}
	return n
}

// TokenTTLFromHours converts a configured token expiry in hours to a
// duration, with a floor of one hour.
func TokenTTLFromHours(hours int) time.Duration {
	if hours < 1 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}
