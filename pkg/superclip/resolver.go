package superclip

import (
	"context"
	"errors"
	"strings"
)

// Clip resolution tries an ordered list of strategies and stops at the
// first hit. The order is part of the contract:
//
//  1. the whole identifier as an access code (global, no owner scoping)
//  2. an "owner.remainder" composite: a 5-digit remainder is tried as
//     an owner-scoped access code first, then as an owner-scoped token
//  3. the whole identifier as a bare token, most recent clip first
type resolveStrategy func(ctx context.Context, s *service, identifier string) (*Clip, error)

var resolveStrategies = []resolveStrategy{
	resolveByCode,
	resolveByOwnerComposite,
	resolveByBareToken,
}

// lookupClip runs the resolution strategies in order. It returns
// (nil, nil) when no strategy matched.
func (s *service) lookupClip(ctx context.Context, identifier string) (*Clip, error) {
	for _, strategy := range resolveStrategies {
		clip, err := strategy(ctx, s, identifier)
		if err != nil {
			return nil, err
		}
		if clip != nil {
			return clip, nil
		}
	}
	return nil, nil
}

func resolveByCode(ctx context.Context, s *service, identifier string) (*Clip, error) {
	return ignoreNotFound(s.repository.GetClipByCode(ctx, identifier))
}

func resolveByOwnerComposite(ctx context.Context, s *service, identifier string) (*Clip, error) {
	ownerHint, remainder, ok := splitIdentifier(identifier)
	if !ok {
		return nil, nil
	}
	if isShortCode(remainder) {
		clip, err := ignoreNotFound(s.repository.GetClipByCodeAndOwner(ctx, remainder, ownerHint))
		if clip != nil || err != nil {
			return clip, err
		}
	}
	return ignoreNotFound(s.repository.GetClipByToken(ctx, remainder, ownerHint))
}

func resolveByBareToken(ctx context.Context, s *service, identifier string) (*Clip, error) {
	return ignoreNotFound(s.repository.GetClipByToken(ctx, identifier, ""))
}

// splitIdentifier splits "owner.remainder" on the first dot. Both
// halves must be non-empty after trimming for the composite form to
// apply.
func splitIdentifier(identifier string) (ownerHint, remainder string, ok bool) {
	ownerHint, remainder, found := strings.Cut(identifier, ".")
	if !found {
		return "", "", false
	}
	ownerHint = strings.TrimSpace(ownerHint)
	remainder = strings.TrimSpace(remainder)
	if ownerHint == "" || remainder == "" {
		return "", "", false
	}
	return ownerHint, remainder, true
}

// isShortCode reports whether the string has the shape of an access
// code: exactly five ASCII digits.
func isShortCode(s string) bool {
	if len(s) != 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func ignoreNotFound(clip *Clip, err error) (*Clip, error) {
	if errors.Is(err, ErrClipNotFound) {
		return nil, nil
	}
	return clip, err
}
