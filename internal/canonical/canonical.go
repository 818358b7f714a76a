// Package canonical turns relative and partial links into absolute URLs.
package canonical

import (
	"fmt"
	"net/url"
	"strings"

	"feedhub/internal/domain"
)

// Resolve returns candidate as an absolute URL, inheriting the scheme and
// host it lacks from base. A candidate that already has both is returned
// unchanged. Opaque URLs such as mailto: are returned unchanged as well.
//
// The returned error wraps domain.ErrInvalidURL; callers are expected to
// fall back to the raw candidate.
func Resolve(candidate, base string) (string, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", fmt.Errorf("%w: empty link", domain.ErrInvalidURL)
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", domain.ErrInvalidURL, candidate, err)
	}
	if IsAbsolute(ref) || ref.Opaque != "" {
		return candidate, nil
	}
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("%w: base %q: %v", domain.ErrInvalidURL, base, err)
	}
	if !IsAbsolute(baseURL) {
		return "", fmt.Errorf("%w: base %q has no scheme or host", domain.ErrInvalidURL, base)
	}
	switch {
	case ref.Host != "":
		// protocol-relative
		ref.Scheme = baseURL.Scheme
		return ref.String(), nil
	case ref.Scheme != "":
		// "http:/path" style, scheme without authority
		ref.Host = baseURL.Host
		if ref.User == nil {
			ref.User = baseURL.User
		}
		return ref.String(), nil
	default:
		return baseURL.ResolveReference(ref).String(), nil
	}
}

// IsAbsolute reports whether u carries both a scheme and a host.
func IsAbsolute(u *url.URL) bool {
	return u.Scheme != "" && u.Host != ""
}

// NeedsResolve reports whether raw lacks a scheme or a host and is not an
// opaque URL. Unparsable values report true so that Resolve can report them.
func NeedsResolve(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return true
	}
	return !IsAbsolute(u) && u.Opaque == ""
}
