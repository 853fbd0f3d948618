// Package token mints verification tokens and the public URLs that carry them.
// A token is a bearer capability for the verification lookup, not a signature.
package token

import (
	"net/url"
	"strings"

	"academy/pkg/secrets"
)

// Length is the encoded length of a token: 32 random bytes, base64url without padding.
const Length = 43

// Service builds verification URLs under a configured base.
type Service struct {
	baseURL string
}

// New trims any trailing slash from baseURL.
func New(baseURL string) *Service {
	return &Service{baseURL: strings.TrimRight(baseURL, "/")}
}

// Generate returns a fresh 256-bit token.
func (s *Service) Generate() (string, error) {
	return secrets.Generate()
}

// BuildVerificationURL returns <base>/verify/<token>.
func (s *Service) BuildVerificationURL(token string) string {
	return s.baseURL + "/verify/" + url.PathEscape(token)
}

// Placeholder returns a well-formed token that is never issued. Lookups for
// malformed input use it so they cost the same as real ones.
func Placeholder() string {
	return strings.Repeat("A", Length)
}

// WellFormed reports whether raw has the length and alphabet of a generated token.
func WellFormed(raw string) bool {
	if len(raw) != Length {
		return false
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
