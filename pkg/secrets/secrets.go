// Package secrets generates unguessable random strings for bearer-style secrets.
package secrets

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	dErrors "academy/pkg/domain-errors"
)

// DefaultBytes is the entropy used by Generate (256 bits).
const DefaultBytes = 32

// Generate returns DefaultBytes of crypto/rand entropy, base64url-encoded without padding.
func Generate() (string, error) {
	return GenerateN(DefaultBytes)
}

// GenerateN returns n random bytes encoded with the URL-safe base64 alphabet and no padding.
func GenerateN(n int) (string, error) {
	if n <= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Equal compares two secrets in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
