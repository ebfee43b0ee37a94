// Package pkce implements Proof Key for Code Exchange (RFC 7636) verifier and
// challenge handling for the authorization code grant.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

const (
	// MethodS256 hashes the verifier with SHA-256 before comparison.
	MethodS256 = "S256"
	// MethodPlain compares the verifier directly. Permitted by RFC 7636 but
	// only for clients that cannot perform SHA-256.
	MethodPlain = "plain"

	// MinVerifierLength and MaxVerifierLength bound the code_verifier per
	// RFC 7636 section 4.1.
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// DefaultVerifierLength is used when callers pass a non-positive length.
	DefaultVerifierLength = 64
)

// unreserved is the allowed code_verifier alphabet: ALPHA / DIGIT / "-" / "." / "_" / "~".
const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// GenerateVerifier returns a cryptographically random code_verifier of the
// given length, clamped to [MinVerifierLength, MaxVerifierLength]. A
// non-positive length yields DefaultVerifierLength.
func GenerateVerifier(length int) (string, error) {
	switch {
	case length <= 0:
		length = DefaultVerifierLength
	case length < MinVerifierLength:
		length = MinVerifierLength
	case length > MaxVerifierLength:
		length = MaxVerifierLength
	}

	out := make([]byte, length)
	max := big.NewInt(int64(len(unreserved)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("pkce: generate verifier: %w", err)
		}
		out[i] = unreserved[n.Int64()]
	}
	return string(out), nil
}

// Challenge derives the code_challenge for a verifier using the given method.
// S256 is base64url(SHA-256(verifier)) without padding; plain echoes the
// verifier.
func Challenge(verifier, method string) (string, error) {
	switch {
	case strings.EqualFold(method, MethodS256):
		sum := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil
	case strings.EqualFold(method, MethodPlain):
		return verifier, nil
	default:
		return "", fmt.Errorf("pkce: unsupported challenge method %q", method)
	}
}

// VerifyChallenge reports whether verifier matches the stored challenge under
// the given method. Verifiers outside the RFC length/alphabet constraints are
// rejected before any comparison. Comparison is constant-time so the check
// cannot be used as a timing oracle.
func VerifyChallenge(verifier, storedChallenge, method string) bool {
	if !ValidVerifier(verifier) {
		return false
	}

	expected, err := Challenge(verifier, method)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(storedChallenge)) == 1
}

// ValidVerifier reports whether s satisfies the RFC 7636 code_verifier
// grammar.
func ValidVerifier(s string) bool {
	if len(s) < MinVerifierLength || len(s) > MaxVerifierLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(unreserved, rune(s[i])) {
			return false
		}
	}
	return true
}
