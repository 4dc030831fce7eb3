// Package auth implements the OAuth2 Authorization Code flow with PKCE
// (Proof Key for Code Exchange) against the BeneLink authorization server.
// It covers verifier/challenge/state generation, authorize-URL construction,
// callback validation, and the token exchange and refresh protocols.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// verifierSize is the number of random bytes behind the code verifier,
// producing 43 URL-safe base64 characters as required by RFC 7636.
const verifierSize = 32

// stateSize is the number of random bytes behind the anti-CSRF state value.
const stateSize = 32

// PKCECodes holds a PKCE code verifier and its derived challenge.
// The verifier is secret and only transmitted in the token-exchange request
// body; the challenge is public and sent in the authorization URL.
type PKCECodes struct {
	CodeVerifier  string
	CodeChallenge string
}

// AuthData bundles the PKCE material and the anti-CSRF state for a single
// authorization attempt. It is held in memory for the duration of the
// redirect round-trip and discarded after the exchange completes.
type AuthData struct {
	CodeChallenge string
	CodeVerifier  string
	State         string
}

// Generator produces AuthData values. The zero value is ready to use and
// draws from crypto/rand with SHA-256 challenges; tests may substitute
// Rand and Hash for deterministic output. There is no non-secure fallback:
// when the random source fails, generation fails.
type Generator struct {
	// Rand supplies random bytes. nil means crypto/rand.Reader.
	Rand io.Reader

	// Hash derives the challenge digest from a verifier. nil means SHA-256.
	Hash func([]byte) []byte
}

var defaultGenerator = &Generator{}

// GeneratePKCECodes generates a PKCE code verifier and challenge pair
// following RFC 7636. The challenge is always a deterministic function of
// the verifier; the two are generated together and never independently.
//
// Returns:
//   - *PKCECodes: The verifier and challenge pair
//   - error: An error if the random source fails, nil otherwise
func (g *Generator) GeneratePKCECodes() (*PKCECodes, error) {
	raw, err := g.randomBytes(verifierSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	verifier := base64URLEncode(raw)

	return &PKCECodes{
		CodeVerifier:  verifier,
		CodeChallenge: g.challenge(verifier),
	}, nil
}

// GenerateRandomState generates the anti-CSRF state parameter from a fresh
// draw of the random source, independent of any verifier.
//
// Returns:
//   - string: A URL-safe base64 encoded random state string
//   - error: An error if the random source fails, nil otherwise
func (g *Generator) GenerateRandomState() (string, error) {
	raw, err := g.randomBytes(stateSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64URLEncode(raw), nil
}

// GenerateAuthData composes a verifier/challenge pair and a state value into
// the AuthData for one authorization attempt.
//
// Returns:
//   - *AuthData: The complete authorization attempt material
//   - error: An error if the random source fails, nil otherwise
func (g *Generator) GenerateAuthData() (*AuthData, error) {
	codes, err := g.GeneratePKCECodes()
	if err != nil {
		return nil, err
	}
	state, err := g.GenerateRandomState()
	if err != nil {
		return nil, err
	}

	return &AuthData{
		CodeChallenge: codes.CodeChallenge,
		CodeVerifier:  codes.CodeVerifier,
		State:         state,
	}, nil
}

// randomBytes reads n bytes from the configured random source.
func (g *Generator) randomBytes(n int) ([]byte, error) {
	src := g.Rand
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return buf, nil
}

// challenge hashes a verifier into its S256 code challenge.
func (g *Generator) challenge(verifier string) string {
	if g.Hash != nil {
		return base64URLEncode(g.Hash([]byte(verifier)))
	}
	sum := sha256.Sum256([]byte(verifier))
	return base64URLEncode(sum[:])
}

// base64URLEncode encodes bytes as URL-safe base64 without padding.
func base64URLEncode(b []byte) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b)
}

// GeneratePKCECodes generates a verifier/challenge pair using the default
// crypto/rand backed generator.
func GeneratePKCECodes() (*PKCECodes, error) {
	return defaultGenerator.GeneratePKCECodes()
}

// GenerateRandomState generates an anti-CSRF state value using the default
// crypto/rand backed generator.
func GenerateRandomState() (string, error) {
	return defaultGenerator.GenerateRandomState()
}

// GenerateAuthData generates the material for one authorization attempt using
// the default crypto/rand backed generator.
func GenerateAuthData() (*AuthData, error) {
	return defaultGenerator.GenerateAuthData()
}
