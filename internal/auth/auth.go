// Package auth verifies the shared admin credential guarding registry writes.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tradefoox/deckvault/internal/utils"
)

// BcryptCost is the cost factor used by HashToken
const BcryptCost = 10

// AdminTokenHeader is the alternate header carrying the admin credential
const AdminTokenHeader = "X-Admin-Token"

// ErrNoCredential is returned by New when neither a token nor a hash is configured
var ErrNoCredential = errors.New("no admin credential configured")

// Authenticator decides whether a presented credential grants admin access.
type Authenticator interface {
	Verify(credential string) bool
}

// StaticAuthenticator compares against a plaintext token in constant time.
type StaticAuthenticator struct {
	token []byte
}

// NewStatic returns an authenticator for a plaintext token
func NewStatic(token string) *StaticAuthenticator {
	return &StaticAuthenticator{token: []byte(token)}
}

// Verify reports whether credential equals the configured token
func (a *StaticAuthenticator) Verify(credential string) bool {
	if credential == "" || len(a.token) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), a.token) == 1
}

// HashAuthenticator checks credentials against a bcrypt hash.
type HashAuthenticator struct {
	hash []byte
}

// NewHash returns an authenticator for a bcrypt hash of the token
func NewHash(hash string) *HashAuthenticator {
	return &HashAuthenticator{hash: []byte(hash)}
}

// Verify reports whether credential matches the configured hash
func (a *HashAuthenticator) Verify(credential string) bool {
	if credential == "" || len(a.hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(credential)) == nil
}

// New picks an authenticator from configuration. The hash wins when both are set.
func New(token, hash string) (Authenticator, error) {
	switch {
	case hash != "":
		return NewHash(hash), nil
	case token != "":
		return NewStatic(token), nil
	}
	return nil, ErrNoCredential
}

// HashToken produces a bcrypt hash suitable for ADMIN_TOKEN_HASH
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrNoCredential
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CredentialFromRequest extracts an admin credential from request headers.
// Authorization is accepted either raw or with a Bearer prefix; X-Admin-Token
// is consulted when Authorization is absent. The JSON body field adminToken
// is read separately by middleware.AdminAuth.
func CredentialFromRequest(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, ok := utils.ExtractBearerToken(header); ok {
			return token
		}
		return header
	}
	return strings.TrimSpace(r.Header.Get(AdminTokenHeader))
}
