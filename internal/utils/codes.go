package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	// FileIDPrefix prefixes every generated record id
	FileIDPrefix = "pitch_"

	// fileIDSuffixLength is the number of random base36 characters in a record id
	fileIDSuffixLength = 9

	// secureTokenEntropyBytes is the number of random bytes mixed into a secure token
	secureTokenEntropyBytes = 16

	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// nowFunc is replaced in tests
var nowFunc = time.Now

// GenerateFileID returns a record id of the form pitch_<unix-millis>_<9 base36 chars>.
// The millisecond prefix keeps ids roughly ordered by creation time.
func GenerateFileID() (string, error) {
	var sb strings.Builder
	sb.WriteString(FileIDPrefix)
	sb.WriteString(fmt.Sprintf("%d_", nowFunc().UnixMilli()))

	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < fileIDSuffixLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random id suffix: %w", err)
		}
		sb.WriteByte(base36Alphabet[n.Int64()])
	}

	return sb.String(), nil
}

// GenerateSecureToken derives the opaque access token bound to a record.
// The token is base64(<fileID>_<unix-millis>_<hex random bytes>) with every
// non-alphanumeric character stripped, so it is safe in URL paths and fragments.
func GenerateSecureToken(fileID string) (string, error) {
	entropy := make([]byte, secureTokenEntropyBytes)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	raw := fmt.Sprintf("%s_%d_%s", fileID, nowFunc().UnixMilli(), hex.EncodeToString(entropy))
	encoded := base64.StdEncoding.EncodeToString([]byte(raw))

	return stripNonAlphanumeric(encoded), nil
}

// ValidateSecureToken reports whether the presented token is exactly the stored one.
// An empty stored token never validates.
func ValidateSecureToken(presented, stored string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}

func stripNonAlphanumeric(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
