package utils

import (
	"net/url"
	"strings"
)

const bearerPrefix = "Bearer "

// ExtractBearerToken returns the credential from an "Authorization: Bearer <token>" header value.
// The second return value is false when the header is missing or uses another scheme.
func ExtractBearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, bearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}

// MaskToken masks a token for safe logging/display
// Shows first 3 and last 3 characters, masks the middle
// Example: "abc123xyz789" -> "abc***789"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}

	// For very short tokens (6 chars or less), mask completely
	if len(token) <= 6 {
		return "***"
	}

	// Show first 3 and last 3 characters
	return token[:3] + "***" + token[len(token)-3:]
}

// ShareURL returns the front-end link that opens a record for a token holder
func ShareURL(base, secureToken, fileID string) string {
	return strings.TrimSuffix(base, "/") + "/#/pitch-deck-access/" + url.PathEscape(secureToken) + "/" + url.PathEscape(fileID)
}
