package utils

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeFilename reduces a display name to something safe to send as a filename.
// Path components, control characters, quotes and backslashes are removed so the
// value cannot break out of a header or point at another directory.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)

	var sb strings.Builder
	sb.Grow(len(filename))
	for _, r := range filename {
		switch {
		case unicode.IsControl(r):
			continue
		case r == '"' || r == '/' || r == '\\' || r == ';':
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}

	result := strings.Trim(sb.String(), " .")
	if result == "" {
		return "download"
	}

	if len(result) > 255 {
		ext := filepath.Ext(result)
		if len(ext) > 0 && len(ext) < 20 {
			result = truncateUTF8(result, 255-len(ext)) + ext
		} else {
			result = truncateUTF8(result, 255)
		}
	}

	return result
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ContentDisposition builds a Content-Disposition header value such as
// `inline; filename="Deck A.pdf"`. Non-ASCII names are emitted with the
// RFC 2231 filename* form.
func ContentDisposition(dispositionType, name string) string {
	value := mime.FormatMediaType(dispositionType, map[string]string{
		"filename": SanitizeFilename(name),
	})
	if value == "" {
		return dispositionType
	}
	return value
}
