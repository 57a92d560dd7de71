package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/tradefoox/deckvault/internal/auth"
)

// MaxAdminJSONBody bounds JSON bodies buffered while looking for adminToken
const MaxAdminJSONBody = 10 << 20

// AdminAuth requires the shared admin credential. It is taken from the
// Authorization or X-Admin-Token header, or else from the adminToken field of
// a JSON body. A buffered body is restored for the next handler.
func AdminAuth(authenticator auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := auth.CredentialFromRequest(r)

			if credential == "" && isJSON(r) && r.Body != nil {
				body, err := io.ReadAll(io.LimitReader(r.Body, MaxAdminJSONBody+1))
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, "Failed to read request body", "VALIDATION_ERROR")
					return
				}
				if len(body) > MaxAdminJSONBody {
					writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large", "PAYLOAD_TOO_LARGE")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				var envelope struct {
					AdminToken string `json:"adminToken"`
				}
				// malformed JSON is left for the handler to report
				if json.Unmarshal(body, &envelope) == nil {
					credential = envelope.AdminToken
				}
			}

			if credential == "" || !authenticator.Verify(credential) {
				slog.Warn("admin authentication failed",
					"path", r.URL.Path,
					"method", r.Method,
					"ip", ClientIP(r),
					"credential_present", credential != "",
				)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized access", "UNAUTHORIZED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
