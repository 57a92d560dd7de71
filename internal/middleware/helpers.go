package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/utils"
)

type contextKey int

const clientIPKey contextKey = iota

// TrustProvider exposes the proxy trust settings used to resolve client addresses
type TrustProvider interface {
	GetTrustProxyHeaders() string
	GetTrustedProxyIPs() string
}

// RealIP resolves the client address once per request and stores it in the
// request context for later middleware and handlers.
func RealIP(trust TrustProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trust.GetTrustProxyHeaders(), trust.GetTrustedProxyIPs())
			ctx := context.WithValue(r.Context(), clientIPKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the address stored by RealIP. Without it, forwarding
// headers are only trusted from loopback and private ranges.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok {
		return ip
	}
	return utils.ClientIP(r, utils.TrustProxyAuto, utils.DefaultTrustedProxies)
}

func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
