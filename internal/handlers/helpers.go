package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/registry"
	"github.com/tradefoox/deckvault/internal/utils"
)

// sendError sends a JSON error response
func sendError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := models.ErrorResponse{
		Error: message,
		Code:  code,
	}

	json.NewEncoder(w).Encode(errResp)
}

// sendJSON writes v as a JSON response body
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeRegistryError maps registry errors to status codes and error codes
func writeRegistryError(w http.ResponseWriter, err error) {
	message := registry.PublicMessage(err)

	switch {
	case errors.Is(err, registry.ErrValidation):
		sendError(w, message, "VALIDATION_ERROR", http.StatusBadRequest)
	case errors.Is(err, registry.ErrUnauthorized):
		sendError(w, message, "UNAUTHORIZED", http.StatusUnauthorized)
	case errors.Is(err, registry.ErrNotFound):
		sendError(w, message, "NOT_FOUND", http.StatusNotFound)
	default:
		sendError(w, message, "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// buildShareURL constructs the link handed to deck recipients.
// Respects PUBLIC_URL config and reverse proxy headers.
func buildShareURL(r *http.Request, cfg *config.Config, secureToken, fileID string) string {
	base := cfg.PublicURL
	if base == "" {
		base = getScheme(r) + "://" + getHost(r)
	}
	return utils.ShareURL(base, secureToken, fileID)
}

// getScheme returns the scheme (http/https) respecting reverse proxy headers
func getScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		first, _, _ := strings.Cut(proto, ",")
		return strings.TrimSpace(first)
	}

	if r.TLS != nil {
		return "https"
	}

	return "http"
}

// getHost returns the host respecting reverse proxy headers
func getHost(r *http.Request) string {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		first, _, _ := strings.Cut(host, ",")
		return strings.TrimSpace(first)
	}

	return r.Host
}
