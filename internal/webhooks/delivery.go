package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
	"unicode"
)

// Request headers set on every delivery
const (
	HeaderSignature          = "X-Deckvault-Signature"
	HeaderSignatureAlgorithm = "X-Deckvault-Signature-Algorithm"
	HeaderEvent              = "X-Deckvault-Event"
	userAgent                = "deckvault-webhook/1.0"
)

const maxLoggedResponseSize = 10 * 1024

// DeliveryResult represents the result of a webhook delivery attempt
type DeliveryResult struct {
	Success      bool
	ResponseCode int
	Error        error
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// ComputeHMACSignature computes HMAC-SHA256 signature for a payload
func ComputeHMACSignature(payload, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// deliver POSTs payload to the endpoint once
func deliver(ctx context.Context, client *http.Client, ep *Endpoint, eventType EventType, payload string) DeliveryResult {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(ep.TimeoutSeconds)*time.Second)
	defer cancel()

	finalURL := ep.URL
	if ep.ServiceToken != "" {
		finalURL = constructURLWithToken(ep.URL, ep.ServiceToken, ep.Format)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, finalURL, bytes.NewBufferString(payload))
	if err != nil {
		return DeliveryResult{Error: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderEvent, string(eventType))
	if ep.Secret != "" {
		req.Header.Set(HeaderSignature, ComputeHMACSignature(payload, ep.Secret))
		req.Header.Set(HeaderSignatureAlgorithm, "sha256")
	}
	if ep.ServiceToken != "" {
		addAuthHeaders(req, ep.ServiceToken, ep.Format)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		slog.Warn("webhook delivery failed", "url", ep.URL, "duration", duration, "error", err)
		return DeliveryResult{Error: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("webhook delivery received non-2xx status",
			"url", ep.URL,
			"status_code", resp.StatusCode,
			"duration", duration,
			"response_body", string(body))
		return DeliveryResult{
			ResponseCode: resp.StatusCode,
			Error:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	slog.Debug("webhook delivered", "url", ep.URL, "status_code", resp.StatusCode, "duration", duration)
	return DeliveryResult{Success: true, ResponseCode: resp.StatusCode}
}

// CalculateRetryDelay calculates the delay before next retry using exponential backoff
func CalculateRetryDelay(attemptCount int) time.Duration {
	if attemptCount < 0 {
		return time.Second
	}
	if attemptCount > 30 {
		attemptCount = 30
	}

	// 1s, 2s, 4s, ... capped at 60s
	delay := time.Second * time.Duration(1<<uint(attemptCount))
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

// ShouldRetry determines if a delivery should be retried based on attempt count and max retries
func ShouldRetry(attemptCount, maxRetries int) bool {
	return attemptCount < maxRetries
}

// constructURLWithToken adds the service token to the URL for formats that
// authenticate through the query string
func constructURLWithToken(baseURL, token string, format Format) string {
	if format != FormatGotify {
		return baseURL
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		slog.Error("failed to parse webhook URL for token injection", "url", baseURL, "error", err)
		return baseURL
	}
	query := parsedURL.Query()
	query.Set("token", token)
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String()
}

// validateToken rejects tokens with control characters
func validateToken(token string) bool {
	for _, r := range token {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// addAuthHeaders adds service-specific authentication headers based on format
func addAuthHeaders(req *http.Request, token string, format Format) {
	if format != FormatNtfy {
		return
	}
	if !validateToken(token) {
		slog.Error("invalid service token contains control characters", "format", format)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
