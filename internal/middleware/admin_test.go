package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tradefoox/deckvault/internal/auth"
	"github.com/tradefoox/deckvault/internal/models"
)

const testAdminToken = "tradefoox-admin-2024"

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		headers     map[string]string
		wantStatus  int
	}{
		{
			name:       "bearer authorization",
			headers:    map[string]string{"Authorization": "Bearer " + testAdminToken},
			wantStatus: http.StatusOK,
		},
		{
			name:       "raw authorization",
			headers:    map[string]string{"Authorization": testAdminToken},
			wantStatus: http.StatusOK,
		},
		{
			name:       "x-admin-token header",
			headers:    map[string]string{auth.AdminTokenHeader: testAdminToken},
			wantStatus: http.StatusOK,
		},
		{
			name:        "json body field",
			contentType: "application/json; charset=utf-8",
			body:        `{"name":"Deck A","fileUrl":"https://ex.com/a.pdf","adminToken":"` + testAdminToken + `"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:       "missing credential",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong token",
			headers:    map[string]string{"Authorization": "Bearer nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "case sensitive",
			headers:    map[string]string{"Authorization": strings.ToUpper(testAdminToken)},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:        "wrong body token",
			contentType: "application/json",
			body:        `{"adminToken":"nope"}`,
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "body ignored for non-json",
			contentType: "text/plain",
			body:        `{"adminToken":"` + testAdminToken + `"}`,
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"adminToken":`,
			wantStatus:  http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureLogs(t)
			handler := AdminAuth(auth.NewStatic(testAdminToken))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/files", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}

			if tt.wantStatus == http.StatusUnauthorized {
				var errResp models.ErrorResponse
				if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
					t.Fatalf("failed to decode error response: %v", err)
				}
				if errResp.Error != "Unauthorized access" || errResp.Code != "UNAUTHORIZED" {
					t.Errorf("error response = %+v", errResp)
				}
			}
		})
	}
}

func TestAdminAuth_RestoresBody(t *testing.T) {
	body := `{"files":[],"adminToken":"` + testAdminToken + `"}`

	var seen string
	handler := AdminAuth(auth.NewStatic(testAdminToken))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/files/bulk", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != body {
		t.Errorf("handler saw body %q, want %q", seen, body)
	}
}

func TestAdminAuth_HashAuthenticator(t *testing.T) {
	hash, err := auth.HashToken(testAdminToken)
	if err != nil {
		t.Fatalf("HashToken() error: %v", err)
	}

	handler := AdminAuth(auth.NewHash(hash))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/files/pitch_1", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestAdminAuth_BodyTooLarge(t *testing.T) {
	captureLogs(t)
	handler := AdminAuth(auth.NewStatic(testAdminToken))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/files/bulk", strings.NewReader(strings.Repeat(" ", MaxAdminJSONBody+1)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rr.Code)
	}
}
