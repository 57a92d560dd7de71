package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/tradefoox/deckvault/internal/config"
)

// TestAdminToken is the admin secret configured by SetupTestConfig
const TestAdminToken = "test-admin-token"

// SetupTestConfig creates a test configuration with temporary directories
// All temporary directories are automatically cleaned up after the test
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ADMIN_TOKEN", TestAdminToken)
	t.Setenv("ADMIN_TOKEN_HASH", "")
	t.Setenv("WEBHOOK_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg.Port = "8080"
	cfg.DataFile = t.TempDir() + "/files-db.json"
	cfg.UploadDir = t.TempDir()
	cfg.StaticDir = t.TempDir()
	cfg.PublicURL = ""
	cfg.StoreBackend = config.StoreBackendJSON
	cfg.StorageBackend = config.StorageBackendFilesystem
	cfg.MaxUploadSize = 10 * 1024 * 1024 // 10MB
	cfg.RateLimitDownload = 50
	cfg.RateLimitAdmin = 50

	return cfg
}

// CreateMultipartForm creates a multipart form with a file upload
// Returns the body buffer and content type for the request
func CreateMultipartForm(t *testing.T, fileContent []byte, filename string, formValues map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if fileContent != nil {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}

		if _, err := io.Copy(part, bytes.NewReader(fileContent)); err != nil {
			t.Fatalf("failed to write file content: %v", err)
		}
	}

	for key, val := range formValues {
		if err := writer.WriteField(key, val); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

// AssertStatusCode checks that the HTTP response status code matches expected
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int) {
	t.Helper()

	if rr.Code != wantStatus {
		t.Errorf("status code = %d, want %d\nBody: %s", rr.Code, wantStatus, rr.Body.String())
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertContains fails the test if haystack doesn't contain needle
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()

	if !bytes.Contains([]byte(haystack), []byte(needle)) {
		t.Errorf("expected %q to contain %q", haystack, needle)
	}
}
