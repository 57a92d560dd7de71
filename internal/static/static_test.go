package static

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func setupSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"index.html":       "<html>TRADEFOOX</html>",
		"decks/q3.pdf":     "%PDF-1.4 q3",
		"assets/app.js":    "console.log('hi')",
		"about/index.html": "<html>about</html>",
	}
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestHandler(t *testing.T) {
	handler := Handler(setupSite(t))

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, "<html>TRADEFOOX</html>"},
		{"/decks/q3.pdf", http.StatusOK, "%PDF-1.4 q3"},
		{"/assets/app.js", http.StatusOK, "console.log('hi')"},
		{"/about/", http.StatusOK, "<html>about</html>"},
		{"/decks/", http.StatusNotFound, ""},
		{"/missing.pdf", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantBody != "" {
				body, _ := io.ReadAll(rr.Body)
				if string(body) != tt.wantBody {
					t.Errorf("body = %q, want %q", body, tt.wantBody)
				}
			}
		})
	}
}

func TestFileSystem_HidesDirectoriesWithoutIndex(t *testing.T) {
	fsys := FileSystem(setupSite(t))

	if _, err := fsys.Open("/decks"); err == nil {
		t.Error("directory without index.html should not open")
	}

	f, err := fsys.Open("/decks/q3.pdf")
	if err != nil {
		t.Fatalf("Open(q3.pdf) error: %v", err)
	}
	f.Close()
}
