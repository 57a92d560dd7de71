package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/handlers"
	"github.com/tradefoox/deckvault/internal/middleware"
	"github.com/tradefoox/deckvault/internal/repository"
	"github.com/tradefoox/deckvault/internal/testutil"
	"github.com/tradefoox/deckvault/internal/webhooks"
)

func TestOpenRepository(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		wantType string
	}{
		{"json", config.StoreBackendJSON, repository.BackendJSON},
		{"sqlite", config.StoreBackendSQLite, repository.BackendSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutil.SetupTestConfig(t)
			cfg.StoreBackend = tt.backend
			cfg.DBPath = filepath.Join(t.TempDir(), "deckvault.db")

			repo, err := openRepository(context.Background(), cfg)
			if err != nil {
				t.Fatalf("openRepository() error = %v", err)
			}
			defer repo.Close()

			if repo.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", repo.Type(), tt.wantType)
			}
			records, err := repo.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(records) != 0 {
				t.Errorf("fresh store has %d records", len(records))
			}
		})
	}
}

func TestOpenRepository_Unknown(t *testing.T) {
	cfg := testutil.SetupTestConfig(t)
	cfg.StoreBackend = "redis"

	if _, err := openRepository(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpenBlobStorage(t *testing.T) {
	cfg := testutil.SetupTestConfig(t)
	cfg.UploadDir = filepath.Join(t.TempDir(), "nested", "uploads")

	blobs, err := openBlobStorage(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openBlobStorage() error = %v", err)
	}
	if blobs.Type() != "filesystem" {
		t.Errorf("Type() = %q, want filesystem", blobs.Type())
	}

	cfg.StorageBackend = "ftp"
	if _, err := openBlobStorage(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func newTestHandler(t *testing.T) (http.Handler, *testutil.MockTestEnv) {
	t.Helper()

	env := testutil.NewMockTestEnv(t, testutil.SampleExternalRecord())
	env.Config.RateLimitDownload = 2
	env.Config.CORSAllowedOrigins = []string{"https://tradefoox.com"}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, handlers.Deps{
		Config:        env.Config,
		Store:         env.Store,
		Resolver:      env.Resolver,
		Blobs:         env.Blobs,
		Authenticator: env.Authenticator,
	})

	rl := middleware.NewRateLimiter(env.Config)
	t.Cleanup(rl.Stop)

	return buildHandler(env.Config, mux, rl), env
}

func TestBuildHandler_Chain(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Origin", "https://tradefoox.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://tradefoox.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestBuildHandler_RateLimitsDownloads(t *testing.T) {
	h, env := newTestHandler(t)
	rec := testutil.SampleExternalRecord()

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/download/"+rec.ID+"/download", nil)
		req.Header.Set("Authorization", "Bearer "+rec.SecureToken)
		req.RemoteAddr = "203.0.113.7:4000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		last = rr.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("third download status = %d, want 429", last)
	}
	got, _ := env.Store.Get(rec.ID)
	if got.AccessCount != 2 {
		t.Errorf("accessCount = %d, want 2", got.AccessCount)
	}
}

func TestBuildHandler_RecoversPanics(t *testing.T) {
	cfg := testutil.SetupTestConfig(t)
	rl := middleware.NewRateLimiter(cfg)
	defer rl.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	buildHandler(cfg, mux, rl).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	testutil.AssertStatusCode(t, rr, http.StatusInternalServerError)
	if !strings.Contains(rr.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestStartNotifier(t *testing.T) {
	t.Run("disabled without endpoints", func(t *testing.T) {
		env := testutil.NewMockTestEnv(t)
		if d := startNotifier(env.Config, env.Store); d != nil {
			t.Error("startNotifier() should return nil without endpoints")
		}
	})

	t.Run("delivers registry events", func(t *testing.T) {
		received := make(chan string, 1)
		hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received <- r.Header.Get(webhooks.HeaderEvent)
		}))
		defer hook.Close()

		env := testutil.NewMockTestEnv(t, testutil.SampleExternalRecord())
		ep := webhooks.Endpoint{URL: hook.URL, Events: []string{"deck.deleted"}}
		if err := ep.Validate(); err != nil {
			t.Fatal(err)
		}
		env.Config.Webhooks = []webhooks.Endpoint{ep}
		env.Config.WebhookWorkers = 1
		env.Config.WebhookQueueSize = 4

		d := startNotifier(env.Config, env.Store)
		if d == nil {
			t.Fatal("startNotifier() returned nil")
		}

		if _, err := env.Store.RemoveByID(context.Background(), testutil.SampleExternalRecord().ID); err != nil {
			t.Fatal(err)
		}

		select {
		case got := <-received:
			if got != "deck.deleted" {
				t.Errorf("event header = %q, want deck.deleted", got)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("webhook was not delivered")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.Shutdown(ctx)
	})
}
