package webhooks

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tradefoox/deckvault/internal/models"
)

func sampleRecord() models.FileRecord {
	return models.FileRecord{
		ID:          "pitch_1705312800000_upl000001",
		Name:        "Investor Deck.pdf",
		Size:        2048,
		UploadDate:  time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		SecureToken: "dXBsb2FkdG9rZW4wMDE",
		ServerPath:  "deck.pdf",
		MimeType:    "application/pdf",
	}
}

func TestEndpoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		wantErr string
	}{
		{"minimal", Endpoint{URL: "https://hooks.example.com/x"}, ""},
		{"all events", Endpoint{URL: "http://localhost:9000", Events: []string{"deck.created", "deck.uploaded", "deck.accessed", "deck.deleted"}}, ""},
		{"missing url", Endpoint{}, "url is required"},
		{"relative url", Endpoint{URL: "/hook"}, "absolute http(s)"},
		{"ftp url", Endpoint{URL: "ftp://example.com"}, "absolute http(s)"},
		{"bad format", Endpoint{URL: "https://example.com", Format: "slack"}, "unsupported webhook format"},
		{"bad event", Endpoint{URL: "https://example.com", Events: []string{"file.expired"}}, "unknown webhook event"},
		{"negative retries", Endpoint{URL: "https://example.com", MaxRetries: -1}, "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ep.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestEndpoint_ValidateAppliesDefaults(t *testing.T) {
	ep := Endpoint{URL: "https://example.com"}
	if err := ep.Validate(); err != nil {
		t.Fatal(err)
	}
	if ep.Format != FormatJSON || ep.MaxRetries != DefaultMaxRetries || ep.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Errorf("endpoint after Validate = %+v", ep)
	}
}

func TestEndpoint_SubscribedTo(t *testing.T) {
	all := Endpoint{}
	if !all.SubscribedTo(EventDeckAccessed) {
		t.Error("endpoint without events should receive everything")
	}

	some := Endpoint{Events: []string{"deck.accessed"}}
	if !some.SubscribedTo(EventDeckAccessed) {
		t.Error("expected subscription to deck.accessed")
	}
	if some.SubscribedTo(EventDeckDeleted) {
		t.Error("unexpected subscription to deck.deleted")
	}
}

func TestNewEvent_OmitsSecureToken(t *testing.T) {
	record := sampleRecord()
	record.AccessCount = 4
	at := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	event := NewEvent(EventDeckAccessed, record, at)
	if event.File.ID != record.ID || event.File.Mode != models.ModeServerUpload || event.File.AccessCount != 4 {
		t.Errorf("event file = %+v", event.File)
	}

	payload, err := event.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(payload, record.SecureToken) {
		t.Error("payload leaks the secure token")
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["event"] != "deck.accessed" || decoded["timestamp"] != "2024-02-01T12:00:00Z" {
		t.Errorf("payload = %s", payload)
	}
}
