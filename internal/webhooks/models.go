// Package webhooks notifies external endpoints about registry activity:
// decks being registered, uploaded, opened and deleted. Deliveries are
// asynchronous, signed with HMAC-SHA256 and retried with backoff.
package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/tradefoox/deckvault/internal/models"
)

// EventType represents the type of webhook event
type EventType string

const (
	EventDeckCreated  EventType = "deck.created"
	EventDeckUploaded EventType = "deck.uploaded"
	EventDeckAccessed EventType = "deck.accessed"
	EventDeckDeleted  EventType = "deck.deleted"
)

// ValidEventType reports whether s names a known event
func ValidEventType(s string) bool {
	switch EventType(s) {
	case EventDeckCreated, EventDeckUploaded, EventDeckAccessed, EventDeckDeleted:
		return true
	}
	return false
}

// Format is the payload shape expected by the receiving service
type Format string

const (
	FormatJSON    Format = "json"    // plain deckvault event JSON
	FormatGotify  Format = "gotify"  // Gotify message
	FormatNtfy    Format = "ntfy"    // ntfy.sh JSON publish
	FormatDiscord Format = "discord" // Discord webhook embed
)

// ValidateFormat checks if a webhook format is valid
func ValidateFormat(format string) bool {
	switch Format(format) {
	case FormatJSON, FormatGotify, FormatNtfy, FormatDiscord:
		return true
	default:
		return false
	}
}

// Defaults applied to endpoints that leave the field at zero
const (
	DefaultMaxRetries     = 3
	DefaultTimeoutSeconds = 10
)

// Endpoint is one configured webhook receiver
type Endpoint struct {
	URL          string `yaml:"url" json:"url"`
	Secret       string `yaml:"secret" json:"-"`
	ServiceToken string `yaml:"service_token" json:"-"` // Gotify app token or ntfy access token
	// Events lists the subscribed event types; empty subscribes to all
	Events         []string `yaml:"events" json:"events,omitempty"`
	Format         Format   `yaml:"format" json:"format"`
	MaxRetries     int      `yaml:"max_retries" json:"max_retries"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Validate checks the endpoint and fills in defaults
func (e *Endpoint) Validate() error {
	if e.URL == "" {
		return errors.New("webhook url is required")
	}
	u, err := url.Parse(e.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook url must be an absolute http(s) URL: %q", e.URL)
	}

	if e.Format == "" {
		e.Format = FormatJSON
	}
	if !ValidateFormat(string(e.Format)) {
		return fmt.Errorf("unsupported webhook format %q", e.Format)
	}

	for _, ev := range e.Events {
		if !ValidEventType(ev) {
			return fmt.Errorf("unknown webhook event %q", ev)
		}
	}

	if e.MaxRetries < 0 || e.TimeoutSeconds < 0 {
		return errors.New("webhook max_retries and timeout_seconds cannot be negative")
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = DefaultMaxRetries
	}
	if e.TimeoutSeconds == 0 {
		e.TimeoutSeconds = DefaultTimeoutSeconds
	}
	return nil
}

// SubscribedTo checks if the endpoint wants eventType
func (e *Endpoint) SubscribedTo(eventType EventType) bool {
	return len(e.Events) == 0 || slices.Contains(e.Events, string(eventType))
}

// Event represents a webhook event to be delivered
type Event struct {
	Type      EventType `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	File      FileData  `json:"file"`
}

// FileData is the record summary carried by an event. The secure token is
// never included.
type FileData struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Mode         models.AccessMode `json:"mode"`
	Size         int64             `json:"size"`
	MimeType     string            `json:"mime_type,omitempty"`
	AccessCount  int               `json:"access_count"`
	LastAccessed time.Time         `json:"last_accessed,omitzero"`
}

// NewEvent builds an event about record
func NewEvent(t EventType, record models.FileRecord, at time.Time) *Event {
	return &Event{
		Type:      t,
		Timestamp: at.UTC(),
		File: FileData{
			ID:           record.ID,
			Name:         record.Name,
			Mode:         record.Mode(),
			Size:         record.Size,
			MimeType:     record.MimeType,
			AccessCount:  record.AccessCount,
			LastAccessed: record.LastAccessed,
		},
	}
}

// ToJSON converts an Event to JSON string
func (e *Event) ToJSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
