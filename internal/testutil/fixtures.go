package testutil

import (
	"time"

	"github.com/tradefoox/deckvault/internal/models"
)

// FixtureTime is the upload date used by the sample records
var FixtureTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// SampleExternalRecord returns a record that redirects to a third-party URL
func SampleExternalRecord() models.FileRecord {
	return models.FileRecord{
		ID:          "pitch_1705312800000_ext000001",
		Name:        "Series A Deck",
		UploadDate:  FixtureTime,
		SecureToken: "ZXh0ZXJuYWx0b2tlbjAwMQ",
		FileURL:     "https://ex.com/a.pdf",
	}
}

// SampleLocalRecord returns a record served from the static root at decks/q3.pdf
func SampleLocalRecord() models.FileRecord {
	return models.FileRecord{
		ID:          "pitch_1705312800000_loc000001",
		Name:        "Q3 Update.pdf",
		UploadDate:  FixtureTime,
		SecureToken: "bG9jYWx0b2tlbjAwMQ",
		FileURL:     "/decks/q3.pdf",
		IsLocalFile: true,
	}
}

// SampleUploadRecord returns a server-upload record backed by the blob "deck.pdf"
func SampleUploadRecord() models.FileRecord {
	return models.FileRecord{
		ID:          "pitch_1705312800000_upl000001",
		Name:        "Investor Deck.pdf",
		Size:        int64(len(SamplePDF)),
		UploadDate:  FixtureTime,
		SecureToken: "dXBsb2FkdG9rZW4wMDE",
		ServerPath:  "deck.pdf",
		MimeType:    "application/pdf",
	}
}

// SamplePDF is a minimal PDF body recognised by content sniffing
var SamplePDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

// RecordOption customizes a fixture record
type RecordOption func(*models.FileRecord)

// NewRecord applies opts to base
func NewRecord(base models.FileRecord, opts ...RecordOption) models.FileRecord {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// WithID sets the record id
func WithID(id string) RecordOption {
	return func(r *models.FileRecord) { r.ID = id }
}

// WithToken sets the secure token
func WithToken(token string) RecordOption {
	return func(r *models.FileRecord) { r.SecureToken = token }
}

// WithAccessCount sets the access count
func WithAccessCount(n int) RecordOption {
	return func(r *models.FileRecord) { r.AccessCount = n }
}

// WithServerPath sets the blob path
func WithServerPath(path string) RecordOption {
	return func(r *models.FileRecord) { r.ServerPath = path }
}

// WithFileURL sets the file URL
func WithFileURL(url string) RecordOption {
	return func(r *models.FileRecord) { r.FileURL = url }
}
