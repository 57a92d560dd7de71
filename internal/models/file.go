package models

import (
	"bytes"
	"encoding/json"
	"maps"
	"time"
)

// AccessMode is the strategy used to serve a record's content.
type AccessMode string

const (
	// ModeExternal redirects the client to a third-party URL.
	ModeExternal AccessMode = "external"
	// ModeLocalPDF streams a PDF from the static root inline.
	ModeLocalPDF AccessMode = "local_pdf"
	// ModeServerUpload streams an uploaded blob as an attachment.
	ModeServerUpload AccessMode = "server_upload"
)

// FileRecord is one registered pitch-deck file.
// The JSON names are both the API representation and the on-disk format.
type FileRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	UploadDate   time.Time `json:"uploadDate,omitzero"`
	AccessCount  int       `json:"accessCount"`
	LastAccessed time.Time `json:"lastAccessed,omitzero"`
	ServerPath   string    `json:"serverPath,omitempty"`
	SecureToken  string    `json:"secureToken,omitempty"`
	FileURL      string    `json:"fileUrl,omitempty"`
	IsLocalFile  bool      `json:"isLocalFile"`
	MimeType     string    `json:"mimeType,omitempty"`

	// Supplied keeps the members of a decoded record whose shape differs
	// from what the server would write: unmodeled keys, omitted defaults,
	// explicit empties or another timestamp layout. Nil otherwise.
	Supplied map[string]json.RawMessage `json:"-"`
}

// recordFields has FileRecord's layout without its JSON methods.
type recordFields FileRecord

// MarshalJSON writes the record in its supplied shape when it has one.
// Members the server changed since decoding are written from the fields.
func (f FileRecord) MarshalJSON() ([]byte, error) {
	if f.Supplied == nil {
		return json.Marshal(recordFields(f))
	}

	current, err := fieldMembers(recordFields(f))
	if err != nil {
		return nil, err
	}
	base, err := suppliedMembers(f.Supplied)
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(f.Supplied)+len(current))
	maps.Copy(out, f.Supplied)
	for key, value := range current {
		if !sameMember(value, base[key]) {
			out[key] = value
		}
	}
	for key := range base {
		if _, ok := current[key]; !ok {
			delete(out, key)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the modeled fields and remembers the input shape
// when re-encoding the fields would not reproduce it.
func (f *FileRecord) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var supplied map[string]json.RawMessage
	if err := json.Unmarshal(data, &supplied); err != nil {
		return err
	}

	canonical, err := fieldMembers(fields)
	if err != nil {
		return err
	}

	*f = FileRecord(fields)
	f.Supplied = nil
	if !sameMembers(supplied, canonical) {
		f.Supplied = supplied
	}
	return nil
}

// EncodeSupplied returns Supplied as a JSON object, or "" when the record
// has no supplied shape.
func (f FileRecord) EncodeSupplied() (string, error) {
	if f.Supplied == nil {
		return "", nil
	}
	data, err := json.Marshal(f.Supplied)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeSupplied restores Supplied from EncodeSupplied output
func (f *FileRecord) DecodeSupplied(encoded string) error {
	if encoded == "" {
		f.Supplied = nil
		return nil
	}
	return json.Unmarshal([]byte(encoded), &f.Supplied)
}

func fieldMembers(fields recordFields) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// suppliedMembers is what the fields looked like right after decoding.
func suppliedMembers(supplied map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(supplied)
	if err != nil {
		return nil, err
	}
	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fieldMembers(fields)
}

func sameMembers(a, b map[string]json.RawMessage) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		other, ok := b[key]
		if !ok || !bytes.Equal(value, other) {
			return false
		}
	}
	return true
}

// sameMember compares encoded values; timestamps compare as instants.
func sameMember(a, b json.RawMessage) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if bytes.Equal(a, b) {
		return true
	}
	var ta, tb time.Time
	if json.Unmarshal(a, &ta) != nil || json.Unmarshal(b, &tb) != nil {
		return false
	}
	return ta.Equal(tb)
}

// Mode reports which access strategy applies to the record.
// A record without a fileUrl is treated as a server upload.
func (f *FileRecord) Mode() AccessMode {
	switch {
	case f.FileURL != "" && f.IsLocalFile:
		return ModeLocalPDF
	case f.FileURL != "":
		return ModeExternal
	default:
		return ModeServerUpload
	}
}

// OwnsBlob reports whether deleting the record must also delete its backing blob.
func (f *FileRecord) OwnsBlob() bool {
	return f.ServerPath != "" && f.FileURL == ""
}

// CreateFileRequest is the body of POST /api/files
type CreateFileRequest struct {
	Name        string `json:"name"`
	FileURL     string `json:"fileUrl"`
	IsLocalFile bool   `json:"isLocalFile"`
	AdminToken  string `json:"adminToken,omitempty"`
}

// CreateFileResponse is returned after a record is registered
type CreateFileResponse struct {
	Success     bool   `json:"success"`
	FileID      string `json:"fileId"`
	SecureToken string `json:"secureToken"`
	ShareURL    string `json:"shareUrl"`
	Size        int64  `json:"size,omitempty"`
	Message     string `json:"message"`
}

// SuccessResponse is the generic acknowledgement body
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// FileMetadata is returned by the metadata-only download lookup
type FileMetadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ServerPath  string `json:"serverPath,omitempty"`
	FileURL     string `json:"fileUrl,omitempty"`
	IsLocalFile bool   `json:"isLocalFile"`
	Size        int64  `json:"size"`
}

// ErrorResponse is the JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the JSON response for the health check endpoint
type HealthResponse struct {
	Status             string    `json:"status"`
	Timestamp          time.Time `json:"timestamp"`
	UptimeSeconds      int64     `json:"uptime_seconds"`
	FilesCount         int       `json:"filesCount"`
	ExternalFiles      int       `json:"externalFiles"`
	LocalFiles         int       `json:"localFiles"`
	ServerFiles        int       `json:"serverFiles"`
	TotalAccesses      int64     `json:"totalAccesses"`
	StoreBackend       string    `json:"store_backend"`
	StorageBackend     string    `json:"storage_backend"`
	DiskTotalBytes     uint64    `json:"disk_total_bytes,omitempty"`
	DiskFreeBytes      uint64    `json:"disk_free_bytes,omitempty"`
	DiskUsedPercent    float64   `json:"disk_used_percent,omitempty"`
	DiskAvailableBytes uint64    `json:"disk_available_bytes,omitempty"`
	Errors             []string  `json:"errors,omitempty"`
}

// RegistryStats summarizes the registry for health and metrics
type RegistryStats struct {
	Files         int
	External      int
	LocalPDF      int
	ServerUpload  int
	TotalAccesses int64
}
