// Package backup creates, verifies and restores deckvault backups.
//
// A backup is a directory holding the registry snapshot (records.json), a
// manifest.json with SHA256 checksums, and for full backups a copy of every
// server-uploaded blob under blobs/. Backups are read and written through the
// repository and storage interfaces, so any store backend can be backed up
// into any other.
package backup

import (
	"time"
)

// Mode defines what a backup contains
type Mode string

const (
	// ModeRecords backs up the registry snapshot only
	ModeRecords Mode = "records"

	// ModeFull backs up the registry snapshot and all uploaded blobs
	ModeFull Mode = "full"
)

// IsValid returns true if the backup mode is valid
func (m Mode) IsValid() bool {
	return m == ModeRecords || m == ModeFull
}

// OrphanHandling defines what restore does with upload records whose blob
// is in neither the backup nor the destination storage
type OrphanHandling string

const (
	// OrphanKeep keeps the record; downloads of it will 404
	OrphanKeep OrphanHandling = "keep"

	// OrphanRemove drops the record from the restored registry
	OrphanRemove OrphanHandling = "remove"
)

// IsValid returns true if the orphan handling mode is valid
func (o OrphanHandling) IsValid() bool {
	return o == OrphanKeep || o == OrphanRemove
}

// ManifestVersion is the current backup manifest format version
const ManifestVersion = "1"

// Manifest describes a backup
type Manifest struct {
	Version        string            `json:"version"`
	CreatedAt      time.Time         `json:"created_at"`
	Mode           Mode              `json:"mode"`
	StoreBackend   string            `json:"store_backend"`
	StorageBackend string            `json:"storage_backend,omitempty"`
	Stats          Stats             `json:"stats"`
	Checksums      map[string]string `json:"checksums"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// Stats contains counts and sizes of backed up data
type Stats struct {
	Records          int   `json:"records"`
	BlobsBackedUp    int   `json:"blobs_backed_up"`
	BlobsMissing     int   `json:"blobs_missing"`
	RecordsSizeBytes int64 `json:"records_size_bytes"`
	BlobsSizeBytes   int64 `json:"blobs_size_bytes"`
	TotalSizeBytes   int64 `json:"total_size_bytes"`
}

// Result reports the outcome of Create
type Result struct {
	Success        bool          `json:"success"`
	BackupPath     string        `json:"backup_path"`
	Manifest       *Manifest     `json:"manifest,omitempty"`
	Duration       time.Duration `json:"-"`
	DurationString string        `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// RestoreResult reports the outcome of Restore
type RestoreResult struct {
	Success         bool          `json:"success"`
	DryRun          bool          `json:"dry_run"`
	RecordsRestored int           `json:"records_restored"`
	BlobsRestored   int           `json:"blobs_restored"`
	BlobsSkipped    int           `json:"blobs_skipped"`
	OrphansKept     int           `json:"orphans_kept"`
	OrphansRemoved  int           `json:"orphans_removed"`
	Warnings        []string      `json:"warnings,omitempty"`
	Duration        time.Duration `json:"-"`
	DurationString  string        `json:"duration"`
	Error           string        `json:"error,omitempty"`
}

// VerifyResult reports the integrity of a backup directory
type VerifyResult struct {
	Valid              bool               `json:"valid"`
	Manifest           *Manifest          `json:"manifest,omitempty"`
	ManifestValid      bool               `json:"manifest_valid"`
	RecordsValid       bool               `json:"records_valid"`
	ChecksumsValid     bool               `json:"checksums_valid"`
	MissingFiles       []string           `json:"missing_files,omitempty"`
	ChecksumMismatches []ChecksumMismatch `json:"checksum_mismatches,omitempty"`
	Errors             []string           `json:"errors,omitempty"`
	Warnings           []string           `json:"warnings,omitempty"`
}

// ChecksumMismatch describes a file whose checksum doesn't match the manifest
type ChecksumMismatch struct {
	File     string `json:"file"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Info summarizes one backup found by List
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Mode      Mode      `json:"mode"`
	Records   int       `json:"records"`
	SizeBytes int64     `json:"size_bytes"`
}
