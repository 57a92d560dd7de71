package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ManifestFilename is the name of the manifest file in backup directories
	ManifestFilename = "manifest.json"

	// RecordsFilename holds the registry snapshot
	RecordsFilename = "records.json"

	// BlobsDirname holds uploaded blobs in full backups
	BlobsDirname = "blobs"

	// BackupDirPerms is the permission mode for created backup directories
	BackupDirPerms = 0700

	// BackupFilePerms is the permission mode for created backup files
	BackupFilePerms = 0600

	backupDirPrefix = "backup-"
)

// NewManifest creates a manifest for a backup taken now
func NewManifest(mode Mode, storeBackend string) *Manifest {
	return &Manifest{
		Version:      ManifestVersion,
		CreatedAt:    time.Now().UTC(),
		Mode:         mode,
		StoreBackend: storeBackend,
		Checksums:    make(map[string]string),
	}
}

// WriteManifest writes the manifest into backupDir
func WriteManifest(backupDir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(backupDir, ManifestFilename), data, BackupFilePerms)
}

// ReadManifest reads the manifest from backupDir
func ReadManifest(backupDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(backupDir, ManifestFilename))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// ValidateManifest checks the manifest's required fields
func ValidateManifest(m *Manifest) error {
	if m.Version != ManifestVersion {
		return fmt.Errorf("unsupported manifest version %q", m.Version)
	}
	if !m.Mode.IsValid() {
		return fmt.Errorf("invalid backup mode %q", m.Mode)
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("missing creation time")
	}
	if _, ok := m.Checksums[RecordsFilename]; !ok {
		return fmt.Errorf("missing checksum for %s", RecordsFilename)
	}
	return nil
}

// ComputeChecksum returns the hex SHA256 of the file at path
func ComputeChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// GetBackupDirName returns the directory name for a backup taken at t
func GetBackupDirName(t time.Time) string {
	return backupDirPrefix + t.UTC().Format("20060102-150405")
}

// blobEntry returns the manifest key for a blob
func blobEntry(name string) string {
	return BlobsDirname + "/" + name
}

// blobName is the inverse of blobEntry
func blobName(entry string) (string, bool) {
	return strings.CutPrefix(entry, BlobsDirname+"/")
}

// safeJoin joins a manifest-relative path onto dir, rejecting escapes
func safeJoin(dir, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || strings.Contains(rel, "..") || strings.Contains(rel, "\\") {
		return "", fmt.Errorf("invalid path in backup: %q", rel)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(absDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal in backup: %q", rel)
	}
	return full, nil
}
