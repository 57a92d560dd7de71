package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tradefoox/deckvault/internal/models"
)

// Verify checks the integrity of a backup
func Verify(backupDir string) *VerifyResult {
	result := &VerifyResult{}

	if _, err := os.Stat(backupDir); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("backup directory not accessible: %v", err))
		return result
	}

	manifest, err := ReadManifest(backupDir)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read manifest: %v", err))
		return result
	}
	result.Manifest = manifest

	if err := ValidateManifest(manifest); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid manifest: %v", err))
		return result
	}
	result.ManifestValid = true
	result.Warnings = append(result.Warnings, manifest.Warnings...)

	// stable error order
	files := make([]string, 0, len(manifest.Checksums))
	for file := range manifest.Checksums {
		files = append(files, file)
	}
	sort.Strings(files)

	result.ChecksumsValid = true
	for _, file := range files {
		expected := manifest.Checksums[file]

		path, err := safeJoin(backupDir, file)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.ChecksumsValid = false
			continue
		}

		if _, err := os.Stat(path); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("file not found: %s", file))
			result.MissingFiles = append(result.MissingFiles, file)
			result.ChecksumsValid = false
			continue
		}

		actual, err := ComputeChecksum(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to compute checksum for %s: %v", file, err))
			result.ChecksumsValid = false
			continue
		}
		if actual != expected {
			result.ChecksumsValid = false
			result.ChecksumMismatches = append(result.ChecksumMismatches, ChecksumMismatch{
				File:     file,
				Expected: expected,
				Actual:   actual,
			})
		}
	}

	records, err := readRecords(backupDir)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else if len(records) != manifest.Stats.Records {
		result.Errors = append(result.Errors, fmt.Sprintf("record count mismatch: manifest %d, snapshot %d", manifest.Stats.Records, len(records)))
	} else {
		result.RecordsValid = true
	}

	result.Valid = result.ManifestValid && result.ChecksumsValid && result.RecordsValid
	return result
}

func readRecords(backupDir string) ([]models.FileRecord, error) {
	data, err := os.ReadFile(filepath.Join(backupDir, RecordsFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", RecordsFilename, err)
	}

	var records []models.FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", RecordsFilename, err)
	}
	if records == nil {
		records = []models.FileRecord{}
	}
	return records, nil
}
