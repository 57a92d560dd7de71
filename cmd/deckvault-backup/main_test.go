package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tradefoox/deckvault/internal/backup"
	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/repository/jsonfile"
	"github.com/tradefoox/deckvault/internal/testutil"
)

// seedRegistry writes a json registry with one upload and one external record
func seedRegistry(t *testing.T) (dataFile, uploads string) {
	t.Helper()

	dir := t.TempDir()
	dataFile = filepath.Join(dir, "files-db.json")
	uploads = filepath.Join(dir, "uploads")
	if err := os.MkdirAll(uploads, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(uploads, "deck.pdf"), testutil.SamplePDF, 0600); err != nil {
		t.Fatal(err)
	}

	records := []models.FileRecord{testutil.SampleUploadRecord(), testutil.SampleExternalRecord()}
	if err := jsonfile.New(dataFile).Save(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	return dataFile, uploads
}

func createBackup(t *testing.T, dataFile, uploads, output string) string {
	t.Helper()

	var out bytes.Buffer
	err := run([]string{"create", "-mode", "full", "-data-file", dataFile, "-uploads", uploads, "-output", output, "-quiet"}, &out)
	if err != nil {
		t.Fatalf("create error = %v, output:\n%s", err, out.String())
	}
	return strings.TrimSpace(out.String())
}

func TestRun_Commands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		wantOut string
	}{
		{"no command", nil, "a command is required", "USAGE"},
		{"unknown", []string{"prune"}, "unknown command: prune", "USAGE"},
		{"help", []string{"help"}, "", "COMMANDS"},
		{"version", []string{"--version"}, "", "deckvault backup tool v" + ToolVersion},
		{"create without output", []string{"create"}, "-output flag is required", ""},
		{"create bad mode", []string{"create", "-output", "x", "-mode", "partial"}, "invalid backup mode", ""},
		{"full without uploads", []string{"create", "-output", "x"}, "-uploads flag is required", ""},
		{"bad store", []string{"create", "-output", t.TempDir(), "-mode", "records", "-store", "redis"}, "-store must be", ""},
		{"postgres without url", []string{"create", "-output", t.TempDir(), "-mode", "records", "-store", "postgres"}, "-postgres-url is required", ""},
		{"verify without backup", []string{"verify"}, "-backup flag is required", ""},
		{"restore without backup", []string{"restore"}, "-backup flag is required", ""},
		{"list without dir", []string{"list"}, "-dir flag is required", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(tt.args, &out)
			if tt.wantErr == "" && err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Fatalf("run() error = %v, want %q", err, tt.wantErr)
			}
			if tt.wantOut != "" && !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output = %q, want %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestCreateVerifyList(t *testing.T) {
	dataFile, uploads := seedRegistry(t)
	output := t.TempDir()

	path := createBackup(t, dataFile, uploads, output)
	if filepath.Dir(path) != output {
		t.Fatalf("backup path = %q, want under %q", path, output)
	}
	if _, err := os.Stat(filepath.Join(path, backup.BlobsDirname, "deck.pdf")); err != nil {
		t.Errorf("blob not backed up: %v", err)
	}

	var out bytes.Buffer
	if err := run([]string{"verify", "-backup", path}, &out); err != nil {
		t.Fatalf("verify error = %v", err)
	}
	if !strings.Contains(out.String(), "Backup is VALID") {
		t.Errorf("verify output = %q", out.String())
	}

	out.Reset()
	if err := run([]string{"list", "-dir", output, "-json"}, &out); err != nil {
		t.Fatalf("list error = %v", err)
	}
	var infos []backup.Info
	if err := json.Unmarshal(out.Bytes(), &infos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(infos) != 1 || infos[0].Path != path || infos[0].Records != 2 {
		t.Errorf("list = %+v", infos)
	}
}

func TestVerify_FailsOnTamperedBackup(t *testing.T) {
	dataFile, uploads := seedRegistry(t)
	path := createBackup(t, dataFile, uploads, t.TempDir())

	if err := os.WriteFile(filepath.Join(path, backup.BlobsDirname, "deck.pdf"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := run([]string{"verify", "-backup", path}, &out)
	if err == nil {
		t.Fatal("verify should fail")
	}
	if !strings.Contains(out.String(), "Checksum mismatch: blobs/deck.pdf") {
		t.Errorf("verify output = %q", out.String())
	}
}

func TestRestoreIntoSQLite(t *testing.T) {
	dataFile, uploads := seedRegistry(t)
	path := createBackup(t, dataFile, uploads, t.TempDir())

	dest := t.TempDir()
	dbPath := filepath.Join(dest, "deckvault.db")
	destUploads := filepath.Join(dest, "uploads")

	var out bytes.Buffer
	err := run([]string{"restore", "-backup", path, "-store", "sqlite", "-db", dbPath, "-uploads", destUploads, "-json"}, &out)
	if err != nil {
		t.Fatalf("restore error = %v, output:\n%s", err, out.String())
	}

	var result backup.RestoreResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode restore result: %v", err)
	}
	if !result.Success || result.RecordsRestored != 2 || result.BlobsRestored != 1 {
		t.Errorf("result = %+v", result)
	}

	data, err := os.ReadFile(filepath.Join(destUploads, "deck.pdf"))
	if err != nil || !bytes.Equal(data, testutil.SamplePDF) {
		t.Errorf("restored blob = %q, %v", data, err)
	}

	// a second restore without -force is refused
	out.Reset()
	err = run([]string{"restore", "-backup", path, "-store", "sqlite", "-db", dbPath, "-uploads", destUploads}, &out)
	if err == nil || !strings.Contains(err.Error(), "-force") {
		t.Errorf("second restore error = %v", err)
	}
}

func TestRestore_DryRunLeavesRegistryEmpty(t *testing.T) {
	dataFile, uploads := seedRegistry(t)
	path := createBackup(t, dataFile, uploads, t.TempDir())

	destFile := filepath.Join(t.TempDir(), "files-db.json")
	var out bytes.Buffer
	if err := run([]string{"restore", "-backup", path, "-data-file", destFile, "-uploads", t.TempDir(), "-dry-run"}, &out); err != nil {
		t.Fatalf("restore error = %v", err)
	}
	if !strings.Contains(out.String(), "dry run") {
		t.Errorf("output = %q", out.String())
	}
	if _, err := os.Stat(destFile); !os.IsNotExist(err) {
		t.Errorf("dry run wrote the registry, stat err = %v", err)
	}
}

func TestList_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"list", "-dir", t.TempDir()}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No backups found") {
		t.Errorf("output = %q", out.String())
	}
}
