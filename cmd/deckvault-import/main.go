// Command deckvault-import registers files from disk as server uploads
// without going through the HTTP API. Stop the server before importing: it
// keeps the registry in memory and would overwrite the snapshot on its next
// mutation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/repository"
	"github.com/tradefoox/deckvault/internal/repository/jsonfile"
	"github.com/tradefoox/deckvault/internal/repository/sqlite"
	"github.com/tradefoox/deckvault/internal/storage"
	"github.com/tradefoox/deckvault/internal/storage/filesystem"
	"github.com/tradefoox/deckvault/internal/utils"
)

// Version information
const (
	ToolVersion = "1.0.0"
	ToolName    = "deckvault import tool"
)

// ImportOptions holds all configuration for an import operation
type ImportOptions struct {
	// Input mode (mutually exclusive)
	SourceFile string
	Directory  string
	Recursive  bool

	DisplayName string

	Store      string
	DataFile   string
	DBPath     string
	UploadsDir string
	PublicURL  string

	DryRun bool
	Move   bool
	Quiet  bool
	JSON   bool
}

// ImportResult represents the outcome of a single file import
type ImportResult struct {
	SourcePath  string `json:"source_path"`
	DisplayName string `json:"display_name"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mime_type,omitempty"`
	FileID      string `json:"file_id,omitempty"`
	SecureToken string `json:"secure_token,omitempty"`
	ShareURL    string `json:"share_url,omitempty"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// BatchSummary represents the overall results of an import run
type BatchSummary struct {
	TotalFiles int             `json:"total_files"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	TotalSize  int64           `json:"total_size"`
	TotalTime  string          `json:"total_time"`
	DryRun     bool            `json:"dry_run"`
	Results    []*ImportResult `json:"results"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, performs the import and writes a report to out
func run(args []string, out io.Writer) error {
	opts := &ImportOptions{}

	fs := flag.NewFlagSet("deckvault-import", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&opts.SourceFile, "source", "", "Path to source file (single file mode)")
	fs.StringVar(&opts.Directory, "directory", "", "Path to directory (batch mode)")
	fs.BoolVar(&opts.Recursive, "recursive", false, "Recursively scan subdirectories in batch mode")
	fs.StringVar(&opts.DisplayName, "name", "", "Display name (single file mode, defaults to the file name)")

	fs.StringVar(&opts.Store, "store", config.StoreBackendJSON, "Record store backend: json or sqlite")
	fs.StringVar(&opts.DataFile, "data-file", "./files-db.json", "Registry JSON file (json store)")
	fs.StringVar(&opts.DBPath, "db", "./deckvault.db", "SQLite database (sqlite store)")
	fs.StringVar(&opts.UploadsDir, "uploads", "./uploads", "Upload directory served by deckvault")
	fs.StringVar(&opts.PublicURL, "public-url", "http://localhost:3001", "Base URL for share links")

	fs.BoolVar(&opts.DryRun, "dry-run", false, "Preview only, no changes")
	fs.BoolVar(&opts.Move, "move", false, "Delete source files after a successful import")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Minimal output for scripting")
	fs.BoolVar(&opts.JSON, "json", false, "JSON output format")

	version := fs.Bool("version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *version {
		fmt.Fprintf(out, "%s v%s\n", ToolName, ToolVersion)
		return nil
	}

	if err := validateOptions(opts); err != nil {
		return err
	}

	files, err := collectFiles(opts)
	if err != nil {
		return err
	}

	ctx := context.Background()

	repo, err := openRepository(opts)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer repo.Close()

	blobs, err := filesystem.NewFilesystemStorage(opts.UploadsDir)
	if err != nil {
		return fmt.Errorf("failed to open uploads directory: %w", err)
	}

	summary, err := importFiles(ctx, repo, blobs, files, opts)
	if err != nil {
		return err
	}

	switch {
	case opts.JSON:
		printJSON(out, summary)
	case opts.Quiet:
		for _, r := range summary.Results {
			if r.Success && r.ShareURL != "" {
				fmt.Fprintln(out, r.ShareURL)
			}
		}
	default:
		printSummary(out, summary)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", summary.Failed, summary.TotalFiles)
	}
	return nil
}

// validateOptions validates command-line options
func validateOptions(opts *ImportOptions) error {
	if opts.SourceFile == "" && opts.Directory == "" {
		return errors.New("either -source or -directory must be specified")
	}
	if opts.SourceFile != "" && opts.Directory != "" {
		return errors.New("cannot specify both -source and -directory")
	}
	if opts.Directory != "" && opts.DisplayName != "" {
		return errors.New("-name can only be used with -source")
	}

	switch opts.Store {
	case config.StoreBackendJSON:
		if opts.DataFile == "" {
			return errors.New("-data-file is required for the json store")
		}
	case config.StoreBackendSQLite:
		if opts.DBPath == "" {
			return errors.New("-db is required for the sqlite store")
		}
	default:
		return fmt.Errorf("-store must be json or sqlite, got %q", opts.Store)
	}

	if opts.UploadsDir == "" {
		return errors.New("-uploads is required")
	}

	if opts.SourceFile != "" {
		info, err := os.Stat(opts.SourceFile)
		if err != nil {
			return fmt.Errorf("cannot access source file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("source is a directory, use -directory: %s", opts.SourceFile)
		}
	}

	if opts.Directory != "" {
		info, err := os.Stat(opts.Directory)
		if err != nil {
			return fmt.Errorf("cannot access directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("path is not a directory: %s", opts.Directory)
		}
	}

	return nil
}

// collectFiles lists the files to import in a stable order
func collectFiles(opts *ImportOptions) ([]string, error) {
	if opts.SourceFile != "" {
		return []string{opts.SourceFile}, nil
	}

	var files []string
	err := filepath.WalkDir(opts.Directory, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Warn("cannot access path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if !opts.Recursive && path != opts.Directory {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}
	return files, nil
}

func openRepository(opts *ImportOptions) (repository.RecordRepository, error) {
	if opts.Store == config.StoreBackendSQLite {
		repo, err := sqlite.Open(opts.DBPath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	return jsonfile.New(opts.DataFile), nil
}

// importFiles stores each file as a blob and appends a record for it. The
// snapshot is written once, after every file has been handled.
func importFiles(ctx context.Context, repo repository.RecordRepository, blobs storage.StorageBackend, files []string, opts *ImportOptions) (*BatchSummary, error) {
	start := time.Now()

	records, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing records: %w", err)
	}

	summary := &BatchSummary{
		TotalFiles: len(files),
		DryRun:     opts.DryRun,
		Results:    []*ImportResult{},
	}

	var imported []string
	for _, path := range files {
		name := filepath.Base(path)
		if opts.DisplayName != "" {
			name = opts.DisplayName
		}

		result, record := importFile(ctx, blobs, path, name, opts)
		summary.Results = append(summary.Results, result)
		if !result.Success {
			summary.Failed++
			continue
		}

		summary.Successful++
		summary.TotalSize += result.Size
		if record != nil {
			records = append(records, *record)
			imported = append(imported, path)
		}
	}

	if !opts.DryRun && len(imported) > 0 {
		if err := repo.Save(ctx, records); err != nil {
			// nothing references the new blobs yet
			for _, r := range summary.Results {
				if r.Success && r.FileID != "" {
					removeBlobFor(ctx, blobs, records, r.FileID)
				}
			}
			return nil, fmt.Errorf("failed to save records: %w", err)
		}

		if opts.Move {
			for _, path := range imported {
				if err := os.Remove(path); err != nil {
					slog.Warn("failed to delete source file", "path", path, "error", err)
				}
			}
		}
	}

	summary.TotalTime = time.Since(start).String()
	return summary, nil
}

// importFile copies one file into blob storage and builds its record.
// The record is nil in dry-run mode.
func importFile(ctx context.Context, blobs storage.StorageBackend, path, name string, opts *ImportOptions) (*ImportResult, *models.FileRecord) {
	result := &ImportResult{SourcePath: path, DisplayName: name}

	info, err := os.Stat(path)
	if err != nil {
		result.Error = fmt.Sprintf("cannot stat file: %v", err)
		return result, nil
	}
	result.Size = info.Size()

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		result.Error = fmt.Sprintf("failed to detect MIME type: %v", err)
		return result, nil
	}
	result.MimeType = mtype.String()

	ok, err := utils.HasRoomFor(opts.UploadsDir, info.Size())
	if err != nil {
		result.Error = fmt.Sprintf("failed to check disk space: %v", err)
		return result, nil
	}
	if !ok {
		result.Error = "insufficient disk space"
		return result, nil
	}

	if opts.DryRun {
		result.Success = true
		return result, nil
	}

	id, err := utils.GenerateFileID()
	if err != nil {
		result.Error = fmt.Sprintf("failed to generate id: %v", err)
		return result, nil
	}
	token, err := utils.GenerateSecureToken(id)
	if err != nil {
		result.Error = fmt.Sprintf("failed to generate token: %v", err)
		return result, nil
	}

	f, err := os.Open(path)
	if err != nil {
		result.Error = fmt.Sprintf("failed to open file: %v", err)
		return result, nil
	}
	defer f.Close()

	storedName := uuid.New().String() + strings.ToLower(filepath.Ext(path))
	if _, _, err := blobs.Store(ctx, storedName, f, info.Size()); err != nil {
		result.Error = fmt.Sprintf("failed to store file: %v", err)
		return result, nil
	}

	record := &models.FileRecord{
		ID:          id,
		Name:        name,
		Size:        info.Size(),
		UploadDate:  time.Now().UTC(),
		ServerPath:  storedName,
		SecureToken: token,
		MimeType:    result.MimeType,
	}

	result.FileID = id
	result.SecureToken = token
	result.ShareURL = utils.ShareURL(opts.PublicURL, token, id)
	result.Success = true
	return result, record
}

func removeBlobFor(ctx context.Context, blobs storage.StorageBackend, records []models.FileRecord, id string) {
	for _, r := range records {
		if r.ID != id {
			continue
		}
		if err := blobs.Delete(ctx, r.ServerPath); err != nil {
			slog.Warn("failed to remove orphaned blob", "path", r.ServerPath, "error", err)
		}
		return
	}
}

// printSummary prints a human-readable report
func printSummary(out io.Writer, summary *BatchSummary) {
	fmt.Fprintln(out, "======================================================================")
	if summary.DryRun {
		fmt.Fprintln(out, "IMPORT PREVIEW (dry run, no changes made)")
	} else {
		fmt.Fprintln(out, "IMPORT SUMMARY")
	}
	fmt.Fprintln(out, "======================================================================")

	for _, r := range summary.Results {
		if !r.Success {
			fmt.Fprintf(out, "FAILED   %s: %s\n", r.SourcePath, r.Error)
			continue
		}
		fmt.Fprintf(out, "OK       %s (%s, %s)\n", r.DisplayName, utils.FormatBytes(uint64(r.Size)), r.MimeType)
		if r.ShareURL != "" {
			fmt.Fprintf(out, "         id:    %s\n", r.FileID)
			fmt.Fprintf(out, "         share: %s\n", r.ShareURL)
		}
	}

	fmt.Fprintln(out, "----------------------------------------------------------------------")
	fmt.Fprintf(out, "Total files: %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:  %d\n", summary.Successful)
	fmt.Fprintf(out, "Failed:      %d\n", summary.Failed)
	fmt.Fprintf(out, "Total size:  %s\n", utils.FormatBytes(uint64(summary.TotalSize)))
	fmt.Fprintf(out, "Total time:  %s\n", summary.TotalTime)
}

// printJSON prints v as indented JSON
func printJSON(out io.Writer, v any) {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	encoder.Encode(v)
}
