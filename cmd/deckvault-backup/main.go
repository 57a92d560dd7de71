// Command deckvault-backup creates, verifies, restores and lists registry
// backups. A backup holds the record snapshot and, in full mode, a copy of
// every uploaded blob.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tradefoox/deckvault/internal/backup"
	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/repository"
	"github.com/tradefoox/deckvault/internal/repository/jsonfile"
	"github.com/tradefoox/deckvault/internal/repository/postgres"
	"github.com/tradefoox/deckvault/internal/repository/sqlite"
	"github.com/tradefoox/deckvault/internal/storage/filesystem"
	"github.com/tradefoox/deckvault/internal/utils"
)

// Version information
const (
	ToolVersion = "1.0.0"
	ToolName    = "deckvault backup tool"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return errors.New("a command is required")
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage(out)
		return nil
	case "-v", "--version", "version":
		fmt.Fprintf(out, "%s v%s\n", ToolName, ToolVersion)
		return nil
	case "create":
		return runCreate(args[1:], out)
	case "restore":
		return runRestore(args[1:], out)
	case "verify":
		return runVerify(args[1:], out)
	case "list":
		return runList(args[1:], out)
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintf(out, `%s v%s

USAGE:
    deckvault-backup <command> [options]

COMMANDS:
    create      Create a new backup
    restore     Restore from a backup
    verify      Verify backup integrity
    list        List available backups

EXAMPLES:
    deckvault-backup create -mode full -data-file ./files-db.json -uploads ./uploads -output /backups
    deckvault-backup verify -backup /backups/backup-20240101-120000
    deckvault-backup restore -backup /backups/backup-20240101-120000 -store sqlite -db ./deckvault.db -uploads ./uploads -dry-run
    deckvault-backup list -dir /backups
`, ToolName, ToolVersion)
}

// storeFlags selects the record store and upload directory a command works on
type storeFlags struct {
	store       string
	dataFile    string
	dbPath      string
	postgresURL string
	uploadsDir  string
}

func (s *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.store, "store", config.StoreBackendJSON, "Record store backend: json, sqlite or postgres")
	fs.StringVar(&s.dataFile, "data-file", "./files-db.json", "Registry JSON file (json store)")
	fs.StringVar(&s.dbPath, "db", "./deckvault.db", "SQLite database (sqlite store)")
	fs.StringVar(&s.postgresURL, "postgres-url", "", "PostgreSQL connection string (postgres store)")
	fs.StringVar(&s.uploadsDir, "uploads", "", "Upload directory (required for full backups)")
}

func (s *storeFlags) openRepository(ctx context.Context) (repository.RecordRepository, error) {
	switch s.store {
	case config.StoreBackendJSON:
		if s.dataFile == "" {
			return nil, errors.New("-data-file is required for the json store")
		}
		return jsonfile.New(s.dataFile), nil
	case config.StoreBackendSQLite:
		if s.dbPath == "" {
			return nil, errors.New("-db is required for the sqlite store")
		}
		repo, err := sqlite.Open(s.dbPath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StoreBackendPostgres:
		if s.postgresURL == "" {
			return nil, errors.New("-postgres-url is required for the postgres store")
		}
		repo, err := postgres.Open(ctx, s.postgresURL, 2, true)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("-store must be json, sqlite or postgres, got %q", s.store)
	}
}

func runCreate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(out)

	var sf storeFlags
	sf.register(fs)
	mode := fs.String("mode", string(backup.ModeFull), "Backup mode: records or full")
	outputDir := fs.String("output", "", "Output directory for backups (required)")
	quiet := fs.Bool("quiet", false, "Print only the backup path")
	jsonOutput := fs.Bool("json", false, "JSON output format")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *outputDir == "" {
		return errors.New("-output flag is required")
	}
	backupMode := backup.Mode(strings.ToLower(*mode))
	if !backupMode.IsValid() {
		return fmt.Errorf("invalid backup mode: %s (must be records or full)", *mode)
	}
	if backupMode == backup.ModeFull && sf.uploadsDir == "" {
		return errors.New("-uploads flag is required for full backup mode")
	}

	ctx := context.Background()
	repo, err := sf.openRepository(ctx)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer repo.Close()

	opts := backup.CreateOptions{
		Mode:      backupMode,
		Repo:      repo,
		OutputDir: *outputDir,
	}
	if backupMode == backup.ModeFull {
		blobs, err := filesystem.NewFilesystemStorage(sf.uploadsDir)
		if err != nil {
			return fmt.Errorf("failed to open uploads directory: %w", err)
		}
		opts.Blobs = blobs
	}
	if !*quiet && !*jsonOutput {
		opts.ProgressCallback = func(current, total int, name string) {
			fmt.Fprintf(out, "  [%d/%d] %s\n", current, total, name)
		}
		fmt.Fprintf(out, "Creating %s backup in %s\n", backupMode, *outputDir)
	}

	result, err := backup.Create(ctx, opts)

	switch {
	case *jsonOutput:
		printJSON(out, result)
	case *quiet:
		if err == nil {
			fmt.Fprintln(out, result.BackupPath)
		}
	default:
		printCreateResult(out, result)
	}
	return err
}

func runRestore(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(out)

	var sf storeFlags
	sf.register(fs)
	backupPath := fs.String("backup", "", "Path to backup directory (required)")
	orphans := fs.String("orphans", string(backup.OrphanKeep), "Records whose blob is missing: keep or remove")
	dryRun := fs.Bool("dry-run", false, "Preview restore without making changes")
	force := fs.Bool("force", false, "Overwrite a registry that already has records")
	quiet := fs.Bool("quiet", false, "Minimal output")
	jsonOutput := fs.Bool("json", false, "JSON output format")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *backupPath == "" {
		return errors.New("-backup flag is required")
	}
	if _, err := os.Stat(*backupPath); err != nil {
		return fmt.Errorf("cannot access backup: %w", err)
	}

	ctx := context.Background()
	repo, err := sf.openRepository(ctx)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer repo.Close()

	opts := backup.RestoreOptions{
		InputDir: *backupPath,
		Repo:     repo,
		Orphans:  backup.OrphanHandling(strings.ToLower(*orphans)),
		Force:    *force,
		DryRun:   *dryRun,
	}
	if sf.uploadsDir != "" {
		blobs, err := filesystem.NewFilesystemStorage(sf.uploadsDir)
		if err != nil {
			return fmt.Errorf("failed to open uploads directory: %w", err)
		}
		opts.Blobs = blobs
	}

	result, err := backup.Restore(ctx, opts)

	switch {
	case *jsonOutput:
		printJSON(out, result)
	case *quiet:
	default:
		printRestoreResult(out, result)
	}
	return err
}

func runVerify(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(out)

	backupPath := fs.String("backup", "", "Path to backup directory (required)")
	quiet := fs.Bool("quiet", false, "Minimal output")
	jsonOutput := fs.Bool("json", false, "JSON output format")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *backupPath == "" {
		return errors.New("-backup flag is required")
	}

	result := backup.Verify(*backupPath)

	switch {
	case *jsonOutput:
		printJSON(out, result)
	case *quiet:
	default:
		printVerifyResult(out, result)
	}

	if !result.Valid {
		return errors.New("backup verification failed")
	}
	return nil
}

func runList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(out)

	dir := fs.String("dir", "", "Directory containing backups (required)")
	jsonOutput := fs.Bool("json", false, "JSON output format")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return errors.New("-dir flag is required")
	}

	backups, err := backup.List(*dir)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if *jsonOutput {
		printJSON(out, backups)
		return nil
	}

	if len(backups) == 0 {
		fmt.Fprintf(out, "No backups found in %s\n", *dir)
		return nil
	}

	fmt.Fprintf(out, "%-32s %-8s %-8s %-10s %s\n", "NAME", "MODE", "RECORDS", "SIZE", "CREATED")
	for _, b := range backups {
		fmt.Fprintf(out, "%-32s %-8s %-8d %-10s %s\n",
			b.Name, b.Mode, b.Records, utils.FormatBytes(uint64(b.SizeBytes)), b.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printCreateResult(out io.Writer, r *backup.Result) {
	fmt.Fprintln(out)
	if !r.Success {
		fmt.Fprintf(out, "Backup FAILED: %s\n", r.Error)
		return
	}

	stats := r.Manifest.Stats
	fmt.Fprintln(out, "Backup completed successfully!")
	fmt.Fprintf(out, "  Location: %s\n", r.BackupPath)
	fmt.Fprintf(out, "  Duration: %s\n", r.DurationString)
	fmt.Fprintf(out, "  Records:  %d\n", stats.Records)
	if r.Manifest.Mode == backup.ModeFull {
		fmt.Fprintf(out, "  Blobs:    %d (%d missing)\n", stats.BlobsBackedUp, stats.BlobsMissing)
	}
	fmt.Fprintf(out, "  Size:     %s\n", utils.FormatBytes(uint64(stats.TotalSizeBytes)))
	for _, w := range r.Manifest.Warnings {
		fmt.Fprintf(out, "  Warning:  %s\n", w)
	}
}

func printRestoreResult(out io.Writer, r *backup.RestoreResult) {
	if !r.Success {
		fmt.Fprintf(out, "Restore FAILED: %s\n", r.Error)
		return
	}

	if r.DryRun {
		fmt.Fprintln(out, "Restore preview (dry run, no changes made)")
	} else {
		fmt.Fprintln(out, "Restore completed successfully!")
	}
	fmt.Fprintf(out, "  Records restored: %d\n", r.RecordsRestored)
	fmt.Fprintf(out, "  Blobs restored:   %d\n", r.BlobsRestored)
	if r.BlobsSkipped > 0 {
		fmt.Fprintf(out, "  Blobs skipped:    %d (already present)\n", r.BlobsSkipped)
	}
	if r.OrphansKept > 0 || r.OrphansRemoved > 0 {
		fmt.Fprintf(out, "  Orphans:          %d kept, %d removed\n", r.OrphansKept, r.OrphansRemoved)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(out, "  Warning: %s\n", w)
	}
}

func printVerifyResult(out io.Writer, r *backup.VerifyResult) {
	if r.Valid {
		fmt.Fprintln(out, "Backup is VALID")
	} else {
		fmt.Fprintln(out, "Backup is INVALID")
	}
	if r.Manifest != nil {
		fmt.Fprintf(out, "  Created: %s\n", r.Manifest.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(out, "  Mode:    %s\n", r.Manifest.Mode)
		fmt.Fprintf(out, "  Records: %d\n", r.Manifest.Stats.Records)
	}
	for _, m := range r.ChecksumMismatches {
		fmt.Fprintf(out, "  Checksum mismatch: %s\n", m.File)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(out, "  Error: %s\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(out, "  Warning: %s\n", w)
	}
}

func printJSON(out io.Writer, v any) {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	encoder.Encode(v)
}
