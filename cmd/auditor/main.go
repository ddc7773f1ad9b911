package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"auditcli/internal/config"
	"auditcli/internal/dataprocessing"
	"auditcli/internal/exporter"
	"auditcli/internal/files"
	"auditcli/internal/infrastructure"
	"auditcli/pkg/contracts/domain"
)

func main() {
	configFile := flag.String("config", "", "path to a yaml config file (optional, env vars win)")
	extractPath := flag.String("extract", "", "process this extract file instead of the newest glob match")
	masterPath := flag.String("master", "", "override the master workbook path")
	outDir := flag.String("out", "", "override the snapshot output directory")
	dryRun := flag.Bool("dry-run", false, "run the merge and report changes without saving anything")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *masterPath != "" {
		cfg.Paths.MasterFile = *masterPath
	}
	if *outDir != "" {
		cfg.Paths.OutputDir = *outDir
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	if err := run(context.Background(), logger, cfg, *extractPath, *dryRun); err != nil {
		logger.Error("Audit run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, extractPath string, dryRun bool) error {
	if extractPath == "" {
		latest, err := files.FindLatestExtract(cfg.Paths.ExtractGlob)
		if err != nil {
			return fmt.Errorf("locate extract: %w", err)
		}
		extractPath = latest
	}

	logger.InfoContext(ctx, "processing extract",
		slog.String("extract", extractPath),
		slog.String("master", cfg.Paths.MasterFile),
		slog.Bool("dry_run", dryRun))

	rows, err := files.ReadExtract(extractPath)
	if err != nil {
		return fmt.Errorf("read extract: %w", err)
	}

	store := exporter.NewMasterStore(logger, cfg.Paths.MasterFile)
	master, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load master: %w", err)
	}

	pipeline := dataprocessing.NewPipeline(logger, cfg.Extract)
	updated, changes, err := pipeline.Run(ctx, rows, master)
	if err != nil {
		return err
	}

	reportChanges(ctx, logger, changes)

	if dryRun {
		logger.InfoContext(ctx, "dry run, skipping save")
		return nil
	}

	if err := store.Save(ctx, updated); err != nil {
		return fmt.Errorf("save master: %w", err)
	}

	snapshotPath := filepath.Join(cfg.Paths.OutputDir, snapshotName(changes.GeneratedAt))
	writer := exporter.NewSnapshotWriter(logger)
	if err := writer.Write(ctx, snapshotPath, updated, changes); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

// reportChanges logs the run outcome, including each row error so a
// malformed extract line is visible without opening the snapshot.
func reportChanges(ctx context.Context, logger *slog.Logger, changes domain.ChangeSummary) {
	logger.InfoContext(ctx, "merge summary",
		slog.String("run_id", changes.RunID),
		slog.Int("appended", changes.Appended),
		slog.Int("updated", changes.Updated),
		slog.Int("unchanged", changes.Unchanged),
		slog.Int("row_errors", len(changes.Errors)))

	for _, rowErr := range changes.Errors {
		logger.WarnContext(ctx, "skipped malformed extract row",
			slog.Int("row", rowErr.RowNumber),
			slog.String("student_code", rowErr.StudentCode),
			slog.String("reason", rowErr.Reason))
	}
}

func snapshotName(generatedAt time.Time) string {
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	return fmt.Sprintf("audit_snapshot_%s.csv", generatedAt.Format("2006-01-02"))
}
