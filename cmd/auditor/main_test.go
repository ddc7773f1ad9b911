package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcli/internal/config"
	"auditcli/internal/exporter"
)

const extractFixture = `Display Code,Student Name,Gender,Year Level,House,Category,OccurredTimestamp,Details
S1,Alex Example,F,7,Bradman,Chronicle,13/01/2025 9:00:00 AM,session|2025-01-06|Compass Meeting~session|2025-01-13|Compass Meeting~goal|2025-01-13|Numeracy|yellow
S2,Sam Sample,M,8,Chisholm,Chronicle,13/01/2025 9:05:00 AM,session|2025-01-13|Compass Meeting
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.ExtractGlob = filepath.Join(dir, "StudentChronicleOverview*.csv")
	cfg.Paths.MasterFile = filepath.Join(dir, "master.xlsx")
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	return cfg
}

func writeExtract(t *testing.T, cfg *config.Config, name, body string) {
	t.Helper()
	path := filepath.Join(filepath.Dir(cfg.Paths.MasterFile), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestRun_FirstRunCreatesMaster(t *testing.T) {
	cfg := testConfig(t)
	writeExtract(t, cfg, "StudentChronicleOverview-2025-01-13.csv", extractFixture)

	require.NoError(t, run(context.Background(), slog.Default(), cfg, "", false))

	store := exporter.NewMasterStore(slog.Default(), cfg.Paths.MasterFile)
	table, err := store.Load(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	s1, ok := table.Lookup("S1")
	require.True(t, ok)
	assert.Equal(t, 2, s1.SessionCount)
	assert.True(t, s1.HasGoal("numeracy"))

	snapshots, err := filepath.Glob(filepath.Join(cfg.Paths.OutputDir, "audit_snapshot_*.csv"))
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	writeExtract(t, cfg, "StudentChronicleOverview-2025-01-13.csv", extractFixture)
	ctx := context.Background()

	require.NoError(t, run(ctx, slog.Default(), cfg, "", false))
	require.NoError(t, run(ctx, slog.Default(), cfg, "", false))

	store := exporter.NewMasterStore(slog.Default(), cfg.Paths.MasterFile)
	table, err := store.Load(ctx)
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	s1, ok := table.Lookup("S1")
	require.True(t, ok)
	assert.Equal(t, 2, s1.SessionCount, "re-running the same extract must not inflate counts")
}

func TestRun_DryRunSavesNothing(t *testing.T) {
	cfg := testConfig(t)
	writeExtract(t, cfg, "StudentChronicleOverview-2025-01-13.csv", extractFixture)

	require.NoError(t, run(context.Background(), slog.Default(), cfg, "", true))

	assert.NoFileExists(t, cfg.Paths.MasterFile)
	assert.NoDirExists(t, cfg.Paths.OutputDir)
}

func TestRun_NoExtractFound(t *testing.T) {
	cfg := testConfig(t)

	err := run(context.Background(), slog.Default(), cfg, "", false)

	assert.Error(t, err)
}

func TestSnapshotName(t *testing.T) {
	at := time.Date(2025, 1, 13, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "audit_snapshot_2025-01-13.csv", snapshotName(at))
	assert.NotEmpty(t, snapshotName(time.Time{}))
}
