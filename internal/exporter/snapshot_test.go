package exporter

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcli/pkg/contracts/domain"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return records
}

func TestSnapshotWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "parsed.csv")
	writer := NewSnapshotWriter(slog.Default())

	table := domain.MasterTable{Rows: []domain.StudentSummary{
		{
			StudentCode:  "S1",
			StudentName:  "Alex Example",
			SessionCount: 1,
			SessionKeys:  []string{"2025-01-01|Review"},
			LastSeen:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			StudentCode:  "S2",
			StudentName:  "Sam Sample",
			SessionCount: 4,
			SessionKeys:  []string{"2025-01-01|A", "2025-01-02|A", "2025-01-03|A", "2025-01-04|A"},
			GoalStatus: map[string]domain.GoalState{
				"numeracy": {Status: domain.GoalMet, UpdatedAt: time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)},
			},
			LastSeen: time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC),
		},
	}}
	changes := domain.ChangeSummary{Changes: map[string]domain.ChangeKind{
		"S1": domain.ChangeUnchanged,
		"S2": domain.ChangeUpdated,
	}}

	require.NoError(t, writer.Write(context.Background(), path, table, changes))

	records := readCSV(t, path)
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, []string{
		"Display Code", "Student Name", "Gender", "Year Level", "House", "Session Count",
		"Has Numeracy Goal", "Numeracy Goal Status",
		"Last Seen", "Change",
	}, header)

	// Sorted by session count descending: S2 first.
	assert.Equal(t, "S2", records[1][0])
	assert.Equal(t, "4", records[1][5])
	assert.Equal(t, "true", records[1][6])
	assert.Equal(t, "met", records[1][7])
	assert.Equal(t, "updated", records[1][9])

	assert.Equal(t, "S1", records[2][0])
	assert.Equal(t, "false", records[2][6])
	assert.Equal(t, "", records[2][7])
	assert.Equal(t, "unchanged", records[2][9])
}

func TestSnapshotWriter_TiesSortByName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parsed.csv")
	writer := NewSnapshotWriter(slog.Default())

	table := domain.MasterTable{Rows: []domain.StudentSummary{
		{StudentCode: "S1", StudentName: "Zoe", SessionCount: 2, SessionKeys: []string{"2025-01-01|A", "2025-01-02|A"}},
		{StudentCode: "S2", StudentName: "Ari", SessionCount: 2, SessionKeys: []string{"2025-01-01|B", "2025-01-02|B"}},
	}}

	require.NoError(t, writer.Write(context.Background(), path, table, domain.ChangeSummary{}))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, "Ari", records[1][1])
	assert.Equal(t, "Zoe", records[2][1])
}
