package exporter

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	apperrors "auditcli/internal/errors"
	"auditcli/pkg/contracts/domain"
)

// SnapshotWriter writes the per-run parsed CSV: every merged row with
// the change the run made to it, for eyeballing and downstream
// reporting.
type SnapshotWriter struct {
	logger *slog.Logger
}

// NewSnapshotWriter creates a snapshot writer.
func NewSnapshotWriter(logger *slog.Logger) *SnapshotWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotWriter{logger: logger}
}

// Write emits the snapshot CSV at path. Rows are sorted by session
// count descending, then student name, so the most-seen students lead
// the report. Goal columns are derived from the categories present in
// the table (sorted), a pair per category: existence and status.
func (w *SnapshotWriter) Write(ctx context.Context, path string, table domain.MasterTable, changes domain.ChangeSummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.NewStorageError("failed to create snapshot directory", err).
				WithContext("path", path)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError("failed to create snapshot file", err).
			WithContext("path", path)
	}
	defer file.Close()

	categories := goalCategories(table)

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Display Code", "Student Name", "Gender", "Year Level", "House", "Session Count"}
	for _, c := range categories {
		header = append(header, "Has "+titleCase(c)+" Goal", titleCase(c)+" Goal Status")
	}
	header = append(header, "Last Seen", "Change")

	if err := writer.Write(header); err != nil {
		return apperrors.NewStorageError("failed to write snapshot header", err)
	}

	rows := make([]domain.StudentSummary, len(table.Rows))
	copy(rows, table.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SessionCount != rows[j].SessionCount {
			return rows[i].SessionCount > rows[j].SessionCount
		}
		return rows[i].StudentName < rows[j].StudentName
	})

	for _, row := range rows {
		record := []string{
			row.StudentCode,
			row.StudentName,
			row.Gender,
			row.YearLevel,
			row.House,
			strconv.Itoa(row.SessionCount),
		}
		for _, c := range categories {
			if state, ok := row.GoalStatus[c]; ok {
				record = append(record, "true", string(state.Status))
			} else {
				record = append(record, "false", "")
			}
		}
		record = append(record, formatDateCell(row.LastSeen), string(changes.Changes[row.StudentCode]))

		if err := writer.Write(record); err != nil {
			return apperrors.NewStorageError("failed to write snapshot row", err).
				WithContext("student_code", row.StudentCode)
		}
	}

	w.logger.InfoContext(ctx, "wrote run snapshot",
		slog.String("path", path),
		slog.Int("rows", len(rows)))

	return nil
}

// goalCategories returns the union of goal categories present in the
// table, sorted.
func goalCategories(table domain.MasterTable) []string {
	set := make(map[string]struct{})
	for _, row := range table.Rows {
		for c := range row.GoalStatus {
			set[c] = struct{}{}
		}
	}
	categories := make([]string, 0, len(set))
	for c := range set {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// titleCase upper-cases the first letter of an ASCII category name for
// header display.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
