package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "auditcli/internal/errors"
	"auditcli/pkg/contracts/domain"
)

// masterSheet is the sheet the audit table lives on.
const masterSheet = "Audit"

// masterHeader is the fixed column order of the master workbook. The
// session-keys column is the persisted deduplication state; everything
// before it is the visible summary.
var masterHeader = []string{
	"Display Code",
	"Student Name",
	"Gender",
	"Year Level",
	"House",
	"Session Count",
	"Goal Status",
	"Last Seen",
	"Session Keys",
}

const dateCellFormat = "2006-01-02"

// MasterStore loads and saves the cumulative master workbook.
type MasterStore struct {
	logger *slog.Logger
	path   string
}

// NewMasterStore creates a store for the workbook at path.
func NewMasterStore(logger *slog.Logger, path string) *MasterStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MasterStore{logger: logger, path: path}
}

// Load reads the master table from the workbook. A missing workbook is
// a first run and yields an empty table, not an error.
func (s *MasterStore) Load(ctx context.Context) (domain.MasterTable, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.logger.InfoContext(ctx, "master workbook not found, starting empty",
			slog.String("path", s.path))
		return domain.MasterTable{}, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return domain.MasterTable{}, apperrors.NewStorageError("failed to open master workbook", err).
			WithContext("path", s.path)
	}
	defer f.Close()

	sheet := masterSheet
	rows, err := f.GetRows(sheet)
	if err != nil {
		// Older workbooks may predate the named sheet; fall back to the
		// first sheet present.
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return domain.MasterTable{}, apperrors.NewStorageError("master workbook has no sheets", nil).
				WithContext("path", s.path)
		}
		sheet = sheets[0]
		rows, err = f.GetRows(sheet)
		if err != nil {
			return domain.MasterTable{}, apperrors.NewStorageError("failed to read master sheet", err).
				WithContext("path", s.path)
		}
	}

	if len(rows) == 0 {
		return domain.MasterTable{}, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.TrimSpace(name)] = i
	}
	if _, ok := columns["Display Code"]; !ok {
		return domain.MasterTable{}, apperrors.NewValidationError("master workbook is missing the Display Code column").
			WithContext("path", s.path)
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	table := domain.MasterTable{}
	for i, row := range rows[1:] {
		code := cell(row, "Display Code")
		if code == "" {
			continue
		}

		summary := domain.StudentSummary{
			StudentCode: code,
			StudentName: cell(row, "Student Name"),
			Gender:      cell(row, "Gender"),
			YearLevel:   cell(row, "Year Level"),
			House:       cell(row, "House"),
		}

		if err := summary.ParseSessionKeysFromCell(cell(row, "Session Keys")); err != nil {
			return domain.MasterTable{}, apperrors.NewStorageError("corrupt session keys in master workbook", err).
				WithContext("path", s.path).
				WithContext("row", i+2).
				WithContext("student_code", code)
		}

		goals, err := parseGoalStatusCell(cell(row, "Goal Status"))
		if err != nil {
			return domain.MasterTable{}, apperrors.NewStorageError("corrupt goal status in master workbook", err).
				WithContext("path", s.path).
				WithContext("row", i+2).
				WithContext("student_code", code)
		}
		summary.GoalStatus = goals

		if lastSeen := cell(row, "Last Seen"); lastSeen != "" {
			t, err := time.Parse(dateCellFormat, lastSeen)
			if err != nil {
				return domain.MasterTable{}, apperrors.NewStorageError("corrupt last-seen date in master workbook", err).
					WithContext("path", s.path).
					WithContext("row", i+2).
					WithContext("student_code", code)
			}
			summary.LastSeen = t
		}

		table.Rows = append(table.Rows, summary)
	}

	s.logger.InfoContext(ctx, "loaded master table",
		slog.String("path", s.path),
		slog.Int("rows", table.Len()))

	return table, nil
}

// Save writes the full table back to the workbook. The write goes to a
// temporary file first and is renamed into place, so an interrupted
// save leaves the previous workbook intact.
func (s *MasterStore) Save(ctx context.Context, table domain.MasterTable) error {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if defaultSheet != masterSheet {
		if err := f.SetSheetName(defaultSheet, masterSheet); err != nil {
			return apperrors.NewStorageError("failed to name master sheet", err)
		}
	}

	for i, name := range masterHeader {
		cellRef, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(masterSheet, cellRef, name); err != nil {
			return apperrors.NewStorageError("failed to write master header", err)
		}
	}

	for r, summary := range table.Rows {
		values := []string{
			summary.StudentCode,
			summary.StudentName,
			summary.Gender,
			summary.YearLevel,
			summary.House,
			strconv.Itoa(summary.SessionCount),
			formatGoalStatusCell(summary.GoalStatus),
			formatDateCell(summary.LastSeen),
			summary.FormatSessionKeysForCell(),
		}
		for c, value := range values {
			cellRef, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(masterSheet, cellRef, value); err != nil {
				return apperrors.NewStorageError("failed to write master row", err).
					WithContext("student_code", summary.StudentCode)
			}
		}
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.NewStorageError("failed to create master directory", err).
				WithContext("path", s.path)
		}
	}

	tmp := s.path + ".tmp"
	if err := f.SaveAs(tmp); err != nil {
		return apperrors.NewStorageError("failed to write master workbook", err).
			WithContext("path", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperrors.NewStorageError("failed to replace master workbook", err).
			WithContext("path", s.path)
	}

	s.logger.InfoContext(ctx, "saved master table",
		slog.String("path", s.path),
		slog.Int("rows", table.Len()))

	return nil
}

// formatGoalStatusCell encodes the goal map as a single cell:
//
//	numeracy=active@2025-01-01;wellbeing=met@2025-02-01
//
// Categories are sorted so the cell is deterministic between runs. The
// category is free text from the extract, so the codec delimiters and
// the escape character are backslash-escaped within it; statuses and
// dates come from closed vocabularies and need no escaping.
func formatGoalStatusCell(goals map[string]domain.GoalState) string {
	if len(goals) == 0 {
		return ""
	}

	categories := make([]string, 0, len(goals))
	for c := range goals {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		state := goals[c]
		parts = append(parts, fmt.Sprintf("%s=%s@%s", escapeGoalCategory(c), state.Status, state.UpdatedAt.Format(dateCellFormat)))
	}
	return strings.Join(parts, ";")
}

// parseGoalStatusCell decodes a persisted goal-status cell.
func parseGoalStatusCell(cellValue string) (map[string]domain.GoalState, error) {
	cellValue = strings.TrimSpace(cellValue)
	if cellValue == "" {
		return nil, nil
	}

	goals := make(map[string]domain.GoalState)
	for _, part := range splitGoalEntries(cellValue) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		category, rest, ok := cutGoalCategory(part)
		if !ok {
			return nil, fmt.Errorf("invalid goal entry %q", part)
		}
		statusText, dateText, ok := strings.Cut(rest, "@")
		if !ok {
			return nil, fmt.Errorf("invalid goal entry %q", part)
		}

		status := domain.GoalStatus(statusText)
		if !domain.ValidGoalStatus(status) {
			return nil, fmt.Errorf("unknown goal status %q", statusText)
		}
		updatedAt, err := time.Parse(dateCellFormat, dateText)
		if err != nil {
			return nil, fmt.Errorf("invalid goal date %q: %w", dateText, err)
		}

		goals[category] = domain.GoalState{Status: status, UpdatedAt: updatedAt}
	}

	return goals, nil
}

// escapeGoalCategory backslash-escapes the goal-cell delimiters and the
// escape character itself within a category name.
func escapeGoalCategory(category string) string {
	var b strings.Builder
	b.Grow(len(category))
	for i := 0; i < len(category); i++ {
		switch category[i] {
		case '\\', ';', '=', '@':
			b.WriteByte('\\')
		}
		b.WriteByte(category[i])
	}
	return b.String()
}

// splitGoalEntries splits a goal-status cell on unescaped semicolons,
// keeping escape sequences intact for cutGoalCategory.
func splitGoalEntries(cell string) []string {
	var entries []string
	var b strings.Builder
	escaped := false
	for i := 0; i < len(cell); i++ {
		c := cell[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			b.WriteByte(c)
			escaped = true
		case c == ';':
			entries = append(entries, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	entries = append(entries, b.String())
	return entries
}

// cutGoalCategory cuts a goal entry at its first unescaped '=' and
// unescapes the category half. The remainder is "status@date", which
// never contains escapes.
func cutGoalCategory(entry string) (category, rest string, ok bool) {
	var b strings.Builder
	escaped := false
	for i := 0; i < len(entry); i++ {
		c := entry[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '=':
			return b.String(), entry[i+1:], true
		default:
			b.WriteByte(c)
		}
	}
	return "", "", false
}

func formatDateCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateCellFormat)
}
