package dataprocessing

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"auditcli/internal/config"
	apperrors "auditcli/internal/errors"
	"auditcli/pkg/contracts/domain"
)

// Expander turns raw chronicle rows into atomic facts by unpacking the
// packed Details column. The unpacking convention (delimiters, field
// order, date format, status aliases) comes entirely from configuration.
type Expander struct {
	logger   *slog.Logger
	cfg      config.ExtractConfig
	statuses map[string]domain.GoalStatus
}

// NewExpander creates an expander for the given extract convention.
func NewExpander(logger *slog.Logger, cfg config.ExtractConfig) *Expander {
	if logger == nil {
		logger = slog.Default()
	}

	// Canonical statuses are always accepted; aliases map the extract's
	// raw labels onto them.
	statuses := map[string]domain.GoalStatus{
		string(domain.GoalActive):        domain.GoalActive,
		string(domain.GoalMet):           domain.GoalMet,
		string(domain.GoalNotApplicable): domain.GoalNotApplicable,
	}
	for raw, canonical := range cfg.StatusAliases {
		statuses[strings.ToLower(strings.TrimSpace(raw))] = domain.GoalStatus(canonical)
	}

	return &Expander{
		logger:   logger,
		cfg:      cfg,
		statuses: statuses,
	}
}

// Expand parses every row's Details column and returns the recovered
// facts together with the rows that could not be parsed. A malformed
// row is skipped in its entirety (none of its facts are emitted) and
// recorded as a RowError; one bad row never blocks the rest of the
// batch. Input rows are not mutated.
func (e *Expander) Expand(rows []domain.ChronicleRow) ([]domain.Fact, []domain.RowError) {
	facts := make([]domain.Fact, 0, len(rows))
	var rowErrors []domain.RowError

	for _, row := range rows {
		rowFacts, expandErr := e.expandRow(row)
		if expandErr != nil {
			e.logger.Warn("skipping malformed extract row",
				slog.Int("row_number", row.RowNumber),
				slog.String("student_code", row.StudentCode),
				slog.String("reason", expandErr.Message))
			rowErrors = append(rowErrors, domain.RowError{
				StudentCode: row.StudentCode,
				RowNumber:   row.RowNumber,
				Reason:      expandErr.Message,
			})
			continue
		}
		facts = append(facts, rowFacts...)
	}

	return facts, rowErrors
}

// expandRow parses a single row. It returns all facts or, on the first
// malformed entry, a MALFORMED error describing why the whole row is
// rejected.
func (e *Expander) expandRow(row domain.ChronicleRow) ([]domain.Fact, *apperrors.AppError) {
	code := strings.TrimSpace(row.StudentCode)
	if code == "" {
		return nil, apperrors.NewMalformedExtractError(row.RowNumber, "missing student code")
	}

	details := strings.TrimSpace(row.Details)
	if details == "" {
		// A row without packed entries contributes nothing; the extract
		// also carries plain administrative rows.
		return nil, nil
	}

	entries := strings.Split(details, e.cfg.EntryDelimiter)
	facts := make([]domain.Fact, 0, len(entries))

	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, apperrors.NewMalformedExtractError(row.RowNumber,
				fmt.Sprintf("empty entry at position %d: unbalanced %q delimiters", i, e.cfg.EntryDelimiter))
		}

		fact, err := e.parseEntry(code, entry)
		if err != nil {
			return nil, apperrors.NewMalformedExtractError(row.RowNumber, fmt.Sprintf("entry %d: %v", i, err))
		}
		facts = append(facts, fact)
	}

	return facts, nil
}

// parseEntry parses one packed entry. The first field is the type tag:
//
//	session|<date>|<value>
//	goal|<date>|<category>|<status>
func (e *Expander) parseEntry(code, entry string) (domain.Fact, error) {
	fields := strings.Split(entry, e.cfg.FieldDelimiter)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	switch tag := strings.ToLower(fields[0]); tag {
	case string(domain.FactSession):
		if len(fields) != 3 {
			return domain.Fact{}, fmt.Errorf("session entry needs 3 fields, got %d", len(fields))
		}
		date, err := e.parseDate(fields[1])
		if err != nil {
			return domain.Fact{}, err
		}
		if fields[2] == "" {
			return domain.Fact{}, fmt.Errorf("session entry has empty value")
		}
		return domain.Fact{
			StudentCode: code,
			Kind:        domain.FactSession,
			Date:        date,
			Value:       fields[2],
		}, nil

	case string(domain.FactGoal):
		if len(fields) != 4 {
			return domain.Fact{}, fmt.Errorf("goal entry needs 4 fields, got %d", len(fields))
		}
		date, err := e.parseDate(fields[1])
		if err != nil {
			return domain.Fact{}, err
		}
		category := strings.ToLower(fields[2])
		if category == "" {
			return domain.Fact{}, fmt.Errorf("goal entry has empty category")
		}
		status, ok := e.statuses[strings.ToLower(fields[3])]
		if !ok {
			return domain.Fact{}, fmt.Errorf("unknown goal status %q", fields[3])
		}
		return domain.Fact{
			StudentCode: code,
			Kind:        domain.FactGoal,
			Date:        date,
			Value:       category,
			Status:      status,
		}, nil

	default:
		return domain.Fact{}, fmt.Errorf("unknown entry type %q", fields[0])
	}
}

func (e *Expander) parseDate(s string) (time.Time, error) {
	date, err := time.Parse(e.cfg.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected format %q", s, e.cfg.DateFormat)
	}
	return date, nil
}
