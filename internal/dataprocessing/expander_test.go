package dataprocessing

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcli/internal/config"
	apperrors "auditcli/internal/errors"
	"auditcli/pkg/contracts/domain"
)

func testExtractConfig() config.ExtractConfig {
	return config.Default().Extract
}

func TestExpander_Expand(t *testing.T) {
	expander := NewExpander(slog.Default(), testExtractConfig())

	tests := []struct {
		name       string
		rows       []domain.ChronicleRow
		wantFacts  int
		wantErrors int
	}{
		{
			name:       "empty batch",
			rows:       nil,
			wantFacts:  0,
			wantErrors: 0,
		},
		{
			name: "single session entry",
			rows: []domain.ChronicleRow{
				{StudentCode: "S1", Details: "session|2025-01-01|Compass Meeting"},
			},
			wantFacts:  1,
			wantErrors: 0,
		},
		{
			name: "multiple entries in one packed cell",
			rows: []domain.ChronicleRow{
				{StudentCode: "S1", Details: "session|2025-01-01|Compass Meeting~session|2025-01-08|Compass Meeting~goal|2025-01-01|numeracy|active"},
			},
			wantFacts:  3,
			wantErrors: 0,
		},
		{
			name: "row without details contributes nothing",
			rows: []domain.ChronicleRow{
				{StudentCode: "S1", Details: ""},
			},
			wantFacts:  0,
			wantErrors: 0,
		},
		{
			name: "malformed row skipped, rest processed",
			rows: []domain.ChronicleRow{
				{StudentCode: "S1", RowNumber: 1, Details: "session|2025-01-01|Compass Meeting"},
				{StudentCode: "S2", RowNumber: 2, Details: "session|2025-01-01"},
				{StudentCode: "S3", RowNumber: 3, Details: "goal|2025-01-02|wellbeing|met"},
			},
			wantFacts:  2,
			wantErrors: 1,
		},
		{
			name: "missing student code",
			rows: []domain.ChronicleRow{
				{StudentCode: "  ", RowNumber: 4, Details: "session|2025-01-01|Compass Meeting"},
			},
			wantFacts:  0,
			wantErrors: 1,
		},
		{
			name: "unbalanced delimiters reject the whole row",
			rows: []domain.ChronicleRow{
				{StudentCode: "S1", RowNumber: 5, Details: "session|2025-01-01|Compass Meeting~~goal|2025-01-01|numeracy|active"},
			},
			wantFacts:  0,
			wantErrors: 1,
		},
		{
			name: "unknown entry type",
			rows: []domain.ChronicleRow{
				{StudentCode: "S1", RowNumber: 6, Details: "meeting|2025-01-01|Compass Meeting"},
			},
			wantFacts:  0,
			wantErrors: 1,
		},
		{
			name: "bad date",
			rows: []domain.ChronicleRow{
				{StudentCode: "S1", RowNumber: 7, Details: "session|01/02/2025|Compass Meeting"},
			},
			wantFacts:  0,
			wantErrors: 1,
		},
		{
			name: "unknown goal status",
			rows: []domain.ChronicleRow{
				{StudentCode: "S1", RowNumber: 8, Details: "goal|2025-01-01|numeracy|purple"},
			},
			wantFacts:  0,
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, rowErrors := expander.Expand(tt.rows)

			assert.Len(t, facts, tt.wantFacts)
			assert.Len(t, rowErrors, tt.wantErrors)
		})
	}
}

func TestExpander_Expand_FactContents(t *testing.T) {
	expander := NewExpander(slog.Default(), testExtractConfig())

	rows := []domain.ChronicleRow{
		{StudentCode: "S1", Details: "session|2025-01-01|Compass Meeting~goal|2025-02-01|Numeracy|active"},
	}

	facts, rowErrors := expander.Expand(rows)
	require.Empty(t, rowErrors)
	require.Len(t, facts, 2)

	session := facts[0]
	assert.Equal(t, "S1", session.StudentCode)
	assert.Equal(t, domain.FactSession, session.Kind)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), session.Date)
	assert.Equal(t, "Compass Meeting", session.Value)
	assert.Equal(t, "2025-01-01|Compass Meeting", session.SessionKey())

	goal := facts[1]
	assert.Equal(t, domain.FactGoal, goal.Kind)
	assert.Equal(t, "numeracy", goal.Value, "category is normalized to lower case")
	assert.Equal(t, domain.GoalActive, goal.Status)
}

func TestExpander_Expand_StatusAliases(t *testing.T) {
	// The default aliases map the extract's traffic-light labels onto
	// canonical statuses.
	expander := NewExpander(slog.Default(), testExtractConfig())

	tests := []struct {
		raw  string
		want domain.GoalStatus
	}{
		{"green", domain.GoalMet},
		{"Green", domain.GoalMet},
		{"yellow", domain.GoalActive},
		{"red", domain.GoalActive},
		{"active", domain.GoalActive},
		{"met", domain.GoalMet},
		{"not_applicable", domain.GoalNotApplicable},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rows := []domain.ChronicleRow{
				{StudentCode: "S1", Details: "goal|2025-01-01|numeracy|" + tt.raw},
			}

			facts, rowErrors := expander.Expand(rows)
			require.Empty(t, rowErrors)
			require.Len(t, facts, 1)
			assert.Equal(t, tt.want, facts[0].Status)
		})
	}
}

func TestExpander_Expand_CustomDelimiters(t *testing.T) {
	cfg := testExtractConfig()
	cfg.EntryDelimiter = ";"
	cfg.FieldDelimiter = ":"
	expander := NewExpander(slog.Default(), cfg)

	rows := []domain.ChronicleRow{
		{StudentCode: "S1", Details: "session:2025-01-01:Review;session:2025-01-02:Review"},
	}

	facts, rowErrors := expander.Expand(rows)
	require.Empty(t, rowErrors)
	assert.Len(t, facts, 2)
}

func TestExpander_Expand_DoesNotMutateInput(t *testing.T) {
	expander := NewExpander(slog.Default(), testExtractConfig())

	rows := []domain.ChronicleRow{
		{StudentCode: "S1", Details: "session|2025-01-01|Compass Meeting"},
	}
	original := rows[0]

	_, _ = expander.Expand(rows)

	assert.Equal(t, original, rows[0])
}

func TestExpander_ExpandRow_MalformedErrorType(t *testing.T) {
	expander := NewExpander(slog.Default(), testExtractConfig())

	_, err := expander.expandRow(domain.ChronicleRow{
		StudentCode: "S1",
		RowNumber:   3,
		Details:     "nonsense",
	})

	require.NotNil(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMalformed))
	assert.Equal(t, 3, err.Context["row_number"])
}

func TestExpander_Expand_ErrorCarriesRowIdentity(t *testing.T) {
	expander := NewExpander(slog.Default(), testExtractConfig())

	rows := []domain.ChronicleRow{
		{StudentCode: "S9", RowNumber: 42, Details: "session|not-a-date|Review"},
	}

	_, rowErrors := expander.Expand(rows)
	require.Len(t, rowErrors, 1)

	assert.Equal(t, "S9", rowErrors[0].StudentCode)
	assert.Equal(t, 42, rowErrors[0].RowNumber)
	assert.Contains(t, rowErrors[0].Reason, "invalid date")
}
