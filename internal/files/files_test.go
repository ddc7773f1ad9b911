package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "auditcli/internal/errors"
)

func TestFindLatestExtract(t *testing.T) {
	dir := t.TempDir()

	older := filepath.Join(dir, "StudentChronicleOverview_week1.csv")
	newer := filepath.Join(dir, "StudentChronicleOverview_week2.csv")
	require.NoError(t, os.WriteFile(older, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("b"), 0644))

	// Make modification order explicit regardless of filesystem timing.
	now := time.Now()
	require.NoError(t, os.Chtimes(older, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))

	path, err := FindLatestExtract(filepath.Join(dir, "StudentChronicleOverview*.csv"))
	require.NoError(t, err)
	assert.Equal(t, newer, path)
}

func TestFindLatestExtract_NoMatches(t *testing.T) {
	dir := t.TempDir()

	_, err := FindLatestExtract(filepath.Join(dir, "StudentChronicleOverview*.csv"))

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestReadExtract(t *testing.T) {
	input := strings.Join([]string{
		`Display Code,Student Name,Gender,Year Level,House,Category,OccurredTimestamp,Details`,
		`S1,Alex Example,F,7,Bradman,Compass Meetings,14/02/2025 9:15 AM,session|2025-02-14|Compass Meeting`,
		`S2,Sam Sample,M,8,Chisholm,Individual Education Plan (IEP),14/02/2025 10:30:00 AM,goal|2025-02-14|numeracy|active`,
	}, "\n")

	rows, err := readExtract(strings.NewReader(input), "test.csv")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "S1", first.StudentCode)
	assert.Equal(t, "Alex Example", first.StudentName)
	assert.Equal(t, "Bradman", first.House)
	assert.Equal(t, "Compass Meetings", first.Category)
	assert.Equal(t, 2, first.RowNumber, "header is row 1")
	assert.Equal(t, time.Date(2025, 2, 14, 9, 15, 0, 0, time.UTC), first.OccurredAt)

	second := rows[1]
	assert.Equal(t, 3, second.RowNumber)
	assert.Equal(t, time.Date(2025, 2, 14, 10, 30, 0, 0, time.UTC), second.OccurredAt)
}

func TestReadExtract_ColumnOrderIndependent(t *testing.T) {
	input := strings.Join([]string{
		`Details,Display Code`,
		`session|2025-02-14|Review,S1`,
	}, "\n")

	rows, err := readExtract(strings.NewReader(input), "test.csv")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "S1", rows[0].StudentCode)
	assert.Equal(t, "session|2025-02-14|Review", rows[0].Details)
}

func TestReadExtract_MissingRequiredColumn(t *testing.T) {
	input := strings.Join([]string{
		`Display Code,Student Name`,
		`S1,Alex Example`,
	}, "\n")

	_, err := readExtract(strings.NewReader(input), "test.csv")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "with seconds",
			input: "14/02/2025 10:30:00 AM",
			want:  time.Date(2025, 2, 14, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "without seconds",
			input: "14/02/2025 9:15 AM",
			want:  time.Date(2025, 2, 14, 9, 15, 0, 0, time.UTC),
		},
		{
			name:  "afternoon",
			input: "01/12/2025 2:00 PM",
			want:  time.Date(2025, 12, 1, 14, 0, 0, 0, time.UTC),
		},
		{
			name:  "empty",
			input: "",
			want:  time.Time{},
		},
		{
			name:  "garbage",
			input: "not a time",
			want:  time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTimestamp(tt.input))
		})
	}
}
