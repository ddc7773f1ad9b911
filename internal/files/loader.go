package files

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	apperrors "auditcli/internal/errors"
	"auditcli/pkg/contracts/domain"
)

// Column headers expected in the extract. Mapping is header-driven so
// column order in the source report does not matter.
const (
	colStudentCode = "Display Code"
	colStudentName = "Student Name"
	colGender      = "Gender"
	colYearLevel   = "Year Level"
	colHouse       = "House"
	colCategory    = "Category"
	colOccurredAt  = "OccurredTimestamp"
	colDetails     = "Details"
)

// timestampFormats are the day-first layouts the school system exports,
// with and without seconds, padded and unpadded hours.
var timestampFormats = []string{
	"02/01/2006 3:04:05 PM",
	"02/01/2006 03:04:05 PM",
	"02/01/2006 3:04 PM",
	"02/01/2006 03:04 PM",
}

// ReadExtract decodes an extract CSV into chronicle rows. The first
// record must be a header row containing at least the student code and
// details columns. Rows keep their 1-based source position (header is
// row 1) for error reporting downstream.
func ReadExtract(path string) ([]domain.ChronicleRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open extract file", err).
			WithContext("path", path)
	}
	defer file.Close()

	return readExtract(file, path)
}

func readExtract(r io.Reader, path string) ([]domain.ChronicleRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read extract header", err).
			WithContext("path", path)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colStudentCode, colDetails} {
		if _, ok := columns[required]; !ok {
			return nil, apperrors.NewValidationError("extract is missing required column").
				WithContext("column", required).
				WithContext("path", path)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []domain.ChronicleRow
	rowNumber := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewStorageError("failed to read extract row", err).
				WithContext("path", path).
				WithContext("row_number", rowNumber+1)
		}
		rowNumber++

		rows = append(rows, domain.ChronicleRow{
			StudentCode: field(record, colStudentCode),
			StudentName: field(record, colStudentName),
			Gender:      field(record, colGender),
			YearLevel:   field(record, colYearLevel),
			House:       field(record, colHouse),
			Category:    field(record, colCategory),
			OccurredAt:  parseTimestamp(field(record, colOccurredAt)),
			Details:     field(record, colDetails),
			RowNumber:   rowNumber,
		})
	}

	return rows, nil
}

// parseTimestamp tries the known export layouts. An empty or
// unparseable timestamp yields the zero time rather than an error; the
// packed entries carry their own dates and the row timestamp is
// informational.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
