// Package ingest reads the tabular submission log and normalizes each line
// into a SubmissionRow ready for the pipeline.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/Lllllllleong/paymentproofflow/internal/models"
)

// The log carries no header names we trust; columns are fixed by position.
const (
	colSubmissionTime = iota
	colCondoName
	colRoomNumber
	colMonthsCovered
	colFileLink
	columnCount
)

// IncompleteRowError marks a log line missing one of the fields the pipeline
// depends on.
type IncompleteRowError struct {
	Line  int
	Field string
}

func (e *IncompleteRowError) Error() string {
	return fmt.Sprintf("submission log line %d is incomplete: missing %s", e.Line, e.Field)
}

// Characters that must not appear in a derived artifact name.
var forbiddenNameChars = regexp.MustCompile(`[/\\:;*?"<>| \x00-\x1f]`)

var timePunctuation = strings.NewReplacer(":", "_", "-", "_")

// ReadSubmissionLog parses the submission CSV at path. The first line is a
// header and is skipped; empty lines are ignored.
func ReadSubmissionLog(path string) ([]models.SubmissionRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open submission log: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows []models.SubmissionRow
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse submission log: %w", err)
		}
		line++
		if line == 1 {
			continue // header
		}
		if len(record) < columnCount {
			return nil, fmt.Errorf("submission log line %d has %d columns, want %d", line, len(record), columnCount)
		}

		row := models.SubmissionRow{
			SubmissionTime: strings.TrimSpace(record[colSubmissionTime]),
			CondoName:      strings.TrimSpace(record[colCondoName]),
			RoomNumber:     strings.TrimSpace(record[colRoomNumber]),
			MonthsCovered:  strings.TrimSpace(record[colMonthsCovered]),
			SourceRefs:     splitRefs(record[colFileLink]),
		}
		row.FileName = BuildFileName(row.RoomNumber, row.SubmissionTime)

		if err := validateRow(row, line); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	slog.Info("Submission log parsed.", "path", path, "rows", len(rows))
	return rows, nil
}

// BuildFileName derives the stable artifact base name for a submission:
// the sanitized room number and the submission timestamp with its fractional
// seconds dropped and time punctuation flattened.
func BuildFileName(roomNumber, submissionTime string) string {
	room := forbiddenNameChars.ReplaceAllString(roomNumber, "-")
	timePart, _, _ := strings.Cut(submissionTime, ".")
	timePart = timePunctuation.Replace(timePart)
	return room + ", " + timePart
}

// splitRefs turns the semicolon-delimited link column into the ordered list
// of remote references.
func splitRefs(raw string) []string {
	var refs []string
	for _, part := range strings.Split(raw, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			refs = append(refs, trimmed)
		}
	}
	return refs
}

func validateRow(row models.SubmissionRow, line int) error {
	checks := []struct {
		field string
		value string
	}{
		{"roomNumber", row.RoomNumber},
		{"submissionTime", row.SubmissionTime},
		{"monthsCovered", row.MonthsCovered},
		{"fileName", row.FileName},
	}
	for _, check := range checks {
		if check.value == "" {
			return &IncompleteRowError{Line: line, Field: check.field}
		}
	}
	if len(row.SourceRefs) == 0 {
		return &IncompleteRowError{Line: line, Field: "fileLink"}
	}
	return nil
}
