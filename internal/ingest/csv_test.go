package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "PaymentSlips.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadSubmissionLog(t *testing.T) {
	path := writeLog(t, `submissionTime,condoName,roomNumber,monthsCovered,fileLink
2025-06-01 10:30:45.123,Riverside,101/2,June,https://cdn.example.com/a.jpg
2025-06-02 08:00:00,Riverside,202,July,https://cdn.example.com/b.jpg; https://cdn.example.com/c.pdf
`)

	rows, err := ReadSubmissionLog(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "101/2", first.RoomNumber)
	// Forbidden characters flattened, fractional seconds dropped, time
	// punctuation replaced.
	assert.Equal(t, "101-2, 2025_06_01 10_30_45", first.FileName)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, first.SourceRefs)
	assert.Equal(t, 1, first.FileCount())

	second := rows[1]
	assert.Equal(t, []string{
		"https://cdn.example.com/b.jpg",
		"https://cdn.example.com/c.pdf",
	}, second.SourceRefs)
	assert.Equal(t, 2, second.FileCount())
}

func TestReadSubmissionLogIncompleteRow(t *testing.T) {
	path := writeLog(t, `submissionTime,condoName,roomNumber,monthsCovered,fileLink
2025-06-01 10:30:45,Riverside,101,,https://cdn.example.com/a.jpg
`)

	_, err := ReadSubmissionLog(path)
	var incomplete *IncompleteRowError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "monthsCovered", incomplete.Field)
	assert.Equal(t, 2, incomplete.Line)
}

func TestReadSubmissionLogEmptyLinks(t *testing.T) {
	path := writeLog(t, `submissionTime,condoName,roomNumber,monthsCovered,fileLink
2025-06-01 10:30:45,Riverside,101,June,; ;
`)

	_, err := ReadSubmissionLog(path)
	var incomplete *IncompleteRowError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "fileLink", incomplete.Field)
}

func TestBuildFileName(t *testing.T) {
	got := BuildFileName(`12:B\3`, "2025-01-31 23:59:59.999999")
	assert.Equal(t, "12-B-3, 2025_01_31 23_59_59", got)
}
