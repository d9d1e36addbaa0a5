package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/paymentproofflow/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(fileName string) models.PaymentRecord {
	amount := int64(125000)
	return models.PaymentRecord{
		FileName:       fileName,
		SubmissionTime: "2025-06-01 10:30:45",
		CondoName:      "Riverside",
		RoomNumber:     "101",
		MonthsCovered:  "June",
		FileLink:       "https://cdn.example.com/a.jpg",
		Fields:         models.ReceiptFields{Amount: &amount},
	}
}

func TestInsertAndExists(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	found, err := s.Exists(ctx, RecordsTable, DedupColumn, "101, 2025_06_01")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Insert(ctx, sampleRecord("101, 2025_06_01")))

	found, err = s.Exists(ctx, RecordsTable, DedupColumn, "101, 2025_06_01")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestInsertDuplicateFileNameFails(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Insert(ctx, sampleRecord("dup")))
	assert.Error(t, s.Insert(ctx, sampleRecord("dup")))
}

func TestExistsRejectsBadIdentifiers(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Exists(context.Background(), "payment_records; DROP TABLE x", DedupColumn, "v")
	assert.Error(t, err)
	_, err = s.Exists(context.Background(), RecordsTable, "fileName = ? OR 1=1 --", "v")
	assert.Error(t, err)
}

func TestFilterNewKeepsOrderAndSkipsRecorded(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Insert(ctx, sampleRecord("seen")))

	rows := []models.SubmissionRow{
		{FileName: "new-a", SubmissionTime: "t", RoomNumber: "1", SourceRefs: []string{"u"}},
		{FileName: "seen", SubmissionTime: "t", RoomNumber: "2", SourceRefs: []string{"u"}},
		{FileName: "new-b", SubmissionTime: "t", RoomNumber: "3", SourceRefs: []string{"u"}},
	}
	fresh, err := s.FilterNew(ctx, rows)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "new-a", fresh[0].FileName)
	assert.Equal(t, "new-b", fresh[1].FileName)
}
