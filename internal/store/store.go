// Package store persists processed payment records in sqlite and answers the
// existence checks the pipeline uses to skip already-ingested submissions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Lllllllleong/paymentproofflow/internal/models"
	_ "modernc.org/sqlite"
)

const (
	// RecordsTable is the table holding one row per processed submission.
	RecordsTable = "payment_records"
	// DedupColumn is the column submissions are deduplicated on.
	DedupColumn = "fileName"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

const schema = `
CREATE TABLE IF NOT EXISTS payment_records (
	fileName TEXT PRIMARY KEY,
	submissionTime TEXT NOT NULL,
	condoName TEXT,
	roomNumber TEXT NOT NULL,
	monthsCovered TEXT,
	fileLink TEXT NOT NULL,
	transferFromWhom TEXT,
	transferToWhom TEXT,
	transferFromAccountNo TEXT,
	transferToAccountNo TEXT,
	transferDateTime TEXT,
	amount INTEGER,
	transactionID TEXT,
	transferReceiptMemo TEXT
);
CREATE INDEX IF NOT EXISTS idx_payment_records_fileName ON payment_records (fileName);
`

// Store wraps the sqlite database holding payment records.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and ensures
// the records schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path cannot be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sqlite database %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure records schema: %w", err)
	}
	slog.Info("Record store ready.", "path", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether any row in table has column equal to value. Table
// and column names are restricted to identifier characters because they are
// interpolated into the statement.
func (s *Store) Exists(ctx context.Context, table, column, value string) (bool, error) {
	if !identifierPattern.MatchString(table) || !identifierPattern.MatchString(column) {
		return false, fmt.Errorf("table or column name is not a valid identifier: %s.%s", table, column)
	}
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? LIMIT 1", table, column)
	var one int
	err := s.db.QueryRowContext(ctx, query, value).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("existence check on %s.%s: %w", table, column, err)
	}
	return true, nil
}

// FilterNew returns the rows whose fileName is not yet recorded, preserving
// input order.
func (s *Store) FilterNew(ctx context.Context, rows []models.SubmissionRow) ([]models.SubmissionRow, error) {
	var fresh []models.SubmissionRow
	skipped := 0
	for _, row := range rows {
		found, err := s.Exists(ctx, RecordsTable, DedupColumn, row.FileName)
		if err != nil {
			return nil, err
		}
		if found {
			skipped++
			slog.Info("Submission already recorded. Skipping.", "fileName", row.FileName)
			continue
		}
		fresh = append(fresh, row)
	}
	slog.Info("Deduplication filter applied.", "kept", len(fresh), "skipped", skipped)
	return fresh, nil
}

// Insert writes one processed submission record.
func (s *Store) Insert(ctx context.Context, rec models.PaymentRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO payment_records(
  fileName, submissionTime, condoName, roomNumber, monthsCovered, fileLink,
  transferFromWhom, transferToWhom, transferFromAccountNo, transferToAccountNo,
  transferDateTime, amount, transactionID, transferReceiptMemo
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		rec.FileName, rec.SubmissionTime, rec.CondoName, rec.RoomNumber,
		rec.MonthsCovered, rec.FileLink,
		rec.Fields.TransferFromWhom, rec.Fields.TransferToWhom,
		rec.Fields.TransferFromAccountNo, rec.Fields.TransferToAccountNo,
		rec.Fields.TransferDateTime, rec.Fields.Amount,
		rec.Fields.TransactionID, rec.Fields.TransferReceiptMemo,
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", rec.FileName, err)
	}
	return nil
}
