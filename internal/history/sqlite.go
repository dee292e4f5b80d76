package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/dermascan-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite history store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS diagnoses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		patient_name TEXT DEFAULT '',
		primary_label TEXT NOT NULL,
		results TEXT NOT NULL,
		symptoms TEXT NOT NULL DEFAULT '[]',
		image_ref TEXT DEFAULT '',
		overlay_ref TEXT DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_diagnoses_user_created ON diagnoses(user_id, created_at);
	`

	_, err := db.Exec(schema)
	return err
}

const sqliteColumns = `id, user_id, patient_name, primary_label, results, symptoms, image_ref, overlay_ref, created_at`

// Save inserts a diagnosis record.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.DiagnosisRecord) (*domain.DiagnosisRecord, error) {
	if err := prepare(record); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, s.db, record); err != nil {
		return nil, err
	}
	return record, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, db execer, record *domain.DiagnosisRecord) error {
	results, symptoms, err := encodeColumns(record)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO diagnoses (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.UserID,
		record.PatientName,
		string(record.Primary),
		string(results),
		string(symptoms),
		record.ImageRef,
		record.OverlayRef,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves one record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.DiagnosisRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM diagnoses WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("diagnosis %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// ListByUser returns a page of a user's history ordered newest first.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.DiagnosisRecord, error) {
	limit, offset = normalizePage(limit, offset)
	return s.query(ctx, `
		SELECT `+sqliteColumns+`
		FROM diagnoses
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.DiagnosisRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var records []*domain.DiagnosisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByUser returns how many diagnoses a user has.
func (s *SQLiteStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM diagnoses WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return count, nil
}

// Delete removes a record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM diagnoses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("diagnosis %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ExportJSON writes history to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, userID string, writer io.Writer) error {
	var (
		records []*domain.DiagnosisRecord
		err     error
	)
	if userID == "" {
		records, err = s.query(ctx, `SELECT `+sqliteColumns+` FROM diagnoses ORDER BY created_at DESC LIMIT ?`, maxExportLimit)
	} else {
		records, err = s.ListByUser(ctx, userID, maxExportLimit, 0)
	}
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	return writeExport(writer, records)
}

// ImportJSON imports history from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	export, err := readExport(reader)
	if err != nil {
		return 0, 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	imported, skipped := 0, 0
	for _, rec := range export.Diagnoses {
		if rec == nil || rec.ID == "" {
			skipped++
			continue
		}

		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM diagnoses WHERE id = ?", rec.ID).Scan(&exists)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if err := prepare(rec); err != nil {
			skipped++
			continue
		}
		if err := s.insert(ctx, tx, rec); err != nil {
			return imported, skipped, err
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit: %w", err)
	}
	return imported, skipped, nil
}

// Ping checks the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}
