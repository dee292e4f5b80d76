package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/dermascan-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
// The diagnoses table is created by migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection and verifies it.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a pooled connection from a URL.
func NewPostgresStoreFromURL(databaseURL string, cfg domain.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen, maxIdle, lifetime := cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

const pgColumns = `id, user_id, patient_name, primary_label, results, symptoms, image_ref, overlay_ref, created_at`

// Save inserts a diagnosis record.
func (s *PostgresStore) Save(ctx context.Context, record *domain.DiagnosisRecord) (*domain.DiagnosisRecord, error) {
	if err := prepare(record); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, s.db, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *PostgresStore) insert(ctx context.Context, db execer, record *domain.DiagnosisRecord) error {
	results, symptoms, err := encodeColumns(record)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO diagnoses (`+pgColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
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
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.DiagnosisRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pgColumns+` FROM diagnoses WHERE id = $1`, id)

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
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.DiagnosisRecord, error) {
	limit, offset = normalizePage(limit, offset)
	return s.query(ctx, `
		SELECT `+pgColumns+`
		FROM diagnoses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.DiagnosisRecord, error) {
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
func (s *PostgresStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM diagnoses WHERE user_id = $1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return count, nil
}

// Delete removes a record by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM diagnoses WHERE id = $1", id)
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
func (s *PostgresStore) ExportJSON(ctx context.Context, userID string, writer io.Writer) error {
	var (
		records []*domain.DiagnosisRecord
		err     error
	)
	if userID == "" {
		records, err = s.query(ctx, `SELECT `+pgColumns+` FROM diagnoses ORDER BY created_at DESC LIMIT $1`, maxExportLimit)
	} else {
		records, err = s.ListByUser(ctx, userID, maxExportLimit, 0)
	}
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	return writeExport(writer, records)
}

// ImportJSON imports history, skipping IDs that already exist.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
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
		if err := prepare(rec); err != nil {
			skipped++
			continue
		}

		results, symptoms, err := encodeColumns(rec)
		if err != nil {
			return imported, skipped, err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO diagnoses (`+pgColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`,
			rec.ID, rec.UserID, rec.PatientName, string(rec.Primary),
			string(results), string(symptoms), rec.ImageRef, rec.OverlayRef, rec.CreatedAt,
		)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to insert: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			skipped++
			continue
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit: %w", err)
	}
	return imported, skipped, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
