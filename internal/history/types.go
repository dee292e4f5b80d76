// Package history persists finished diagnoses per user.
// It is the diagnosis-history sink: records carry the label to probability
// mapping, the checklist used, and content references to the images.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dermascan-server/internal/domain"
)

// Store defines the interface for diagnosis history storage.
type Store interface {
	// Save inserts a record, assigning ID and CreatedAt when unset.
	Save(ctx context.Context, record *domain.DiagnosisRecord) (*domain.DiagnosisRecord, error)

	// Get returns the record with id or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.DiagnosisRecord, error)

	// ListByUser returns a user's records, newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.DiagnosisRecord, error)

	// CountByUser returns the number of records for a user.
	CountByUser(ctx context.Context, userID string) (int64, error)

	// Delete removes a record by ID, or returns domain.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes a user's records, or all records when userID is empty.
	ExportJSON(ctx context.Context, userID string, writer io.Writer) error

	// ImportJSON loads an export. Records whose ID already exists are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Ping checks the backing database.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string                    `json:"version"`
	ExportedAt time.Time                 `json:"exported_at"`
	Count      int                       `json:"count"`
	Diagnoses  []*domain.DiagnosisRecord `json:"diagnoses"`
}

const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// DefaultListLimit applies when callers pass a non-positive limit.
const DefaultListLimit = 50

func prepare(record *domain.DiagnosisRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return nil
}

func encodeColumns(record *domain.DiagnosisRecord) (results []byte, symptoms []byte, err error) {
	if results, err = json.Marshal(record.Results); err != nil {
		return nil, nil, fmt.Errorf("encoding results: %w", err)
	}
	syms := record.Symptoms
	if syms == nil {
		syms = []domain.Symptom{}
	}
	if symptoms, err = json.Marshal(syms); err != nil {
		return nil, nil, fmt.Errorf("encoding symptoms: %w", err)
	}
	return results, symptoms, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*domain.DiagnosisRecord, error) {
	rec := &domain.DiagnosisRecord{}
	var primary string
	var results, symptoms []byte

	err := s.Scan(
		&rec.ID, &rec.UserID, &rec.PatientName, &primary,
		&results, &symptoms, &rec.ImageRef, &rec.OverlayRef, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Primary = domain.Condition(primary)
	if err := json.Unmarshal(results, &rec.Results); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	if err := json.Unmarshal(symptoms, &rec.Symptoms); err != nil {
		return nil, fmt.Errorf("decoding symptoms: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func writeExport(writer io.Writer, records []*domain.DiagnosisRecord) error {
	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(records),
		Diagnoses:  records,
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func readExport(reader io.Reader) (*Export, error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return &export, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
