package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermascan-server/internal/domain"
)

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock, db
}

var recordColumns = []string{
	"id", "user_id", "patient_name", "primary_label", "results",
	"symptoms", "image_ref", "overlay_ref", "created_at",
}

func TestNewPostgresStore_RequiresDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO diagnoses").
		WithArgs(sqlmock.AnyArg(), "user-1", "Jane Doe", "Eczema",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "sha256:abc", "overlay:abc", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := store.Save(context.Background(), sampleRecord("user-1", time.Time{}))

	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()
	created := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows(recordColumns).AddRow(
		"id-1", "user-1", "", "Vitiligo",
		[]byte(`{"Vitiligo":0.9,"Acne":0.1}`), []byte(`["white_patches"]`),
		"sha256:1", "", created,
	)
	mock.ExpectQuery(`FROM diagnoses WHERE id = \$1`).WithArgs("id-1").WillReturnRows(rows)

	rec, err := store.Get(context.Background(), "id-1")

	require.NoError(t, err)
	assert.Equal(t, domain.Vitiligo, rec.Primary)
	assert.Equal(t, 0.9, rec.Results["Vitiligo"])
	assert.Equal(t, []domain.Symptom{domain.WhitePatches}, rec.Symptoms)
	assert.True(t, created.Equal(rec.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`FROM diagnoses WHERE id = \$1`).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	_, err := store.Get(context.Background(), "nope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_ListByUser(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(recordColumns).
		AddRow("b", "user-1", "", "Acne", []byte(`{"Acne":1}`), []byte(`[]`), "", "", now).
		AddRow("a", "user-1", "", "Warts", []byte(`{"Warts":1}`), []byte(`[]`), "", "", now.Add(-time.Hour))
	mock.ExpectQuery(`ORDER BY created_at DESC`).WithArgs("user-1", DefaultListLimit, 0).WillReturnRows(rows)

	records, err := store.ListByUser(context.Background(), "user-1", 0, -3)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, domain.Warts, records[1].Primary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByUser(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM diagnoses`).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.CountByUser(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec("DELETE FROM diagnoses").WithArgs("id-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM diagnoses").WithArgs("id-2").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Delete(context.Background(), "id-1"))
	assert.ErrorIs(t, store.Delete(context.Background(), "id-2"), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportJSON(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	payload := `{
		"version": "1.0",
		"count": 3,
		"diagnoses": [
			{"id": "new", "user_id": "u", "primary": "Acne", "results": {"Acne": 1}, "created_at": "2025-01-01T00:00:00Z"},
			{"id": "dup", "user_id": "u", "primary": "Acne", "results": {"Acne": 1}, "created_at": "2025-01-01T00:00:00Z"},
			{"id": "bad", "user_id": "", "primary": "Acne", "results": {"Acne": 1}}
		]
	}`

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT").WithArgs(append([]driver.Value{"new"}, anyArgs(8)...)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT").WithArgs(append([]driver.Value{"dup"}, anyArgs(8)...)...).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	imported, skipped, err := store.ImportJSON(context.Background(), strings.NewReader(payload))

	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 2, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}
