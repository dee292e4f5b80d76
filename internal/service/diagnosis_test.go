package service

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/overlay"
)

type memorySink struct {
	mu      sync.Mutex
	records []*domain.DiagnosisRecord
	err     error
}

func (m *memorySink) Save(ctx context.Context, record *domain.DiagnosisRecord) (*domain.DiagnosisRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return record, nil
}

type failingOverlay struct{}

func (failingOverlay) Generate(src image.Image, label domain.Condition) (*image.NRGBA, error) {
	return nil, domain.ErrOverlayGeneration
}

// eczemaBase makes Eczema the clear primary.
var eczemaBase = []float64{0.05, 0.05, 0.6, 0.05, 0.05, 0.1, 0.04, 0.03, 0.03}

func newTestService(t *testing.T, opts ...DiagnosisOption) *DiagnosisService {
	t.Helper()
	engine := newTestEngine(t, eczemaBase)
	gen := overlay.NewGenerator(overlay.WithDrawFunc(func() float64 { return 0 }))
	return NewDiagnosisService(testLogger(), engine, gen, opts...)
}

func TestDiagnoseSkin_FullPipeline(t *testing.T) {
	sink := &memorySink{}
	svc := newTestService(t, WithHistory(sink))

	result, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{
		Image:       image.NewNRGBA(image.Rect(0, 0, 64, 64)),
		Symptoms:    domain.SymptomEvidence{domain.Itching: true},
		UserID:      "user-1",
		PatientName: "Jane Doe",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.DiagnosisID)
	assert.Equal(t, domain.Eczema, result.Primary.Condition)
	assert.Len(t, result.Others, DefaultTopK)
	assert.Len(t, result.Predictions, DefaultTopN)
	assert.Equal(t, Recommend(domain.Eczema), result.Recommendations)
	assert.False(t, result.OverlayFallback)
	require.NotNil(t, result.Overlay)
	assert.Equal(t, image.Rect(0, 0, 64, 64), result.Overlay.Bounds())
	assert.Equal(t, []domain.Symptom{domain.Itching}, result.Symptoms)
	assert.InDelta(t, 1.0, result.Distribution.Sum(), 1e-9)

	assert.True(t, result.HistorySaved)
	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, result.DiagnosisID, rec.ID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, "Jane Doe", rec.PatientName)
	assert.Equal(t, domain.Eczema, rec.Primary)
	assert.Len(t, rec.Results, domain.NumConditions)
	assert.Equal(t, result.ImageRef, rec.ImageRef)
	assert.NotEmpty(t, rec.OverlayRef)
}

func TestRestore_RebuildsStoredDiagnosis(t *testing.T) {
	sink := &memorySink{}
	svc := newTestService(t, WithHistory(sink))
	img := testImage()

	original, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{
		Image:    img,
		Symptoms: domain.SymptomEvidence{domain.ScalySkin: true},
		UserID:   "user-1",
	})
	require.NoError(t, err)
	require.Len(t, sink.records, 1)

	restored, err := svc.Restore(sink.records[0], img, 0)
	require.NoError(t, err)

	assert.Equal(t, original.DiagnosisID, restored.DiagnosisID)
	assert.Equal(t, original.Primary, restored.Primary)
	assert.Equal(t, original.Others, restored.Others)
	assert.Equal(t, original.Predictions, restored.Predictions)
	assert.Equal(t, original.Recommendations, restored.Recommendations)
	assert.Equal(t, original.Symptoms, restored.Symptoms)
	assert.Equal(t, original.CreatedAt, restored.CreatedAt)
	assert.Equal(t, original.OverlayFallback, restored.OverlayFallback)
	assert.Len(t, sink.records, 1)
}

func TestRestore_RejectsOtherImage(t *testing.T) {
	sink := &memorySink{}
	svc := newTestService(t, WithHistory(sink))

	_, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{Image: testImage(), UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.Restore(sink.records[0], image.NewNRGBA(image.Rect(0, 0, 3, 3)), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
	assert.True(t, IsUserError(err))

	_, err = svc.Restore(nil, testImage(), 0)
	assert.ErrorIs(t, err, domain.ErrInputMissing)
}

func TestDiagnoseSkin_MissingImage(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{})
	assert.ErrorIs(t, err, domain.ErrInputMissing)
	assert.True(t, IsUserError(err))

	_, err = svc.DiagnoseSkin(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInputMissing)
}

func TestDiagnoseSkin_OverlayFailureFallsBack(t *testing.T) {
	engine := newTestEngine(t, eczemaBase)
	svc := NewDiagnosisService(testLogger(), engine, failingOverlay{})
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))

	result, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{Image: src})

	require.NoError(t, err)
	assert.True(t, result.OverlayFallback)
	assert.NotEmpty(t, result.OverlayError)
	assert.Nil(t, result.Overlay)
	assert.Same(t, src, result.DisplayImage())
	assert.Equal(t, domain.Eczema, result.Primary.Condition)
}

func TestDiagnoseSkin_ZeroSizedImageDegradesGracefully(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{Image: image.NewNRGBA(image.Rect(0, 0, 0, 0))})

	require.NoError(t, err)
	assert.True(t, result.OverlayFallback)
	assert.NotEmpty(t, result.Predictions)
}

func TestDiagnoseSkin_HistoryFailureIsNonFatal(t *testing.T) {
	svc := newTestService(t, WithHistory(&memorySink{err: errors.New("db down")}))

	result, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{
		Image:  image.NewNRGBA(image.Rect(0, 0, 8, 8)),
		UserID: "user-1",
	})

	require.NoError(t, err)
	assert.False(t, result.HistorySaved)
}

func TestDiagnoseSkin_AnonymousSkipsHistory(t *testing.T) {
	sink := &memorySink{}
	svc := newTestService(t, WithHistory(sink))

	result, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{Image: image.NewNRGBA(image.Rect(0, 0, 8, 8))})

	require.NoError(t, err)
	assert.False(t, result.HistorySaved)
	assert.Empty(t, sink.records)
}

func TestDiagnoseSkin_TopNOverride(t *testing.T) {
	svc := newTestService(t, WithTopK(2), WithTopN(3))

	result, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{Image: testImage()})
	require.NoError(t, err)
	assert.Len(t, result.Predictions, 3)
	assert.Len(t, result.Others, 2)

	result, err = svc.DiagnoseSkin(context.Background(), &DiagnoseParams{Image: testImage(), TopN: 9})
	require.NoError(t, err)
	assert.Len(t, result.Predictions, domain.NumConditions)

	_, err = svc.DiagnoseSkin(context.Background(), &DiagnoseParams{Image: testImage(), TopN: -1})
	assert.True(t, IsUserError(err))
}

func TestDiagnoseSkin_InvariantViolationAborts(t *testing.T) {
	engine := newTestEngine(t, make([]float64, domain.NumConditions))
	svc := NewDiagnosisService(testLogger(), engine, overlay.NewGenerator())

	_, err := svc.DiagnoseSkin(context.Background(), &DiagnoseParams{Image: testImage()})

	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	assert.False(t, IsUserError(err))
}
