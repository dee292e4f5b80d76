package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/imaging"
)

// DiagnoseParams is one diagnosis request.
type DiagnoseParams struct {
	Image       image.Image            `json:"-"`
	Symptoms    domain.SymptomEvidence `json:"symptoms"`
	UserID      string                 `json:"user_id,omitempty"`
	PatientName string                 `json:"patient_name,omitempty"`
	TopN        int                    `json:"top_n,omitempty"`
}

// DiagnoseResult is the ranked, explained diagnosis.
type DiagnoseResult struct {
	DiagnosisID     string                         `json:"diagnosis_id"`
	Predictions     domain.RankedResult            `json:"predictions"`
	Primary         domain.ScoredCondition         `json:"primary"`
	Others          []domain.ScoredCondition       `json:"others"`
	Recommendations []string                       `json:"recommendations"`
	Distribution    domain.ProbabilityDistribution `json:"distribution"`
	Symptoms        []domain.Symptom               `json:"symptoms"`
	ImageRef        string                         `json:"image_ref"`
	OverlayFallback bool                           `json:"overlay_fallback"`
	OverlayError    string                         `json:"overlay_error,omitempty"`
	HistorySaved    bool                           `json:"history_saved"`
	CreatedAt       time.Time                      `json:"created_at"`
	ProcessingTime  time.Duration                  `json:"processing_time"`

	Source  image.Image  `json:"-"`
	Overlay *image.NRGBA `json:"-"`
}

// DisplayImage returns the overlay, or the unmodified source when the overlay
// could not be produced.
func (r *DiagnoseResult) DisplayImage() image.Image {
	if r.Overlay != nil {
		return r.Overlay
	}
	return r.Source
}

// DiagnosisService runs the full pipeline: fusion, ranking, overlay and
// recommendations, then hands the result to history.
type DiagnosisService struct {
	logger  *logrus.Logger
	fusion  *FusionEngine
	overlay domain.OverlayGenerator
	history domain.HistorySink
	topK    int
	topN    int
	now     func() time.Time
}

// DiagnosisOption configures a DiagnosisService.
type DiagnosisOption func(*DiagnosisService)

// WithHistory enables persistence of diagnoses that name a user.
func WithHistory(sink domain.HistorySink) DiagnosisOption {
	return func(s *DiagnosisService) { s.history = sink }
}

// WithTopK sets the number of differential candidates.
func WithTopK(k int) DiagnosisOption {
	return func(s *DiagnosisService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithTopN sets the default prediction list length.
func WithTopN(n int) DiagnosisOption {
	return func(s *DiagnosisService) {
		if n > 0 {
			s.topN = n
		}
	}
}

// NewDiagnosisService creates a diagnosis service
func NewDiagnosisService(logger *logrus.Logger, fusion *FusionEngine, overlay domain.OverlayGenerator, opts ...DiagnosisOption) *DiagnosisService {
	s := &DiagnosisService{
		logger:  logger,
		fusion:  fusion,
		overlay: overlay,
		topK:    DefaultTopK,
		topN:    DefaultTopN,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiagnoseSkin performs the complete diagnosis workflow
func (s *DiagnosisService) DiagnoseSkin(ctx context.Context, params *DiagnoseParams) (*DiagnoseResult, error) {
	startTime := s.now()

	if params == nil || params.Image == nil {
		return nil, domain.ErrInputMissing
	}
	if params.TopN < 0 {
		return nil, domain.NewValidationError("top_n", "top_n must not be negative", params.TopN)
	}

	imageRef := imaging.Fingerprint(params.Image)
	s.logger.WithFields(logrus.Fields{
		"image_ref": imageRef,
		"symptoms":  params.Symptoms.Present(),
		"user_id":   params.UserID,
	}).Info("Starting skin diagnosis")

	// Step 1: fuse image prior with symptom evidence
	fused, err := s.fusion.Fuse(ctx, params.Image, params.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("failed to fuse scores: %w", err)
	}

	// Step 2: rank and select
	ranked := Rank(fused.Rounded)
	selection, err := SelectTop(ranked, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to select diagnoses: %w", err)
	}

	topN := s.topN
	if params.TopN > 0 {
		topN = params.TopN
	}

	result := &DiagnoseResult{
		DiagnosisID:     uuid.New().String(),
		Predictions:     Truncate(ranked, topN),
		Primary:         selection.Primary,
		Others:          selection.Others,
		Recommendations: Recommend(selection.Primary.Condition),
		Distribution:    fused.Probabilities,
		Symptoms:        params.Symptoms.Present(),
		ImageRef:        imageRef,
		CreatedAt:       startTime.UTC(),
		Source:          params.Image,
	}

	// Step 3: attention overlay, non-fatal
	s.attachOverlay(result)

	// Step 4: history
	if s.history != nil && params.UserID != "" {
		result.HistorySaved = s.saveHistory(ctx, params, result)
	}

	result.ProcessingTime = s.now().Sub(startTime)

	s.logger.WithFields(logrus.Fields{
		"diagnosis_id":     result.DiagnosisID,
		"primary":          result.Primary.Condition,
		"probability":      result.Primary.Probability,
		"overlay_fallback": result.OverlayFallback,
		"history_saved":    result.HistorySaved,
		"processing_time":  result.ProcessingTime,
	}).Info("Skin diagnosis completed")

	return result, nil
}

// Restore rebuilds the result of a stored diagnosis so it can be rendered
// again. src must be the image the diagnosis was made from. Nothing is
// written to history.
func (s *DiagnosisService) Restore(rec *domain.DiagnosisRecord, src image.Image, topN int) (*DiagnoseResult, error) {
	if rec == nil || src == nil {
		return nil, domain.ErrInputMissing
	}
	if topN < 0 {
		return nil, domain.NewValidationError("top_n", "top_n must not be negative", topN)
	}

	imageRef := imaging.Fingerprint(src)
	if rec.ImageRef != "" && rec.ImageRef != imageRef {
		return nil, &domain.ValidationError{
			Field:   "image",
			Message: "image does not match the stored diagnosis",
			Value:   rec.ID,
			Err:     domain.ErrInvalidImage,
		}
	}

	dist := make(domain.ProbabilityDistribution, domain.NumConditions)
	for i, c := range domain.Conditions() {
		dist[i] = rec.Results[string(c)]
	}

	ranked := Rank(dist)
	selection, err := SelectTop(ranked, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to select diagnoses: %w", err)
	}
	if topN == 0 {
		topN = s.topN
	}

	result := &DiagnoseResult{
		DiagnosisID:     rec.ID,
		Predictions:     Truncate(ranked, topN),
		Primary:         selection.Primary,
		Others:          selection.Others,
		Recommendations: Recommend(selection.Primary.Condition),
		Distribution:    dist,
		Symptoms:        rec.Symptoms,
		ImageRef:        imageRef,
		HistorySaved:    true,
		CreatedAt:       rec.CreatedAt.UTC(),
		Source:          src,
	}
	s.attachOverlay(result)

	s.logger.WithFields(logrus.Fields{
		"diagnosis_id": rec.ID,
		"primary":      result.Primary.Condition,
	}).Debug("Restored stored diagnosis")

	return result, nil
}

func (s *DiagnosisService) attachOverlay(result *DiagnoseResult) {
	overlay, err := s.overlay.Generate(result.Source, result.Primary.Condition)
	if err != nil {
		s.logger.WithError(err).WithField("diagnosis", result.Primary.Condition).
			Warn("Overlay generation failed, falling back to source image")
		result.OverlayFallback = true
		result.OverlayError = err.Error()
		return
	}
	result.Overlay = overlay
}

func (s *DiagnosisService) saveHistory(ctx context.Context, params *DiagnoseParams, result *DiagnoseResult) bool {
	record := &domain.DiagnosisRecord{
		ID:          result.DiagnosisID,
		UserID:      params.UserID,
		PatientName: params.PatientName,
		Primary:     result.Primary.Condition,
		Results:     result.Distribution.Round(DisplayPrecision).AsMap(),
		Symptoms:    result.Symptoms,
		ImageRef:    result.ImageRef,
		CreatedAt:   result.CreatedAt,
	}
	if result.Overlay != nil {
		record.OverlayRef = imaging.Fingerprint(result.Overlay)
	}

	if _, err := s.history.Save(ctx, record); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"diagnosis_id": result.DiagnosisID,
			"user_id":      params.UserID,
		}).Error("Failed to save diagnosis history")
		return false
	}
	return true
}

// IsUserError reports whether err stems from bad input rather than a fault.
func IsUserError(err error) bool {
	var validationErr *domain.ValidationError
	return errors.Is(err, domain.ErrInputMissing) ||
		errors.Is(err, domain.ErrInvalidImage) ||
		errors.As(err, &validationErr)
}
