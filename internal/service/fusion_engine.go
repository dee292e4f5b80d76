package service

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/domain"
)

// DefaultAlpha is the weight given to symptom evidence relative to the
// image-derived prior.
const DefaultAlpha = 0.2

// DisplayPrecision is the number of decimals kept in the rounded output.
const DisplayPrecision = 4

// FusionEngine blends a base distribution with symptom evidence.
type FusionEngine struct {
	logger   *logrus.Logger
	provider domain.BaseDistributionProvider
	alpha    float64
}

// NewFusionEngine creates a fusion engine. alpha must be finite and >= 0.
func NewFusionEngine(logger *logrus.Logger, provider domain.BaseDistributionProvider, alpha float64) (*FusionEngine, error) {
	if provider == nil {
		return nil, fmt.Errorf("base distribution provider is required")
	}
	if alpha < 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return nil, fmt.Errorf("invalid alpha: %v", alpha)
	}
	return &FusionEngine{logger: logger, provider: provider, alpha: alpha}, nil
}

// Alpha returns the configured blend coefficient.
func (e *FusionEngine) Alpha() float64 {
	return e.alpha
}

// Fuse produces the normalized distribution for one image and symptom set.
func (e *FusionEngine) Fuse(ctx context.Context, img image.Image, symptoms domain.SymptomEvidence) (*domain.FusionResult, error) {
	if img == nil {
		return nil, domain.ErrInputMissing
	}
	if err := validateEvidence(symptoms); err != nil {
		return nil, err
	}

	// Step 1: image prior
	raw, err := e.provider.BaseScores(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("computing base scores: %w", err)
	}
	if len(raw) != domain.NumConditions {
		return nil, fmt.Errorf("%w: provider returned %d scores, want %d", domain.ErrInvariantViolation, len(raw), domain.NumConditions)
	}
	base, err := Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing base scores: %w", err)
	}

	// Step 2: symptom evidence
	evidence := AccumulateEvidence(symptoms)

	// Steps 3 and 4: blend and renormalize
	probs, err := Normalize(Blend(base, evidence, e.alpha))
	if err != nil {
		return nil, fmt.Errorf("normalizing fused scores: %w", err)
	}

	result := &domain.FusionResult{
		Base:          base,
		SymptomVector: evidence,
		Probabilities: probs,
		Rounded:       probs.Round(DisplayPrecision),
		Alpha:         e.alpha,
	}

	e.logger.WithFields(logrus.Fields{
		"symptoms": len(symptoms.Present()),
		"alpha":    e.alpha,
	}).Debug("Score fusion completed")

	return result, nil
}

// Normalize divides every entry by the vector sum. Negative or non-finite
// entries and a zero sum are invariant violations.
func Normalize(v []float64) (domain.ProbabilityDistribution, error) {
	var sum float64
	for i, x := range v {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: score %d is %v", domain.ErrInvariantViolation, i, x)
		}
		sum += x
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: division by zero during normalization", domain.ErrInvariantViolation)
	}

	out := make(domain.ProbabilityDistribution, len(v))
	for i, x := range v {
		out[i] = x / sum
	}
	return out, nil
}

// AccumulateEvidence sums the weight vectors of every present symptom.
// Symptoms are visited in checklist order, so the result never depends on
// map iteration order.
func AccumulateEvidence(symptoms domain.SymptomEvidence) []float64 {
	acc := make([]float64, domain.NumConditions)
	for _, s := range symptoms.Present() {
		for i, w := range s.Weights() {
			acc[i] += w
		}
	}
	return acc
}

// Blend computes p[i] + alpha*evidence[i].
func Blend(p domain.ProbabilityDistribution, evidence []float64, alpha float64) []float64 {
	out := make([]float64, len(p))
	for i := range p {
		out[i] = p[i]
		if i < len(evidence) {
			out[i] += alpha * evidence[i]
		}
	}
	return out
}

func validateEvidence(symptoms domain.SymptomEvidence) error {
	for s := range symptoms {
		if !s.IsValid() {
			return &domain.ValidationError{Field: "symptoms", Message: domain.ErrUnknownSymptom.Error(), Value: string(s), Err: domain.ErrUnknownSymptom}
		}
	}
	return nil
}
