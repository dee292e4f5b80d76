package domain

import (
	"fmt"
	"math"
	"time"
)

// DistributionTolerance bounds how far a distribution's sum may drift from 1.
const DistributionTolerance = 1e-6

// SymptomEvidence maps checklist symptoms to presence. Absent keys count as
// not present.
type SymptomEvidence map[Symptom]bool

// Present returns the flagged symptoms in canonical checklist order.
func (e SymptomEvidence) Present() []Symptom {
	var out []Symptom
	for _, s := range symptomOrder {
		if e[s] {
			out = append(out, s)
		}
	}
	return out
}

// ProbabilityDistribution is an N-vector aligned to the catalog.
type ProbabilityDistribution []float64

// Sum returns the total probability mass.
func (p ProbabilityDistribution) Sum() float64 {
	var total float64
	for _, v := range p {
		total += v
	}
	return total
}

// Clone returns an independent copy.
func (p ProbabilityDistribution) Clone() ProbabilityDistribution {
	out := make(ProbabilityDistribution, len(p))
	copy(out, p)
	return out
}

// Round returns a copy with every entry rounded to the given decimal places.
func (p ProbabilityDistribution) Round(places int) ProbabilityDistribution {
	scale := math.Pow(10, float64(places))
	out := make(ProbabilityDistribution, len(p))
	for i, v := range p {
		out[i] = math.Round(v*scale) / scale
	}
	return out
}

// Validate checks length, sign and unit sum within tol.
func (p ProbabilityDistribution) Validate(tol float64) error {
	if len(p) != NumConditions {
		return fmt.Errorf("%w: distribution has %d entries, want %d", ErrInvariantViolation, len(p), NumConditions)
	}
	for i, v := range p {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: entry %d is %v", ErrInvariantViolation, i, v)
		}
	}
	if sum := p.Sum(); math.Abs(sum-1) > tol {
		return fmt.Errorf("%w: distribution sums to %v", ErrInvariantViolation, sum)
	}
	return nil
}

// AsMap keys each probability by its condition label.
func (p ProbabilityDistribution) AsMap() map[string]float64 {
	out := make(map[string]float64, len(p))
	for i, v := range p {
		if c, ok := ConditionAt(i); ok {
			out[string(c)] = v
		}
	}
	return out
}

// FusionResult is the output of the score fusion engine. Probabilities keeps
// full precision; Rounded is the display copy.
type FusionResult struct {
	Base          ProbabilityDistribution `json:"base"`
	SymptomVector []float64               `json:"symptom_vector"`
	Probabilities ProbabilityDistribution `json:"probabilities"`
	Rounded       ProbabilityDistribution `json:"rounded"`
	Alpha         float64                 `json:"alpha"`
}

// ScoredCondition pairs a condition with its probability.
type ScoredCondition struct {
	Condition   Condition `json:"condition"`
	Probability float64   `json:"probability"`
	Percent     string    `json:"percent"`
}

// RankedResult lists conditions by descending probability with no duplicates.
type RankedResult []ScoredCondition

// AsMap returns the label to probability mapping handed to the history sink.
func (r RankedResult) AsMap() map[string]float64 {
	out := make(map[string]float64, len(r))
	for _, sc := range r {
		out[string(sc.Condition)] = sc.Probability
	}
	return out
}

// Selection is the primary diagnosis plus the differential candidates.
type Selection struct {
	Primary ScoredCondition   `json:"primary"`
	Others  []ScoredCondition `json:"others"`
}

// DiagnosisRecord is what the history sink persists for one diagnosis.
type DiagnosisRecord struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	PatientName string             `json:"patient_name,omitempty"`
	Primary     Condition          `json:"primary"`
	Results     map[string]float64 `json:"results"`
	Symptoms    []Symptom          `json:"symptoms"`
	ImageRef    string             `json:"image_ref"`
	OverlayRef  string             `json:"overlay_ref,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Validate checks the fields the stores rely on.
func (r *DiagnosisRecord) Validate() error {
	if r.UserID == "" {
		return NewValidationError("user_id", "user_id is required", r.UserID)
	}
	if !r.Primary.IsValid() {
		return NewValidationError("primary", "primary must be a catalogued condition", r.Primary)
	}
	if len(r.Results) == 0 {
		return NewValidationError("results", "results must not be empty", nil)
	}
	return nil
}
