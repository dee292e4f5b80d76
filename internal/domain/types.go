// Package domain contains the core entities for skin-condition triage: the
// ordered condition catalog, the symptom evidence table, and the probability
// structures that flow through the diagnosis pipeline.
//
// Catalog order is significant. Every weight vector and probability
// distribution is index-aligned with Conditions().
package domain

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// Condition identifies a diagnosable skin-condition category.
type Condition string

const (
	Acne              Condition = "Acne"
	BenignTumors      Condition = "Benign_tumors"
	Eczema            Condition = "Eczema"
	InfestationsBites Condition = "Infestations_Bites"
	Lichen            Condition = "Lichen"
	Psoriasis         Condition = "Psoriasis"
	SeborrhKeratoses  Condition = "Seborrh_Keratoses"
	Vitiligo          Condition = "Vitiligo"
	Warts             Condition = "Warts"
)

// Symptom identifies one entry of the fixed symptom checklist.
type Symptom string

const (
	Itching      Symptom = "itching"
	Bleeding     Symptom = "bleeding"
	ScalySkin    Symptom = "scaly_skin"
	WhitePatches Symptom = "white_patches"
	SuddenOnset  Symptom = "sudden_onset"
)

// Sentinel errors shared across the pipeline.
var (
	ErrNotFound           = errors.New("not found")
	ErrInputMissing       = errors.New("input missing: no image supplied")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrOverlayGeneration  = errors.New("overlay generation failed")
	ErrInvalidImage       = errors.New("invalid image")
	ErrUnknownCondition   = errors.New("unknown condition")
	ErrUnknownSymptom     = errors.New("unknown symptom")
)

var catalog = [...]Condition{
	Acne,
	BenignTumors,
	Eczema,
	InfestationsBites,
	Lichen,
	Psoriasis,
	SeborrhKeratoses,
	Vitiligo,
	Warts,
}

// NumConditions is the catalog size N.
const NumConditions = len(catalog)

var symptomOrder = [...]Symptom{Itching, Bleeding, ScalySkin, WhitePatches, SuddenOnset}

// evidenceWeights holds one weight per catalog entry for each symptom.
var evidenceWeights = map[Symptom][NumConditions]float64{
	Itching:      {0.1, 0.0, 0.3, 0.2, 0.3, 0.1, 0.0, 0.0, 0.0},
	Bleeding:     {0.0, 0.2, 0.0, 0.2, 0.1, 0.3, 0.2, 0.0, 0.0},
	ScalySkin:    {0.0, 0.0, 0.2, 0.0, 0.2, 0.4, 0.1, 0.0, 0.0},
	WhitePatches: {0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 1.0, 0.0},
	SuddenOnset:  {0.1, 0.2, 0.0, 0.3, 0.1, 0.1, 0.0, 0.0, 0.2},
}

// Conditions returns the catalog in index order. The slice is a copy.
func Conditions() []Condition {
	out := make([]Condition, NumConditions)
	copy(out, catalog[:])
	return out
}

// ConditionAt returns the catalog entry at index i.
func ConditionAt(i int) (Condition, bool) {
	if i < 0 || i >= NumConditions {
		return "", false
	}
	return catalog[i], true
}

// Index returns the catalog position of c, or -1 if c is not catalogued.
func (c Condition) Index() int {
	for i, known := range catalog {
		if known == c {
			return i
		}
	}
	return -1
}

// IsValid reports whether c is a catalogued condition.
func (c Condition) IsValid() bool {
	return c.Index() >= 0
}

// String returns the catalog label.
func (c Condition) String() string {
	return string(c)
}

// DisplayName renders the label for people, e.g. "Benign tumors".
func (c Condition) DisplayName() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

// Symptoms returns the checklist in its canonical order. The slice is a copy.
func Symptoms() []Symptom {
	out := make([]Symptom, len(symptomOrder))
	copy(out, symptomOrder[:])
	return out
}

// IsValid reports whether s is part of the checklist.
func (s Symptom) IsValid() bool {
	_, ok := evidenceWeights[s]
	return ok
}

// String returns the symptom identifier.
func (s Symptom) String() string {
	return string(s)
}

// Weights returns a copy of the evidence weight vector for s, or nil when s
// is not part of the checklist.
func (s Symptom) Weights() []float64 {
	w, ok := evidenceWeights[s]
	if !ok {
		return nil
	}
	out := make([]float64, NumConditions)
	copy(out, w[:])
	return out
}

// normalizeName folds case and width and maps separators to underscores so
// "Scaly Skin", "scaly-skin" and "ＳＣＡＬＹ_ＳＫＩＮ" compare equal.
func normalizeName(s string) string {
	s = width.Fold.String(strings.TrimSpace(s))
	s = cases.Fold().String(s)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// ParseSymptom resolves user input to a checklist symptom.
func ParseSymptom(s string) (Symptom, error) {
	key := normalizeName(s)
	for _, known := range symptomOrder {
		if string(known) == key {
			return known, nil
		}
	}
	return "", &ValidationError{Field: "symptom", Message: ErrUnknownSymptom.Error(), Value: s, Err: ErrUnknownSymptom}
}

// ParseCondition resolves a label to a catalogued condition.
func ParseCondition(s string) (Condition, error) {
	key := normalizeName(s)
	for _, known := range catalog {
		if normalizeName(string(known)) == key {
			return known, nil
		}
	}
	return "", &ValidationError{Field: "condition", Message: ErrUnknownCondition.Error(), Value: s, Err: ErrUnknownCondition}
}
