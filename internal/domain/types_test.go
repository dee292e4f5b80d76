package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogOrder(t *testing.T) {
	expected := []Condition{
		"Acne", "Benign_tumors", "Eczema", "Infestations_Bites", "Lichen",
		"Psoriasis", "Seborrh_Keratoses", "Vitiligo", "Warts",
	}

	assert.Equal(t, expected, Conditions())
	assert.Equal(t, 9, NumConditions)
	for i, c := range expected {
		assert.Equal(t, i, c.Index(), c)
	}
	assert.Equal(t, -1, Condition("Melanoma").Index())
}

func TestConditionsReturnsCopy(t *testing.T) {
	list := Conditions()
	list[0] = "Changed"

	assert.Equal(t, Acne, Conditions()[0])
}

func TestSymptomWeights(t *testing.T) {
	for _, s := range Symptoms() {
		w := s.Weights()
		require.Len(t, w, NumConditions, s)
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}

	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 1.0, 0}, WhitePatches.Weights())
	assert.Nil(t, Symptom("fever").Weights())
}

func TestSymptomWeightsReturnsCopy(t *testing.T) {
	w := Itching.Weights()
	w[0] = 99

	assert.Equal(t, 0.1, Itching.Weights()[0])
}

func TestParseSymptom(t *testing.T) {
	tests := []struct {
		input    string
		expected Symptom
	}{
		{"itching", Itching},
		{"Scaly Skin", ScalySkin},
		{"white-patches", WhitePatches},
		{"  SUDDEN_ONSET ", SuddenOnset},
		{"ＢＬＥＥＤＩＮＧ", Bleeding},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSymptom(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseSymptom("fever")
	assert.True(t, errors.Is(err, ErrUnknownSymptom))
}

func TestParseCondition(t *testing.T) {
	got, err := ParseCondition("benign tumors")
	require.NoError(t, err)
	assert.Equal(t, BenignTumors, got)

	got, err = ParseCondition("infestations-bites")
	require.NoError(t, err)
	assert.Equal(t, InfestationsBites, got)

	_, err = ParseCondition("Unknown_Condition")
	assert.ErrorIs(t, err, ErrUnknownCondition)
}

func TestConditionDisplayName(t *testing.T) {
	assert.Equal(t, "Seborrh Keratoses", SeborrhKeratoses.DisplayName())
	assert.Equal(t, "Acne", Acne.DisplayName())
}
