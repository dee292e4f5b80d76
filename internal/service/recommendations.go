package service

import (
	"github.com/dermascan-server/internal/domain"
)

var recommendationTable = map[domain.Condition][]string{
	domain.Acne: {
		"Use gentle, non-comedogenic skincare products",
		"Avoid picking or squeezing pimples",
		"Consider benzoyl peroxide or salicylic acid treatments",
		"Consult a dermatologist for severe cases",
	},
	domain.Eczema: {
		"Moisturize regularly with fragrance-free creams",
		"Avoid harsh soaps and known allergens",
		"Use mild laundry detergents",
		"See a dermatologist for prescription treatments",
	},
	domain.Psoriasis: {
		"Use thick creams or ointments to moisturize",
		"Get moderate sunlight exposure (avoid sunburn)",
		"Reduce stress through relaxation techniques",
		"Consult a dermatologist for treatment options",
	},
	domain.Vitiligo: {
		"Use sun protection on depigmented areas",
		"Consider cosmetic cover-ups if desired",
		"Consult a dermatologist about treatment options",
		"Join a support group if needed",
	},
}

var defaultRecommendations = []string{
	"Keep the affected area clean and dry",
	"Avoid scratching or irritating the area",
	"Monitor for changes in size or appearance",
	"Consult a dermatologist for proper diagnosis",
}

// Recommend returns the advice list for label, falling back to the general
// list for labels without specific advice. The slice is always fresh.
func Recommend(label domain.Condition) []string {
	src, ok := recommendationTable[label]
	if !ok {
		src = defaultRecommendations
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
