// Package impact converts a food category, weight and packaging type into a
// reproducible social impact score. Everything here is pure: no I/O, no
// clock, no randomness.
package impact

import (
	"math"

	"github.com/franckalain/foodrescue/internal/models"
)

// RescueMethodBonus is constant until non-rescue channels exist
const RescueMethodBonus = 1.0

// MaxWeightGram caps the weight that is scored. Heavier submissions score
// as this weight.
const MaxWeightGram = 1e9

// counts saturate here so int conversions never wrap
const maxCount = 1e15

// Engine scores submissions against a category table
type Engine struct {
	table Table
}

// Default is an engine using the built-in category table
var Default = NewEngine(nil)

// NewEngine creates an engine from the built-in table with the given rows
// replaced. Categories outside the scoring vocabulary are ignored.
func NewEngine(overrides Table) *Engine {
	table := DefaultTable()
	for c, f := range overrides {
		if _, ok := table[c]; ok {
			table[c] = f
		}
	}
	return &Engine{table: table}
}

// Factors returns the constants used for a category, falling back to Mixed
func (e *Engine) Factors(category models.ImpactCategory) Factors {
	if f, ok := e.table[category]; ok {
		return f
	}
	return e.table[models.CategoryMixed]
}

// Score computes the impact of rescuing weightGram of food in the given
// category and packaging. It never fails: unknown inputs fall back to Mixed,
// 500 g and plastic packaging. Weights above MaxWeightGram are clamped.
func (e *Engine) Score(category models.ImpactCategory, weightGram float64, packaging models.PackagingType) models.SocialImpactData {
	if weightGram <= 0 || math.IsNaN(weightGram) {
		weightGram = models.DefaultWeightGram
	}
	weightGram = math.Min(weightGram, MaxWeightGram)
	f := e.Factors(category)

	quantityRatio := weightGram / ReferenceWeightGram
	qw := quantityRatio * PackagingFactor(packaging)
	points := count(f.EIS * qw * RescueMethodBonus)

	return models.SocialImpactData{
		TotalPoints:    points,
		CO2Saved:       round1(f.CO2 * quantityRatio),
		WaterSaved:     count(f.Water * quantityRatio),
		LandSaved:      round1(f.Land * quantityRatio),
		WasteReduction: weightGram / 1000,
		Level:          LevelFor(points),
	}
}

// Score uses the default engine
func Score(category models.ImpactCategory, weightGram float64, packaging models.PackagingType) models.SocialImpactData {
	return Default.Score(category, weightGram, packaging)
}

// count rounds a non-negative quantity to an int, saturating at maxCount
func count(v float64) int {
	switch {
	case !(v > 0):
		return 0
	case v >= maxCount:
		return int(maxCount)
	}
	return int(math.Round(v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
