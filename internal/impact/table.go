package impact

import (
	"strings"

	"github.com/franckalain/foodrescue/internal/models"
)

// ReferenceWeightGram is the weight every per-category factor is expressed for
const ReferenceWeightGram = 500.0

// Factors are the per-category constants for a 500 g reference portion
type Factors struct {
	EIS   float64 `json:"eis" yaml:"eis"`     // environmental impact score
	CO2   float64 `json:"co2" yaml:"co2"`     // kg CO2 avoided
	Water float64 `json:"water" yaml:"water"` // liters of water avoided
	Land  float64 `json:"land" yaml:"land"`   // m² of land avoided
}

// Table maps each scoring category to its factors.
type Table map[models.ImpactCategory]Factors

var defaultTable = Table{
	models.CategoryBeef:       {EIS: 100, CO2: 20.0, Water: 800, Land: 1.5},
	models.CategoryRice:       {EIS: 70, CO2: 3.5, Water: 700, Land: 1.2},
	models.CategoryVegetables: {EIS: 50, CO2: 1.5, Water: 500, Land: 1.0},
	models.CategoryFruit:      {EIS: 60, CO2: 2.0, Water: 600, Land: 1.1},
	models.CategoryMixed:      {EIS: 65, CO2: 3.0, Water: 650, Land: 1.3},
	models.CategoryOther:      {EIS: 65, CO2: 3.0, Water: 650, Land: 1.3},
}

// DefaultTable returns a copy of the built-in category table
func DefaultTable() Table {
	out := make(Table, len(defaultTable))
	for k, v := range defaultTable {
		out[k] = v
	}
	return out
}

// NormalizeCategory maps a raw category label onto one of the scoring
// categories. The vocabulary is the key set of the category table; anything
// else, including the empty string, becomes Mixed.
func NormalizeCategory(raw string) models.ImpactCategory {
	raw = strings.TrimSpace(raw)
	for _, c := range models.ImpactCategories {
		if _, ok := defaultTable[c]; ok && strings.EqualFold(raw, string(c)) {
			return c
		}
	}
	return models.CategoryMixed
}

// PackagingFactor returns the multiplier for a packaging type. The empty
// value is treated as plastic; unknown values are neutral.
func PackagingFactor(p models.PackagingType) float64 {
	switch p {
	case models.PackagingNoPlastic:
		return 1.2
	case models.PackagingRecycled:
		return 1.1
	case models.PackagingPlastic, "":
		return 0.9
	default:
		return 1.0
	}
}

// Tier thresholds are exclusive lower bounds on total points.
var tiers = []struct {
	above int
	level models.ImpactLevel
}{
	{5000, models.LevelLegend},
	{2000, models.LevelMaster},
	{500, models.LevelExpert},
	{100, models.LevelAktif},
}

// LevelFor returns the tier for a point total
func LevelFor(points int) models.ImpactLevel {
	for _, t := range tiers {
		if points > t.above {
			return t.level
		}
	}
	return models.LevelPemula
}
