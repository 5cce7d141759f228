package impact

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/franckalain/foodrescue/internal/models"
)

var packagings = []models.PackagingType{
	models.PackagingNoPlastic, models.PackagingPlastic, models.PackagingRecycled, "",
}

func genCategory() gopter.Gen {
	vals := make([]interface{}, 0, len(models.ImpactCategories))
	for _, c := range models.ImpactCategories {
		vals = append(vals, c)
	}
	return gen.OneConstOf(vals...)
}

func genPackaging() gopter.Gen {
	vals := make([]interface{}, 0, len(packagings))
	for _, p := range packagings {
		vals = append(vals, p)
	}
	return gen.OneConstOf(vals...)
}

// Property: Score(c, w, p) is byte-identical across calls
func TestScoreDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same inputs give identical impact data", prop.ForAll(
		func(c models.ImpactCategory, w float64, p models.PackagingType) bool {
			a, errA := json.Marshal(Score(c, w, p))
			b, errB := json.Marshal(Score(c, w, p))
			return errA == nil && errB == nil && string(a) == string(b)
		},
		genCategory(),
		gen.Float64Range(1, 100000),
		genPackaging(),
	))

	properties.TestingRun(t)
}

// Property: w1 <= w2 implies points(w1) <= points(w2)
func TestScoreMonotonicInWeight(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("points never decrease as weight grows", prop.ForAll(
		func(c models.ImpactCategory, p models.PackagingType, w1, w2 float64) bool {
			if w1 > w2 {
				w1, w2 = w2, w1
			}
			return Score(c, w1, p).TotalPoints <= Score(c, w2, p).TotalPoints
		},
		genCategory(),
		genPackaging(),
		gen.Float64Range(0.5, 50000),
		gen.Float64Range(0.5, 50000),
	))

	properties.Property("level agrees with points", prop.ForAll(
		func(c models.ImpactCategory, p models.PackagingType, w float64) bool {
			got := Score(c, w, p)
			return got.Level == LevelFor(got.TotalPoints) && got.TotalPoints >= 0
		},
		genCategory(),
		genPackaging(),
		gen.Float64Range(0.5, 200000),
	))

	properties.Property("points and water never wrap around the weight cap", prop.ForAll(
		func(c models.ImpactCategory, p models.PackagingType, w1, w2 float64) bool {
			if w1 > w2 {
				w1, w2 = w2, w1
			}
			a, b := Score(c, w1, p), Score(c, w2, p)
			return a.TotalPoints <= b.TotalPoints &&
				a.WaterSaved <= b.WaterSaved &&
				b.WaterSaved >= 0 &&
				b.Level == LevelFor(b.TotalPoints)
		},
		genCategory(),
		genPackaging(),
		gen.Float64Range(MaxWeightGram/2, MaxWeightGram*1e12),
		gen.Float64Range(MaxWeightGram/2, MaxWeightGram*1e12),
	))

	properties.TestingRun(t)
}
