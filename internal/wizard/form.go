package wizard

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/franckalain/foodrescue/internal/models"
)

// DetailsForm is the raw details form as entered by the donor
type DetailsForm struct {
	FoodName    string    `json:"food_name"`
	Ingredients string    `json:"ingredients"`
	MadeTime    time.Time `json:"made_time"`
	Storage     string    `json:"storage"`
	Quantity    string    `json:"quantity"`
	Unit        string    `json:"unit"` // g, kg, portion, box
	Packaging   string    `json:"packaging"`
}

// ValidationError lists per-field problems with a details form
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// Error lists the field messages in field order
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

// clock skew tolerated on the made time
const futureTolerance = 5 * time.Minute

// largest single donation accepted, 10 tonnes
const maxWeightGram = 10_000_000

var unitGrams = map[string]float64{
	"":      1,
	"g":     1,
	"gr":    1,
	"gram":  1,
	"grams": 1,
	"kg":    1000,
}

var countUnits = map[string]bool{
	"portion":  true,
	"portions": true,
	"porsi":    true,
	"box":      true,
	"boxes":    true,
	"pcs":      true,
	"serving":  true,
	"servings": true,
}

// Validate turns a form into a SubmissionContext. Missing storage defaults
// to room temperature, missing packaging to plastic and a missing made time
// to now.
func (f DetailsForm) Validate(now time.Time) (models.SubmissionContext, error) {
	errs := map[string]string{}

	name := strings.TrimSpace(f.FoodName)
	if name == "" {
		errs["food_name"] = "food name is required"
	}

	weight, msg := parseWeight(f.Quantity, f.Unit)
	if msg != "" {
		errs["quantity"] = msg
	}

	storage := models.StorageLocation(strings.ToLower(strings.TrimSpace(f.Storage)))
	if storage == "" {
		storage = models.StorageRoomTemp
	} else if !storage.Valid() {
		errs["storage"] = fmt.Sprintf("unknown storage location %q", f.Storage)
	}

	packaging := models.PackagingType(strings.ToLower(strings.TrimSpace(f.Packaging)))
	if packaging == "" {
		packaging = models.PackagingPlastic
	} else if !packaging.Valid() {
		errs["packaging"] = fmt.Sprintf("unknown packaging type %q", f.Packaging)
	}

	made := f.MadeTime
	if made.IsZero() {
		made = now
	} else if made.After(now.Add(futureTolerance)) {
		errs["made_time"] = "made time cannot be in the future"
	}

	if len(errs) > 0 {
		return models.SubmissionContext{}, &ValidationError{Fields: errs}
	}
	return models.SubmissionContext{
		FoodName:        name,
		Ingredients:     strings.TrimSpace(f.Ingredients),
		MadeTime:        made,
		StorageLocation: storage,
		WeightGram:      weight,
		PackagingType:   packaging,
	}, nil
}

func parseWeight(quantity, unit string) (float64, string) {
	quantity = strings.TrimSpace(quantity)
	if quantity == "" {
		return 0, "quantity is required"
	}
	// A comma is a decimal mark. Forms that read as thousands grouping
	// ("1,000", "1.000,5", "12,345,678") are rejected rather than guessed.
	if i := strings.IndexByte(quantity, ','); i >= 0 {
		if strings.Count(quantity, ",") > 1 || strings.Contains(quantity, ".") || len(quantity)-i-1 == 3 {
			return 0, "quantity is ambiguous; write decimals with one comma or dot and no thousands separator"
		}
	}
	qty, err := strconv.ParseFloat(strings.ReplaceAll(quantity, ",", "."), 64)
	if err != nil || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return 0, "quantity must be a number"
	}
	if qty <= 0 {
		return 0, "quantity must be greater than zero"
	}

	unit = strings.ToLower(strings.TrimSpace(unit))
	if countUnits[unit] {
		return models.DefaultWeightGram, ""
	}
	factor, ok := unitGrams[unit]
	if !ok {
		return 0, fmt.Sprintf("unknown unit %q", unit)
	}
	weight := qty * factor
	if weight > maxWeightGram {
		return 0, fmt.Sprintf("quantity cannot exceed %d kg", maxWeightGram/1000)
	}
	return weight, ""
}
