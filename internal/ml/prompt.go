package ml

import (
	"fmt"
	"strings"
	"time"

	"github.com/franckalain/foodrescue/internal/models"
)

// Food left out longer than these is flagged as a risk
const (
	RoomTempSafeWindow     = 4 * time.Hour
	RefrigeratedSafeWindow = 24 * time.Hour
)

var storageLabels = map[models.StorageLocation]string{
	models.StorageRoomTemp: "room temperature",
	models.StorageChiller:  "chiller (refrigerated)",
	models.StorageFreezer:  "freezer",
	models.StorageKeptHot:  "kept hot (above 60°C)",
}

var packagingLabels = map[models.PackagingType]string{
	models.PackagingNoPlastic: "no plastic",
	models.PackagingPlastic:   "plastic",
	models.PackagingRecycled:  "recycled material",
}

// BuildPrompt renders the instructions sent alongside the photo.
func BuildPrompt(sc models.SubmissionContext, now time.Time) string {
	var b strings.Builder

	b.WriteString("You are a food safety inspector for a food rescue marketplace. ")
	b.WriteString("Assess the attached photo of a donated food item using the donor's declaration below.\n\n")

	b.WriteString("Donor declaration:\n")
	fmt.Fprintf(&b, "- Food name: %s\n", orUnknown(sc.FoodName))
	fmt.Fprintf(&b, "- Ingredients: %s\n", orUnknown(sc.Ingredients))
	if sc.MadeTime.IsZero() {
		b.WriteString("- Made at: unknown\n")
	} else {
		elapsed := now.Sub(sc.MadeTime)
		if elapsed < 0 {
			elapsed = 0
		}
		fmt.Fprintf(&b, "- Made at: %s (%.1f hours before %s)\n",
			sc.MadeTime.UTC().Format(time.RFC3339), elapsed.Hours(), now.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Storage: %s\n", orUnknown(storageLabels[sc.StorageLocation]))
	fmt.Fprintf(&b, "- Packaging: %s\n", orUnknown(packagingLabels[sc.PackagingType]))
	fmt.Fprintf(&b, "- Weight: %.0f g\n\n", sc.WeightGram)

	b.WriteString("Instructions:\n")
	fmt.Fprintf(&b, "1. Cross-check the made time against the current time. Flag the item as unsafe if more than %.0f hours have passed at room temperature or more than %.0f hours refrigerated.\n",
		RoomTempSafeWindow.Hours(), RefrigeratedSafeWindow.Hours())
	b.WriteString("2. Verify that the photo is visually consistent with the declared name and ingredients. Lower the quality percentage and explain any mismatch.\n")
	fmt.Fprintf(&b, "3. Classify the item for impact scoring as exactly one of: %s.\n", strings.Join(impactCategoryNames(), ", "))
	b.WriteString("4. Estimate the probability (0-100) that the item is halal and justify it from visible ingredients and the declaration.\n")
	fmt.Fprintf(&b, "5. List every visible item with a category from: %s.\n", strings.Join(itemCategoryNames(), ", "))
	b.WriteString("6. Score hygiene (0-100) and overall quality (0-100), list likely allergens, predict the remaining shelf life and give short storage tips.\n\n")

	b.WriteString("Respond with a single JSON object and nothing else, using exactly these fields:\n")
	b.WriteString(`{
	"isSafe": boolean,
	"isHalal": boolean,
	"halalScore": number,
	"halalReasoning": "string",
	"reasoning": "string",
	"allergens": ["string"],
	"shelfLifePrediction": "string",
	"hygieneScore": number,
	"qualityPercentage": number,
	"detectedItems": [{"name": "string", "category": "string"}],
	"detectedCategory": "string",
	"storageTips": ["string"]
}`)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

func impactCategoryNames() []string {
	out := make([]string, 0, len(models.ImpactCategories))
	for _, c := range models.ImpactCategories {
		out = append(out, string(c))
	}
	return out
}

func itemCategoryNames() []string {
	return []string{
		string(models.ItemFruit), string(models.ItemVegetable), string(models.ItemProtein),
		string(models.ItemCarb), string(models.ItemProcessed), string(models.ItemBread),
		string(models.ItemSeasoning), string(models.ItemOther),
	}
}
