package models

import (
	"slices"
	"strings"
)

// ImpactCategory is the coarse food class used for impact scoring
type ImpactCategory string

const (
	CategoryBeef       ImpactCategory = "Beef"
	CategoryRice       ImpactCategory = "Rice"
	CategoryVegetables ImpactCategory = "Vegetables"
	CategoryFruit      ImpactCategory = "Fruit"
	CategoryMixed      ImpactCategory = "Mixed"
	CategoryOther      ImpactCategory = "Other"
)

// ImpactCategories lists every scoring category in display order
var ImpactCategories = []ImpactCategory{
	CategoryBeef, CategoryRice, CategoryVegetables, CategoryFruit, CategoryMixed, CategoryOther,
}

// ItemCategory classifies an individual item detected in the photo
type ItemCategory string

const (
	ItemFruit     ItemCategory = "Fruit"
	ItemVegetable ItemCategory = "Vegetable"
	ItemProtein   ItemCategory = "Protein"
	ItemCarb      ItemCategory = "Carb"
	ItemProcessed ItemCategory = "Processed"
	ItemBread     ItemCategory = "Bread"
	ItemSeasoning ItemCategory = "Seasoning"
	ItemOther     ItemCategory = "Other"
)

var itemCategories = []ItemCategory{
	ItemFruit, ItemVegetable, ItemProtein, ItemCarb, ItemProcessed, ItemBread, ItemSeasoning, ItemOther,
}

// NormalizeItemCategory maps a free-form label onto a known item category,
// case-insensitively. Anything unrecognized becomes ItemOther.
func NormalizeItemCategory(raw string) ItemCategory {
	raw = strings.TrimSpace(raw)
	for _, c := range itemCategories {
		if strings.EqualFold(raw, string(c)) {
			return c
		}
	}
	return ItemOther
}

// DetectedItem is one food item the analyzer recognised in the photo
type DetectedItem struct {
	Name     string       `json:"name"`
	Category ItemCategory `json:"category"`
}

// AnalysisResult is the structured judgment returned by the vision service
type AnalysisResult struct {
	IsSafe              bool           `json:"is_safe"`
	IsHalal             bool           `json:"is_halal"`
	HalalScore          int            `json:"halal_score"` // 0-100
	HalalReasoning      string         `json:"halal_reasoning"`
	Reasoning           string         `json:"reasoning"`
	Allergens           []string       `json:"allergens"`
	ShelfLifePrediction string         `json:"shelf_life_prediction"`
	HygieneScore        int            `json:"hygiene_score"`      // 0-100
	QualityPercentage   float64        `json:"quality_percentage"` // 0-100
	DetectedItems       []DetectedItem `json:"detected_items"`
	DetectedCategory    ImpactCategory `json:"detected_category"`
	StorageTips         []string       `json:"storage_tips"`
}

// Clone returns a deep copy so that callers never share slices. Nil slices
// stay nil.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	out.Allergens = slices.Clone(r.Allergens)
	out.DetectedItems = slices.Clone(r.DetectedItems)
	out.StorageTips = slices.Clone(r.StorageTips)
	return out
}
