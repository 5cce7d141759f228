package models

import (
	"time"
)

// StorageLocation describes how the donor kept the food since it was made
type StorageLocation string

const (
	StorageRoomTemp StorageLocation = "room_temp"
	StorageChiller  StorageLocation = "chiller"
	StorageFreezer  StorageLocation = "freezer"
	StorageKeptHot  StorageLocation = "kept_hot"
)

// Valid reports whether s is one of the known storage locations
func (s StorageLocation) Valid() bool {
	switch s {
	case StorageRoomTemp, StorageChiller, StorageFreezer, StorageKeptHot:
		return true
	}
	return false
}

// Refrigerated is true for chiller and freezer storage
func (s StorageLocation) Refrigerated() bool {
	return s == StorageChiller || s == StorageFreezer
}

// PackagingType is the packaging the donated food is handed over in
type PackagingType string

const (
	PackagingNoPlastic PackagingType = "no_plastic"
	PackagingPlastic   PackagingType = "plastic"
	PackagingRecycled  PackagingType = "recycled"
)

// Valid reports whether p is one of the known packaging types
func (p PackagingType) Valid() bool {
	switch p {
	case PackagingNoPlastic, PackagingPlastic, PackagingRecycled:
		return true
	}
	return false
}

// DefaultWeightGram is used whenever the donor records a quantity in
// portions or boxes instead of a weight.
const DefaultWeightGram = 500.0

// SubmissionContext holds the donor-supplied facts about one food item.
// It is read-only once the details form has been accepted.
type SubmissionContext struct {
	FoodName        string          `json:"food_name"`
	Ingredients     string          `json:"ingredients"`
	MadeTime        time.Time       `json:"made_time"`
	StorageLocation StorageLocation `json:"storage_location"`
	WeightGram      float64         `json:"weight_gram"` // always > 0
	PackagingType   PackagingType   `json:"packaging_type"`
}
