package models

import (
	"time"
)

// VerificationRecord is the combined output of AI analysis and impact
// scoring for one submission attempt. Records are passed by value and never
// modified after creation; a new attempt produces a new record.
type VerificationRecord struct {
	AnalysisResult
	Impact      SocialImpactData  `json:"impact"`
	Submission  SubmissionContext `json:"submission"`
	Fingerprint string            `json:"fingerprint"` // sha256 over the canonical record body
	CreatedAt   time.Time         `json:"created_at"`
}

// Clone returns a copy that shares no slices with r
func (r VerificationRecord) Clone() VerificationRecord {
	out := r
	out.AnalysisResult = r.AnalysisResult.Clone()
	return out
}

// Listing is a published record as returned by the inventory collaborator
type Listing struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"` // "available", "claimed", "withdrawn"
	PublishedAt time.Time          `json:"published_at"`
	Record      VerificationRecord `json:"record"`
}

// Listing visibility statuses
const (
	ListingAvailable = "available"
	ListingClaimed   = "claimed"
	ListingWithdrawn = "withdrawn"
)

// ImpactTotals aggregates the impact of all published listings
type ImpactTotals struct {
	Listings       int     `json:"listings"`
	TotalPoints    int     `json:"total_points"`
	CO2Saved       float64 `json:"co2_saved"`
	WaterSaved     int     `json:"water_saved"`
	LandSaved      float64 `json:"land_saved"`
	WasteReduction float64 `json:"waste_reduction"`
}
