package models

// ImpactLevel is the donor tier derived from total points
type ImpactLevel string

const (
	LevelPemula ImpactLevel = "Pemula"
	LevelAktif  ImpactLevel = "Aktif"
	LevelExpert ImpactLevel = "Expert"
	LevelMaster ImpactLevel = "Master"
	LevelLegend ImpactLevel = "Legend"
)

// SocialImpactData is the deterministic impact estimate for one submission
type SocialImpactData struct {
	TotalPoints    int         `json:"total_points"`
	CO2Saved       float64     `json:"co2_saved"`       // kg, 1 decimal
	WaterSaved     int         `json:"water_saved"`     // liters
	LandSaved      float64     `json:"land_saved"`      // m², 1 decimal
	WasteReduction float64     `json:"waste_reduction"` // kg
	Level          ImpactLevel `json:"level"`
}
