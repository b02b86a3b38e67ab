package model

import "strings"

// Sector classifies the market segment a funded company operates in.
type Sector string

const (
	SectorCleanEnergy        Sector = "Clean Energy"
	SectorEnergyStorage      Sector = "Energy Storage"
	SectorCarbonCapture      Sector = "Carbon Capture & Removal"
	SectorAlternativeProtein Sector = "Alternative Proteins"
	SectorCircularEconomy    Sector = "Circular Economy"
	SectorClimateAdaptation  Sector = "Climate Adaptation"
	SectorGreenHydrogen      Sector = "Green Hydrogen"
	SectorSustainableAg      Sector = "Sustainable Agriculture"
	SectorElectricVehicles   Sector = "Electric Vehicles"
	SectorSmartGrid          Sector = "Smart Grid"
	SectorWaterTech          Sector = "Water Tech"
	SectorWasteManagement    Sector = "Waste Management"
	SectorGreenBuilding      Sector = "Green Building"
	SectorClimateAnalytics   Sector = "Climate Analytics"
	SectorOther              Sector = "Other"
)

// AllSectors lists every valid sector in canonical order.
var AllSectors = []Sector{
	SectorCleanEnergy,
	SectorEnergyStorage,
	SectorCarbonCapture,
	SectorAlternativeProtein,
	SectorCircularEconomy,
	SectorClimateAdaptation,
	SectorGreenHydrogen,
	SectorSustainableAg,
	SectorElectricVehicles,
	SectorSmartGrid,
	SectorWaterTech,
	SectorWasteManagement,
	SectorGreenBuilding,
	SectorClimateAnalytics,
	SectorOther,
}

// ParseSector matches a string against the sector enum, case-insensitively.
// Returns (SectorOther, false) for values outside the enum.
func ParseSector(s string) (Sector, bool) {
	trimmed := strings.TrimSpace(s)
	for _, sec := range AllSectors {
		if strings.EqualFold(trimmed, string(sec)) {
			return sec, true
		}
	}
	return SectorOther, false
}

// Stage identifies the funding round type.
type Stage string

const (
	StagePreSeed   Stage = "Pre-Seed"
	StageSeed      Stage = "Seed"
	StageSeriesA   Stage = "Series A"
	StageSeriesB   Stage = "Series B"
	StageSeriesC   Stage = "Series C"
	StageSeriesDUp Stage = "Series D+"
	StageGrowth    Stage = "Growth"
	StageIPO       Stage = "IPO"
	StageDebt      Stage = "Debt"
	StageGrant     Stage = "Grant"
	StageUnknown   Stage = "Unknown"
)

// AllStages lists every valid stage in canonical order.
var AllStages = []Stage{
	StagePreSeed,
	StageSeed,
	StageSeriesA,
	StageSeriesB,
	StageSeriesC,
	StageSeriesDUp,
	StageGrowth,
	StageIPO,
	StageDebt,
	StageGrant,
	StageUnknown,
}

// ParseStage matches a string against the stage enum, case-insensitively.
// Returns (StageUnknown, false) for values outside the enum.
func ParseStage(s string) (Stage, bool) {
	trimmed := strings.TrimSpace(s)
	for _, st := range AllStages {
		if strings.EqualFold(trimmed, string(st)) {
			return st, true
		}
	}
	return StageUnknown, false
}
