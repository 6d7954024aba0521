// Package domain contains core business types and interfaces.
//
// This file defines the Facility domain type for tailings storage facilities
// and the enumerations describing their lifecycle and risk.
package domain

import "time"

// =============================================================================
// Facility Status
// =============================================================================

// FacilityStatus represents the lifecycle state of a facility.
type FacilityStatus string

const (
	FacilityStatusActive            FacilityStatus = "Active"
	FacilityStatusInactive          FacilityStatus = "Inactive"
	FacilityStatusUnderConstruction FacilityStatus = "UnderConstruction"
)

// String returns the string representation of the status.
func (s FacilityStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s FacilityStatus) IsValid() bool {
	switch s {
	case FacilityStatusActive, FacilityStatusInactive, FacilityStatusUnderConstruction:
		return true
	}
	return false
}

// =============================================================================
// Risk Level
// =============================================================================

// RiskLevel classifies the hazard posed by a facility.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "Low"
	RiskLevelMedium   RiskLevel = "Medium"
	RiskLevelHigh     RiskLevel = "High"
	RiskLevelCritical RiskLevel = "Critical"
)

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid returns true if the risk level is a recognized value.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	}
	return false
}

// IsElevated returns true for High and Critical.
func (r RiskLevel) IsElevated() bool {
	return r == RiskLevelHigh || r == RiskLevelCritical
}

// =============================================================================
// Position
// =============================================================================

// Position is a WGS84 coordinate. Elevation is in metres above sea level.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// =============================================================================
// Facility Domain Type
// =============================================================================

// Facility is a tailings storage facility. Capacity and CurrentVolume are in
// cubic metres.
type Facility struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Position           Position       `json:"position"`
	Capacity           float64        `json:"capacity"`
	CurrentVolume      float64        `json:"currentVolume"`
	Status             FacilityStatus `json:"status"`
	RiskLevel          RiskLevel      `json:"riskLevel"`
	LastInspection     time.Time      `json:"lastInspection"`
	MonitoringStations int            `json:"monitoringStations"`
	ComplianceStatus   string         `json:"complianceStatus"`
}

// CapacityUtilization returns the stored volume as a percentage of capacity.
// A facility with no capacity reports zero.
func (f *Facility) CapacityUtilization() float64 {
	if f.Capacity == 0 {
		return 0
	}
	return f.CurrentVolume / f.Capacity * 100
}

// IsOverCapacity returns true when the stored volume exceeds design capacity.
func (f *Facility) IsOverCapacity() bool {
	return f.CurrentVolume > f.Capacity
}

// DaysSinceInspection returns whole days elapsed between the last inspection
// and now.
func (f *Facility) DaysSinceInspection(now time.Time) int {
	return int(now.Sub(f.LastInspection).Hours() / 24)
}
