package domain

import (
	"sort"
	"time"
)

// =============================================================================
// Station Enumerations
// =============================================================================

// StationType identifies what an environmental monitoring station measures.
type StationType string

const (
	StationTypeWaterQuality StationType = "WaterQuality"
	StationTypeAirQuality   StationType = "AirQuality"
	StationTypeSeismic      StationType = "Seismic"
	StationTypeGroundwater  StationType = "Groundwater"
)

// String returns the string representation of the station type.
func (t StationType) String() string {
	return string(t)
}

// IsValid returns true if the station type is a recognized value.
func (t StationType) IsValid() bool {
	switch t {
	case StationTypeWaterQuality, StationTypeAirQuality, StationTypeSeismic, StationTypeGroundwater:
		return true
	}
	return false
}

// DisplayName returns the human-readable label, e.g. "Water Quality".
func (t StationType) DisplayName() string {
	switch t {
	case StationTypeWaterQuality:
		return "Water Quality"
	case StationTypeAirQuality:
		return "Air Quality"
	case StationTypeSeismic:
		return "Seismic"
	case StationTypeGroundwater:
		return "Groundwater"
	default:
		return string(t)
	}
}

// StationStatus is the operational state of a station.
type StationStatus string

const (
	StationStatusOnline      StationStatus = "Online"
	StationStatusOffline     StationStatus = "Offline"
	StationStatusMaintenance StationStatus = "Maintenance"
)

// String returns the string representation of the status.
func (s StationStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s StationStatus) IsValid() bool {
	switch s {
	case StationStatusOnline, StationStatusOffline, StationStatusMaintenance:
		return true
	}
	return false
}

// AlertLevel is the alarm state raised by a station's readings.
type AlertLevel string

const (
	AlertLevelNormal   AlertLevel = "Normal"
	AlertLevelWarning  AlertLevel = "Warning"
	AlertLevelCritical AlertLevel = "Critical"
)

// String returns the string representation of the alert level.
func (a AlertLevel) String() string {
	return string(a)
}

// IsValid returns true if the alert level is a recognized value.
func (a AlertLevel) IsValid() bool {
	switch a {
	case AlertLevelNormal, AlertLevelWarning, AlertLevelCritical:
		return true
	}
	return false
}

// =============================================================================
// MonitoringStation Domain Type
// =============================================================================

// MonitoringStation is an environmental sensor site near one or more
// facilities. Parameters maps a measurement name (e.g. "pH") to its latest
// value.
type MonitoringStation struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Position    Position           `json:"position"`
	Type        StationType        `json:"type"`
	Parameters  map[string]float64 `json:"parameters"`
	LastReading time.Time          `json:"lastReading"`
	Status      StationStatus      `json:"status"`
	AlertLevel  AlertLevel         `json:"alertLevel"`
}

// SortedParameterNames returns the parameter keys in lexical order.
func (s *MonitoringStation) SortedParameterNames() []string {
	names := make([]string, 0, len(s.Parameters))
	for name := range s.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy, including the parameter map.
func (s MonitoringStation) Clone() MonitoringStation {
	params := make(map[string]float64, len(s.Parameters))
	for k, v := range s.Parameters {
		params[k] = v
	}
	s.Parameters = params
	return s
}

// StatusLine is the one-line status string shown next to a station on the
// dashboard.
func (s *MonitoringStation) StatusLine() string {
	return s.Name + ": " + string(s.Status) + " (" + string(s.AlertLevel) + ")"
}
