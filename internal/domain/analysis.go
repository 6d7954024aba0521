package domain

import "time"

// AnalysisResult is one spatial analysis pass over the facility set.
//
// FacilityID is a weak reference; an empty value means the result covers the
// whole registry. Volumes are in millions of cubic metres, settlement in
// mm/month and seepage in L/s.
type AnalysisResult struct {
	FacilityID          string    `json:"facilityId,omitempty"`
	TotalVolume         float64   `json:"totalVolume"`
	VolumeChangePercent float64   `json:"volumeChangePercent"`
	StabilityFactor     float64   `json:"stabilityFactor"`
	SettlementRate      float64   `json:"settlementRate"`
	SeepageRate         float64   `json:"seepageRate"`
	OverallRisk         RiskLevel `json:"overallRisk"`
	ErrorMessage        string    `json:"errorMessage,omitempty"`
	ComputedAt          time.Time `json:"computedAt"`
}

// Succeeded reports whether the analysis completed without error.
func (a *AnalysisResult) Succeeded() bool {
	return a.ErrorMessage == ""
}

// =============================================================================
// Live Reading
// =============================================================================

// LiveAlertLevel is the traffic-light level shown for a live risk score.
type LiveAlertLevel string

const (
	LiveAlertGreen LiveAlertLevel = "Green"
	LiveAlertAmber LiveAlertLevel = "Amber"
	LiveAlertRed   LiveAlertLevel = "Red"
)

// Color returns the hex color used to render the level.
func (l LiveAlertLevel) Color() string {
	switch l {
	case LiveAlertGreen:
		return "#4CAF50"
	case LiveAlertAmber:
		return "#FF9800"
	case LiveAlertRed:
		return "#F44336"
	default:
		return "#9E9E9E"
	}
}

// LiveReading is a single live risk sample for a facility.
type LiveReading struct {
	FacilityID string         `json:"facilityId"`
	RiskScore  int            `json:"riskScore"`
	AlertLevel LiveAlertLevel `json:"alertLevel"`
	AlertColor string         `json:"alertColor"`
	Timestamp  time.Time      `json:"timestamp"`
}

// =============================================================================
// Map Surface
// =============================================================================

// FacilityMarker is what the map surface needs to place a facility.
type FacilityMarker struct {
	Longitude     float64   `json:"longitude"`
	Latitude      float64   `json:"latitude"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	Name          string    `json:"name"`
	Capacity      float64   `json:"capacity"`
	CurrentVolume float64   `json:"currentVolume"`
}

// StationMarker is what the map surface needs to place a station.
type StationMarker struct {
	Longitude   float64       `json:"longitude"`
	Latitude    float64       `json:"latitude"`
	StationType StationType   `json:"stationType"`
	Name        string        `json:"name"`
	Status      StationStatus `json:"status"`
}

// Markers groups every marker descriptor for one map render.
type Markers struct {
	Facilities []FacilityMarker `json:"facilities"`
	Stations   []StationMarker  `json:"stations"`
}

// MapLabels are the rounded figures drawn as text overlays on the map.
type MapLabels struct {
	Stability string `json:"stability"`
	Volume    string `json:"volume"`
	RiskLabel string `json:"riskLabel"`
}

// =============================================================================
// Weather
// =============================================================================

// WeatherReading is current weather at a coordinate. Simulated is set when
// the value was generated locally instead of fetched.
type WeatherReading struct {
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection float64   `json:"windDirection"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	Simulated     bool      `json:"simulated"`
	ObservedAt    time.Time `json:"observedAt"`
}

// GeoFeature is a named feature near the facilities (river, mine,
// industrial area) from OpenStreetMap. Coordinates holds one point for nodes
// and the full outline for ways.
type GeoFeature struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	Coordinates []Position        `json:"coordinates"`
	Tags        map[string]string `json:"tags,omitempty"`
}
