package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// GeoJSONGenerator writes facilities as a FeatureCollection of points.
type GeoJSONGenerator struct{}

func (GeoJSONGenerator) Format() domain.ExportFormat { return domain.ExportFormatGeoJSON }
func (GeoJSONGenerator) FileName() string { return GeoJSONFileName }

// FeatureCollection is the GeoJSON document written by GeoJSONGenerator.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one facility.
type Feature struct {
	Type       string             `json:"type"`
	Geometry   Point              `json:"geometry"`
	Properties FacilityProperties `json:"properties"`
}

// Point holds [longitude, latitude].
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// FacilityProperties is the property bag of a facility feature.
type FacilityProperties struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	Capacity            float64               `json:"capacity"`
	CurrentVolume       float64               `json:"currentVolume"`
	Status              domain.FacilityStatus `json:"status"`
	RiskLevel           domain.RiskLevel      `json:"riskLevel"`
	CapacityUtilization float64               `json:"capacityUtilization"`
	LastInspection      string                `json:"lastInspection"`
	ComplianceStatus    string                `json:"complianceStatus"`
}

// Generate encodes the collection with two-space indentation.
func (GeoJSONGenerator) Generate(ctx context.Context, snap *domain.Snapshot, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(snap.Facilities)),
	}
	for i := range snap.Facilities {
		f := &snap.Facilities[i]
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Point{
				Type:        "Point",
				Coordinates: [2]float64{f.Position.Longitude, f.Position.Latitude},
			},
			Properties: FacilityProperties{
				ID:                  f.ID,
				Name:                f.Name,
				Capacity:            f.Capacity,
				CurrentVolume:       f.CurrentVolume,
				Status:              f.Status,
				RiskLevel:           f.RiskLevel,
				CapacityUtilization: f.CapacityUtilization(),
				LastInspection:      f.LastInspection.Format(DateLayout),
				ComplianceStatus:    f.ComplianceStatus,
			},
		})
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode geojson: %w", err)
	}

	n, err := w.Write(data)
	return int64(n), err
}
