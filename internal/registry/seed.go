package registry

import (
	"time"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

const zemaCompliant = "ZEMA Compliant"

func seedFacilities(now time.Time) []domain.Facility {
	daysAgo := func(d int) time.Time { return now.AddDate(0, 0, -d) }

	return []domain.Facility{
		{
			ID:                 "TSF-KONKOLA-001",
			Name:               "Konkola Copper Mine TSF",
			Position:           domain.Position{Latitude: -12.4333, Longitude: 27.6167, Elevation: 1280},
			Capacity:           45_000_000,
			CurrentVolume:      38_500_000,
			Status:             domain.FacilityStatusActive,
			RiskLevel:          domain.RiskLevelMedium,
			LastInspection:     daysAgo(7),
			MonitoringStations: 12,
			ComplianceStatus:   zemaCompliant,
		},
		{
			ID:                 "TSF-NCHANGA-002",
			Name:               "Nchanga Copper Mine TSF",
			Position:           domain.Position{Latitude: -12.1333, Longitude: 27.4667, Elevation: 1320},
			Capacity:           52_000_000,
			CurrentVolume:      41_200_000,
			Status:             domain.FacilityStatusActive,
			RiskLevel:          domain.RiskLevelLow,
			LastInspection:     daysAgo(3),
			MonitoringStations: 15,
			ComplianceStatus:   zemaCompliant,
		},
		{
			ID:                 "TSF-MUFULIRA-003",
			Name:               "Mufulira Mine TSF",
			Position:           domain.Position{Latitude: -12.5500, Longitude: 28.2400, Elevation: 1250},
			Capacity:           38_000_000,
			CurrentVolume:      32_100_000,
			Status:             domain.FacilityStatusActive,
			RiskLevel:          domain.RiskLevelLow,
			LastInspection:     daysAgo(5),
			MonitoringStations: 10,
			ComplianceStatus:   zemaCompliant,
		},
		{
			ID:                 "TSF-KITWE-004",
			Name:               "Kitwe Mining TSF",
			Position:           domain.Position{Latitude: -12.8028, Longitude: 28.2132, Elevation: 1290},
			Capacity:           28_000_000,
			CurrentVolume:      22_800_000,
			Status:             domain.FacilityStatusActive,
			RiskLevel:          domain.RiskLevelMedium,
			LastInspection:     daysAgo(10),
			MonitoringStations: 8,
			ComplianceStatus:   "Under Review",
		},
		{
			ID:                 "TSF-CHINGOLA-005",
			Name:               "Chingola Mine TSF",
			Position:           domain.Position{Latitude: -12.5289, Longitude: 27.8642, Elevation: 1310},
			Capacity:           35_000_000,
			CurrentVolume:      28_900_000,
			Status:             domain.FacilityStatusActive,
			RiskLevel:          domain.RiskLevelLow,
			LastInspection:     daysAgo(2),
			MonitoringStations: 11,
			ComplianceStatus:   zemaCompliant,
		},
	}
}

func seedStations(now time.Time) []domain.MonitoringStation {
	minutesAgo := func(m int) time.Time { return now.Add(-time.Duration(m) * time.Minute) }

	return []domain.MonitoringStation{
		{
			ID:       "ENV-MON-001",
			Name:     "Kafue River Monitoring Point",
			Position: domain.Position{Latitude: -12.45, Longitude: 27.60},
			Type:     domain.StationTypeWaterQuality,
			Parameters: map[string]float64{
				"pH":              7.2,
				"Turbidity":       12.5,
				"DissolvedOxygen": 8.1,
				"Temperature":     24.3,
				"Conductivity":    450.2,
			},
			LastReading: minutesAgo(15),
			Status:      domain.StationStatusOnline,
			AlertLevel:  domain.AlertLevelNormal,
		},
		{
			ID:       "ENV-MON-002",
			Name:     "Air Quality Station - Kitwe",
			Position: domain.Position{Latitude: -12.81, Longitude: 28.22},
			Type:     domain.StationTypeAirQuality,
			Parameters: map[string]float64{
				"PM10":  45.2,
				"PM2.5": 28.1,
				"SO2":   15.3,
				"NO2":   22.7,
				"CO":    1.2,
			},
			LastReading: minutesAgo(5),
			Status:      domain.StationStatusOnline,
			AlertLevel:  domain.AlertLevelNormal,
		},
		{
			ID:       "ENV-MON-003",
			Name:     "Seismic Monitoring - Mufulira",
			Position: domain.Position{Latitude: -12.56, Longitude: 28.25},
			Type:     domain.StationTypeSeismic,
			Parameters: map[string]float64{
				"Magnitude": 0.8,
				"Frequency": 2.1,
				"Depth":     5.2,
				"Duration":  12.5,
			},
			LastReading: minutesAgo(30),
			Status:      domain.StationStatusOnline,
			AlertLevel:  domain.AlertLevelNormal,
		},
		{
			ID:       "ENV-MON-004",
			Name:     "Groundwater Monitoring - Chingola",
			Position: domain.Position{Latitude: -12.54, Longitude: 27.87},
			Type:     domain.StationTypeGroundwater,
			Parameters: map[string]float64{
				"WaterLevel":           15.8,
				"pH":                   6.9,
				"TotalDissolvedSolids": 320.5,
				"HeavyMetals":          0.02,
			},
			LastReading: minutesAgo(45),
			Status:      domain.StationStatusOnline,
			AlertLevel:  domain.AlertLevelNormal,
		},
	}
}
