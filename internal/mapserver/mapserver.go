// Package mapserver talks to the GIS map server that publishes live
// monitoring layers.
//
// The HTTP client pings the server, then tries a list of likely WFS layer
// names until one returns features. Whenever the server is unreachable or no
// layer has data, it degrades to the Simulated client so callers always get
// stations back.
package mapserver

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// Mode selects the map-server client implementation.
type Mode string

const (
	ModeHTTP      Mode = "http"
	ModeSimulated Mode = "simulated"
)

// IsValid returns true if the mode is a recognized value.
func (m Mode) IsValid() bool {
	return m == ModeHTTP || m == ModeSimulated
}

// DefaultLayers are the WFS type names tried for station features, in
// order.
var DefaultLayers = []string{
	"monitoring_stations",
	"stations",
	"sensors",
	"points",
	"facilities",
	"environmental_monitoring",
	"tsf_monitoring",
	"monitoring_points",
	"sensor_data",
	"live_stations",
	"real_time_monitoring",
}

// Client returns live stations from the map server.
type Client interface {
	// LiveStations never fails because the server is down; it falls back to
	// simulated stations and reports that through Status.
	LiveStations(ctx context.Context) ([]domain.MonitoringStation, error)

	// Packet returns the current map-server data packet.
	Packet(ctx context.Context) (*Packet, error)

	// Status describes the last connection attempt.
	Status() Status
}

// Status is the outcome of the most recent exchange with the server.
type Status struct {
	Mode        Mode      `json:"mode"`
	Connected   bool      `json:"connected"`
	Layer       string    `json:"layer,omitempty"`
	Message     string    `json:"message"`
	LastAttempt time.Time `json:"lastAttempt"`
}

// =============================================================================
// Packet
// =============================================================================

// Alert is a map-server alert pinned to a position.
type Alert struct {
	ID       string            `json:"id"`
	Type     domain.AlertLevel `json:"type"`
	Message  string            `json:"message"`
	Position domain.Position   `json:"position"`
	Severity domain.RiskLevel  `json:"severity"`
	RaisedAt time.Time         `json:"raisedAt"`
}

// Packet is one snapshot of the 3D project the map server renders.
type Packet struct {
	ProjectID   string             `json:"projectId"`
	ProjectName string             `json:"projectName"`
	Volumes     map[string]float64 `json:"volumes"`
	Stability   map[string]float64 `json:"stability"`
	Risks       map[string]string  `json:"risks"`
	Alerts      []Alert            `json:"alerts"`
	Timestamp   time.Time          `json:"timestamp"`
}

// =============================================================================
// Simulated
// =============================================================================

// AlertChance is the probability a simulated packet carries an alert.
const AlertChance = 0.3

var alertMessages = []string{
	"Elevated pore pressure detected",
	"Seepage rate above threshold",
	"Settlement exceeds expected rate",
	"Freeboard below minimum",
	"Unusual deformation pattern",
}

var riskLevels = []domain.RiskLevel{
	domain.RiskLevelLow,
	domain.RiskLevelMedium,
	domain.RiskLevelHigh,
}

// Simulated generates plausible map-server data locally.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulated creates a simulated client. A nil rng is seeded from the
// clock; a nil now uses time.Now.
func NewSimulated(rng *rand.Rand, now func() time.Time) *Simulated {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if now == nil {
		now = time.Now
	}
	return &Simulated{rng: rng, now: now}
}

// LiveStations returns the two server-status stations.
func (s *Simulated) LiveStations(ctx context.Context) ([]domain.MonitoringStation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return SimulatedStations(s.now(), false), nil
}

// Packet draws a packet with synthetic volume and stability figures.
func (s *Simulated) Packet(ctx context.Context) (*Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := &Packet{
		ProjectID:   "TSF-MUKUBAICO-001",
		ProjectName: "Mukubaico TSF 3D Analysis",
		Volumes: map[string]float64{
			"TotalVolume": s.rng.Float64()*1_000_000 + 2_500_000,
			"WaterVolume": s.rng.Float64()*500_000 + 750_000,
			"SolidVolume": s.rng.Float64()*800_000 + 1_200_000,
		},
		Stability: map[string]float64{
			"SlopeStability": s.rng.Float64()*0.3 + 1.2,
			"SettlementRate": s.rng.Float64()*5 + 2,
			"SeepageRate":    s.rng.Float64()*10 + 5,
		},
		Risks: map[string]string{
			"OverallRisk":       string(s.riskLevel()),
			"SlopeRisk":         string(s.riskLevel()),
			"SeepageRisk":       string(s.riskLevel()),
			"EnvironmentalRisk": string(s.riskLevel()),
		},
		Alerts:    []Alert{},
		Timestamp: now,
	}

	if s.rng.Float64() < AlertChance {
		level := domain.AlertLevelWarning
		if s.rng.Float64() < 0.1 {
			level = domain.AlertLevelCritical
		}
		p.Alerts = append(p.Alerts, Alert{
			ID:      fmt.Sprintf("ALERT-%s", now.Format("20060102150405")),
			Type:    level,
			Message: alertMessages[s.rng.IntN(len(alertMessages))],
			Position: domain.Position{
				Latitude:  -12.4333 + (s.rng.Float64()-0.5)*0.01,
				Longitude: 27.6167 + (s.rng.Float64()-0.5)*0.01,
				Elevation: 1275 + (s.rng.Float64()-0.5)*50,
			},
			Severity: s.riskLevel(),
			RaisedAt: now,
		})
	}
	return p, nil
}

// riskLevel must be called with s.mu held.
func (s *Simulated) riskLevel() domain.RiskLevel {
	return riskLevels[s.rng.IntN(len(riskLevels))]
}

// Status implements Client.
func (s *Simulated) Status() Status {
	return Status{
		Mode:        ModeSimulated,
		Message:     "Simulation mode",
		LastAttempt: s.now(),
	}
}

// SimulatedStations returns the server-status stations shown when no live
// layer is available. connected sets the connection parameters.
func SimulatedStations(now time.Time, connected bool) []domain.MonitoringStation {
	strength := 0.0
	if connected {
		strength = 1.0
	}
	return []domain.MonitoringStation{
		{
			ID:       "QGIS_001",
			Name:     "QGIS Server Monitor",
			Position: domain.Position{Latitude: -12.4, Longitude: 27.9},
			Type:     domain.StationTypeAirQuality,
			Parameters: map[string]float64{
				"Server_Uptime":       99.5,
				"Response_Time":       120.0,
				"Data_Quality":        0.95,
				"Connection_Strength": strength,
			},
			LastReading: now,
			Status:      domain.StationStatusOnline,
			AlertLevel:  domain.AlertLevelNormal,
		},
		{
			ID:       "QGIS_002",
			Name:     "MapServer Status",
			Position: domain.Position{Latitude: -12.6, Longitude: 28.1},
			Type:     domain.StationTypeAirQuality,
			Parameters: map[string]float64{
				"Map_Requests":   1250.0,
				"Cache_Hit_Rate": 0.85,
				"Render_Time":    250.0,
				"Layer_Count":    12.0,
			},
			LastReading: now,
			Status:      domain.StationStatusOnline,
			AlertLevel:  domain.AlertLevelNormal,
		},
	}
}

// NewClient builds the client for mode. ModeHTTP requires cfg.BaseURL.
func NewClient(mode Mode, cfg HTTPConfig, logger *slog.Logger) (Client, error) {
	switch mode {
	case ModeSimulated:
		return NewSimulated(nil, nil), nil
	case ModeHTTP:
		return NewHTTPClient(cfg, nil, nil, logger)
	default:
		return nil, fmt.Errorf("unknown map server mode %q", mode)
	}
}
