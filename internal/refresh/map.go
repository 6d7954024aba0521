package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/events"
	"github.com/DukeRupert/tsfwatch/internal/mapserver"
	"github.com/DukeRupert/tsfwatch/internal/metrics"
	"github.com/DukeRupert/tsfwatch/internal/registry"
	"github.com/DukeRupert/tsfwatch/internal/risk"
)

// StationSource supplies live stations from the map server. An error, for
// example a run that timed out, makes the refresher use simulated stations.
type StationSource interface {
	LiveStations(ctx context.Context) ([]domain.MonitoringStation, error)
}

// MapRefresher pulls live stations into the registry and announces the new
// marker set.
type MapRefresher struct {
	source    StationSource
	registry  *registry.Registry
	engine    *risk.Engine
	dashboard *Dashboard
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewMapRefresher creates a MapRefresher. The dashboard supplies the
// analysis the overlay labels are drawn from.
func NewMapRefresher(source StationSource, reg *registry.Registry, engine *risk.Engine, dashboard *Dashboard, publisher events.Publisher, logger *slog.Logger) *MapRefresher {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &MapRefresher{
		source:    source,
		registry:  reg,
		engine:    engine,
		dashboard: dashboard,
		publisher: publisher,
		logger:    logger.With("component", "map-refresher"),
		now:       time.Now,
	}
}

// MapUpdate is the payload of a map.refreshed event.
type MapUpdate struct {
	Markers      domain.Markers   `json:"markers"`
	Labels       domain.MapLabels `json:"labels"`
	LiveStations int              `json:"liveStations"`
}

// Refresh merges the live stations and publishes map.refreshed. When the
// source fails the disconnected simulated stations are merged instead, so
// every run updates the map.
func (m *MapRefresher) Refresh(ctx context.Context) error {
	stations, err := m.source.LiveStations(ctx)
	if err != nil {
		metrics.CollaboratorFallback("mapserver")
		m.logger.Warn("live stations unavailable, using simulated stations", "error", err)
		stations = mapserver.SimulatedStations(m.now(), false)
	}

	for _, s := range stations {
		m.registry.UpsertStation(s)
		metrics.StationReading("mapserver")
	}

	update := MapUpdate{
		Markers:      m.registry.Markers(),
		Labels:       m.engine.MapLabels(m.dashboard.Latest()),
		LiveStations: len(stations),
	}
	events.PublishJSON(ctx, m.publisher, m.logger, events.TypeMapRefreshed, update)

	m.logger.Debug("map refreshed", "live_stations", len(stations))
	return nil
}
