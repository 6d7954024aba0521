// Package registry holds the facility and monitoring-station data the
// dashboard works from.
//
// The registry is seeded with the Copperbelt facilities at construction and
// is the single owner of that state afterwards. Readers always receive copies;
// live station readings are merged in through UpdateStationReadings and
// UpsertStation, which serialize on the registry's lock.
package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// Registry stores facilities and stations keyed by their stable IDs.
type Registry struct {
	mu         sync.RWMutex
	facilities []domain.Facility
	stations   []domain.MonitoringStation
	logger     *slog.Logger
}

// New creates a registry seeded relative to now.
func New(now time.Time, logger *slog.Logger) *Registry {
	r := &Registry{
		facilities: seedFacilities(now),
		stations:   seedStations(now),
		logger:     logger,
	}
	logger.Debug("registry seeded",
		"facilities", len(r.facilities),
		"stations", len(r.stations),
	)
	return r
}

// ListFacilities returns a copy of every facility in seed order.
func (r *Registry) ListFacilities() []domain.Facility {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Facility, len(r.facilities))
	copy(out, r.facilities)
	return out
}

// ListMonitoringStations returns a deep copy of every station in registry
// order.
func (r *Registry) ListMonitoringStations() []domain.MonitoringStation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.MonitoringStation, len(r.stations))
	for i, s := range r.stations {
		out[i] = s.Clone()
	}
	return out
}

// Facility looks up a facility by ID.
func (r *Registry) Facility(id string) (domain.Facility, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.facilities {
		if f.ID == id {
			return f, true
		}
	}
	return domain.Facility{}, false
}

// Station looks up a station by ID.
func (r *Registry) Station(id string) (domain.MonitoringStation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.stationIndex(id); i >= 0 {
		return r.stations[i].Clone(), true
	}
	return domain.MonitoringStation{}, false
}

// UpdateStationReadings merges params into the station's parameter map and
// stamps the reading time. Returns false if the station is unknown.
func (r *Registry) UpdateStationReadings(id string, params map[string]float64, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.stationIndex(id)
	if i < 0 {
		return false
	}

	st := &r.stations[i]
	if st.Parameters == nil {
		st.Parameters = make(map[string]float64, len(params))
	}
	for k, v := range params {
		st.Parameters[k] = v
	}
	st.LastReading = at
	return true
}

// UpsertStation replaces a station with the same ID or appends it.
func (r *Registry) UpsertStation(station domain.MonitoringStation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	station = station.Clone()
	if i := r.stationIndex(station.ID); i >= 0 {
		r.stations[i] = station
		return
	}
	r.stations = append(r.stations, station)
	r.logger.Info("station added", "station_id", station.ID, "name", station.Name)
}

// SetStationStatus updates the operational and alert state of a station.
func (r *Registry) SetStationStatus(id string, status domain.StationStatus, alert domain.AlertLevel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.stationIndex(id)
	if i < 0 {
		return false
	}
	r.stations[i].Status = status
	r.stations[i].AlertLevel = alert
	return true
}

// StationStatusLines returns one display string per station, sorted by ID.
func (r *Registry) StationStatusLines() []string {
	stations := r.ListMonitoringStations()
	sort.Slice(stations, func(i, j int) bool { return stations[i].ID < stations[j].ID })

	lines := make([]string, len(stations))
	for i := range stations {
		lines[i] = stations[i].StatusLine()
	}
	return lines
}

// Markers returns the descriptors the map surface needs to place every
// facility and station.
func (r *Registry) Markers() domain.Markers {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := domain.Markers{
		Facilities: make([]domain.FacilityMarker, len(r.facilities)),
		Stations:   make([]domain.StationMarker, len(r.stations)),
	}
	for i, f := range r.facilities {
		m.Facilities[i] = domain.FacilityMarker{
			Longitude:     f.Position.Longitude,
			Latitude:      f.Position.Latitude,
			RiskLevel:     f.RiskLevel,
			Name:          f.Name,
			Capacity:      f.Capacity,
			CurrentVolume: f.CurrentVolume,
		}
	}
	for i, s := range r.stations {
		m.Stations[i] = domain.StationMarker{
			Longitude:   s.Position.Longitude,
			Latitude:    s.Position.Latitude,
			StationType: s.Type,
			Name:        s.Name,
			Status:      s.Status,
		}
	}
	return m
}

// stationIndex must be called with the lock held.
func (r *Registry) stationIndex(id string) int {
	for i := range r.stations {
		if r.stations[i].ID == id {
			return i
		}
	}
	return -1
}
