package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/mapserver"
	"github.com/DukeRupert/tsfwatch/internal/osm"
)

// WeatherSource returns current weather. weather.Client implements it.
type WeatherSource interface {
	Current(ctx context.Context, pos domain.Position) (domain.WeatherReading, error)
}

// FeatureSource returns OSM features in a box. osm.Client implements it.
type FeatureSource interface {
	Features(ctx context.Context, box osm.BoundingBox) ([]domain.GeoFeature, error)
}

// MapRefresher forces a map refresh outside the timer.
// refresh.Coordinator implements it.
type MapRefresher interface {
	RunOnce(ctx context.Context) bool
}

// GeoHandler serves the external collaborator views: weather, OSM features
// and tiles, and map-server status.
//
// Routes handled:
// - GET  /api/weather?lat=&lon=                              -> Weather
// - GET  /api/osm/features?minLat=&minLon=&maxLat=&maxLon=   -> Features
// - GET  /api/osm/tile?lat=&lon=&zoom=                       -> Tile
// - GET  /api/mapserver/status                               -> MapServerStatus
// - GET  /api/mapserver/packet                               -> MapServerPacket
// - POST /api/map/refresh                                    -> RefreshMap
type GeoHandler struct {
	weather   WeatherSource
	features  FeatureSource
	mapServer mapserver.Client
	refresher MapRefresher
	logger    *slog.Logger
}

// NewGeoHandler creates a GeoHandler.
func NewGeoHandler(weather WeatherSource, features FeatureSource, mapServer mapserver.Client, refresher MapRefresher, logger *slog.Logger) *GeoHandler {
	return &GeoHandler{
		weather:   weather,
		features:  features,
		mapServer: mapServer,
		refresher: refresher,
		logger:    logger,
	}
}

// Weather handles GET /api/weather. Without lat/lon it reports the
// Copperbelt box centre.
func (h *GeoHandler) Weather(w http.ResponseWriter, r *http.Request) {
	const op = "GeoHandler.Weather"

	pos := domain.Position{
		Latitude:  (osm.Copperbelt.MinLat + osm.Copperbelt.MaxLat) / 2,
		Longitude: (osm.Copperbelt.MinLon + osm.Copperbelt.MaxLon) / 2,
	}
	if r.URL.Query().Has("lat") || r.URL.Query().Has("lon") {
		var err error
		if pos, err = positionFromQuery(r, op); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}

	reading, err := h.weather.Current(r.Context(), pos)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to get weather"))
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// Features handles GET /api/osm/features. Without a box it searches the
// Copperbelt.
func (h *GeoHandler) Features(w http.ResponseWriter, r *http.Request) {
	const op = "GeoHandler.Features"

	box := osm.Copperbelt
	if r.URL.Query().Has("minLat") {
		var err error
		if box, err = boxFromQuery(r, op); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}

	features, err := h.features.Features(r.Context(), box)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, features)
}

type tileResponse struct {
	osm.Tile
	URL string `json:"url"`
}

// Tile handles GET /api/osm/tile.
func (h *GeoHandler) Tile(w http.ResponseWriter, r *http.Request) {
	const op = "GeoHandler.Tile"

	pos, err := positionFromQuery(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	zoom, err := queryInt(r, op, "zoom", 10)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tile := osm.TileFor(pos, zoom)
	writeJSON(w, http.StatusOK, tileResponse{Tile: tile, URL: tile.URL()})
}

// MapServerStatus handles GET /api/mapserver/status.
func (h *GeoHandler) MapServerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mapServer.Status())
}

// MapServerPacket handles GET /api/mapserver/packet.
func (h *GeoHandler) MapServerPacket(w http.ResponseWriter, r *http.Request) {
	const op = "GeoHandler.MapServerPacket"

	packet, err := h.mapServer.Packet(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "map server"))
		return
	}
	writeJSON(w, http.StatusOK, packet)
}

// RefreshMap handles POST /api/map/refresh. A refresh already in flight
// answers 409.
func (h *GeoHandler) RefreshMap(w http.ResponseWriter, r *http.Request) {
	const op = "GeoHandler.RefreshMap"

	if !h.refresher.RunOnce(r.Context()) {
		ErrorResponse(w, r, h.logger, domain.Conflict(op, "A map refresh is already running"))
		return
	}
	writeJSON(w, http.StatusAccepted, h.mapServer.Status())
}

func positionFromQuery(r *http.Request, op string) (domain.Position, error) {
	lat, err := queryFloat(r, op, "lat")
	if err != nil {
		return domain.Position{}, err
	}
	lon, err := queryFloat(r, op, "lon")
	if err != nil {
		return domain.Position{}, err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return domain.Position{}, domain.Invalid(op, "Coordinates are out of range")
	}
	return domain.Position{Latitude: lat, Longitude: lon}, nil
}

func boxFromQuery(r *http.Request, op string) (osm.BoundingBox, error) {
	var (
		box  osm.BoundingBox
		err  error
		dsts = []struct {
			name string
			dst  *float64
		}{
			{"minLat", &box.MinLat},
			{"minLon", &box.MinLon},
			{"maxLat", &box.MaxLat},
			{"maxLon", &box.MaxLon},
		}
	)
	for _, d := range dsts {
		if *d.dst, err = queryFloat(r, op, d.name); err != nil {
			return osm.BoundingBox{}, err
		}
	}
	return box, nil
}

// RegisterRoutes registers the collaborator routes on mux.
func (h *GeoHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/weather", h.Weather)
	mux.HandleFunc("GET /api/osm/features", h.Features)
	mux.HandleFunc("GET /api/osm/tile", h.Tile)
	mux.HandleFunc("GET /api/mapserver/status", h.MapServerStatus)
	mux.HandleFunc("GET /api/mapserver/packet", h.MapServerPacket)
	mux.HandleFunc("POST /api/map/refresh", h.RefreshMap)
}
