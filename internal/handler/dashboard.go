package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/registry"
	"github.com/DukeRupert/tsfwatch/internal/risk"
)

// AnalysisSource returns the most recent analysis. refresh.Dashboard
// implements it.
type AnalysisSource interface {
	Latest() *domain.AnalysisResult
}

// DashboardHandler serves the registry, analysis and compliance views.
//
// Routes handled:
// - GET /api/facilities            -> Facilities
// - GET /api/facilities/{id}       -> Facility
// - GET /api/facilities/{id}/live  -> LiveReading
// - GET /api/stations              -> Stations
// - GET /api/stations/status       -> StationStatus
// - GET /api/stations/{id}         -> Station
// - GET /api/markers               -> Markers
// - GET /api/analysis              -> Analysis
// - GET /api/compliance            -> Compliance
// - GET /api/compliance/{name}     -> ComplianceStandard
type DashboardHandler struct {
	registry *registry.Registry
	engine   *risk.Engine
	analysis AnalysisSource
	logger   *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(reg *registry.Registry, engine *risk.Engine, analysis AnalysisSource, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		registry: reg,
		engine:   engine,
		analysis: analysis,
		logger:   logger,
	}
}

// facilityView adds the derived figures to a facility.
type facilityView struct {
	domain.Facility
	CapacityUtilization float64 `json:"capacityUtilization"`
	OverCapacity        bool    `json:"overCapacity"`
}

func newFacilityView(f domain.Facility) facilityView {
	return facilityView{
		Facility:            f,
		CapacityUtilization: f.CapacityUtilization(),
		OverCapacity:        f.IsOverCapacity(),
	}
}

// Facilities handles GET /api/facilities.
func (h *DashboardHandler) Facilities(w http.ResponseWriter, r *http.Request) {
	facilities := h.registry.ListFacilities()
	out := make([]facilityView, len(facilities))
	for i, f := range facilities {
		out[i] = newFacilityView(f)
	}
	writeJSON(w, http.StatusOK, out)
}

// Facility handles GET /api/facilities/{id}.
func (h *DashboardHandler) Facility(w http.ResponseWriter, r *http.Request) {
	const op = "DashboardHandler.Facility"

	id := r.PathValue("id")
	f, ok := h.registry.Facility(id)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "facility", id))
		return
	}
	writeJSON(w, http.StatusOK, newFacilityView(f))
}

// LiveReading handles GET /api/facilities/{id}/live. The facility must be
// registered even though the sample itself is simulated.
func (h *DashboardHandler) LiveReading(w http.ResponseWriter, r *http.Request) {
	const op = "DashboardHandler.LiveReading"

	id := r.PathValue("id")
	if _, ok := h.registry.Facility(id); !ok {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "facility", id))
		return
	}
	writeJSON(w, http.StatusOK, h.engine.LiveReading(id))
}

// Stations handles GET /api/stations.
func (h *DashboardHandler) Stations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.ListMonitoringStations())
}

// Station handles GET /api/stations/{id}.
func (h *DashboardHandler) Station(w http.ResponseWriter, r *http.Request) {
	const op = "DashboardHandler.Station"

	id := r.PathValue("id")
	s, ok := h.registry.Station(id)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "monitoring station", id))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// StationStatus handles GET /api/stations/status.
func (h *DashboardHandler) StationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"lines": h.registry.StationStatusLines()})
}

// Markers handles GET /api/markers.
func (h *DashboardHandler) Markers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Markers())
}

type analysisResponse struct {
	*domain.AnalysisResult
	Labels          domain.MapLabels `json:"labels"`
	FacilityRisk    domain.RiskLevel `json:"facilityRisk"`
	StabilityLabel  string           `json:"stabilityLabel"`
	FacilitiesCount int              `json:"facilitiesCount"`
}

// Analysis handles GET /api/analysis. OverallRisk is the engine's
// utilization-based figure; FacilityRisk is derived from the registered
// facilities' own risk levels.
func (h *DashboardHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	result := h.analysis.Latest()
	facilities := h.registry.ListFacilities()

	writeJSON(w, http.StatusOK, analysisResponse{
		AnalysisResult:  result,
		Labels:          h.engine.MapLabels(result),
		FacilityRisk:    risk.ClassifyOverallRisk(facilities),
		StabilityLabel:  risk.RiskDisplayLabel(result.StabilityFactor),
		FacilitiesCount: len(facilities),
	})
}

type complianceResponse struct {
	Overall   float64                     `json:"overall"`
	Standards []domain.ComplianceStandard `json:"standards"`
}

// Compliance handles GET /api/compliance.
func (h *DashboardHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	standards := risk.Standards()
	writeJSON(w, http.StatusOK, complianceResponse{
		Overall:   risk.OverallCompliance(standards),
		Standards: standards,
	})
}

type standardResponse struct {
	domain.ComplianceStandard
	ItemAverage  *float64 `json:"itemAverage,omitempty"`
	WarningCount int      `json:"warningCount"`
}

// ComplianceStandard handles GET /api/compliance/{name}.
func (h *DashboardHandler) ComplianceStandard(w http.ResponseWriter, r *http.Request) {
	const op = "DashboardHandler.ComplianceStandard"

	name := r.PathValue("name")
	s, ok := risk.Standard(name)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "compliance standard", name))
		return
	}

	resp := standardResponse{ComplianceStandard: s, WarningCount: s.WarningCount()}
	if avg, ok := risk.ItemAverage(s); ok {
		resp.ItemAverage = &avg
	}
	writeJSON(w, http.StatusOK, resp)
}

// RegisterRoutes registers the dashboard routes on mux. Callers wrap mux
// with the session middleware.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/facilities", h.Facilities)
	mux.HandleFunc("GET /api/facilities/{id}", h.Facility)
	mux.HandleFunc("GET /api/facilities/{id}/live", h.LiveReading)
	mux.HandleFunc("GET /api/stations", h.Stations)
	mux.HandleFunc("GET /api/stations/status", h.StationStatus)
	mux.HandleFunc("GET /api/stations/{id}", h.Station)
	mux.HandleFunc("GET /api/markers", h.Markers)
	mux.HandleFunc("GET /api/analysis", h.Analysis)
	mux.HandleFunc("GET /api/compliance", h.Compliance)
	mux.HandleFunc("GET /api/compliance/{name}", h.ComplianceStandard)
}
