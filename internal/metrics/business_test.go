package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

func TestAnalysisRecorded(t *testing.T) {
	AnalysisRecorded(&domain.AnalysisResult{OverallRisk: domain.RiskLevelMedium, StabilityFactor: 1.45})

	assert.Equal(t, 1.0, testutil.ToFloat64(OverallRisk))
	assert.Equal(t, 1.45, testutil.ToFloat64(StabilityFactor))
}

func TestRiskValue(t *testing.T) {
	tests := []struct {
		level domain.RiskLevel
		want  float64
	}{
		{domain.RiskLevelLow, 0},
		{domain.RiskLevelMedium, 1},
		{domain.RiskLevelHigh, 2},
		{domain.RiskLevelCritical, 3},
		{domain.RiskLevel(""), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, riskValue(tt.level), string(tt.level))
	}
}

func TestRefreshSkipped(t *testing.T) {
	before := testutil.ToFloat64(RefreshSkippedTotal.WithLabelValues("unit-test"))
	RefreshSkipped("unit-test")
	assert.Equal(t, before+1, testutil.ToFloat64(RefreshSkippedTotal.WithLabelValues("unit-test")))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/facilities/TSF-KONKOLA-001", "/api/facilities/{id}"},
		{"/api/stations/ENV-MON-002", "/api/stations/{id}"},
		{"/api/exports/123e4567-e89b-12d3-a456-426614174000", "/api/exports/{id}"},
		{"/api/analysis", "/api/analysis"},
		{"/api/exports/files/TSF_MapData_20250601_093000/tsf_facilities.geojson", "/api/exports/files/{key}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.path))
	}
}

func TestMiddleware_CountsNormalizedPath(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"not_found"}`))
	}))

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/facilities/{id}", "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities/TSF-NOWHERE-999", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestMiddleware_SkipsMetricsEndpoint(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	before := testutil.ToFloat64(counter)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, before, testutil.ToFloat64(counter))
}
