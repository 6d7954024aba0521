package mapserver

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const stationsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [27.61, -12.43]},
      "properties": {"name": "Piezometer A", "type": "Groundwater", "level": 15.5, "note": "ok"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [28.2]},
      "properties": {"name": "Broken"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [28.24, -12.55]},
      "properties": {"turbidity": 11}
    }
  ]
}`

// fakeServer answers GetCapabilities and serves features for one layer.
type fakeServer struct {
	mu        sync.Mutex
	layer     string
	capsCode  int
	blockWFS  chan struct{}
	requested []string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f.mu.Lock()
	f.requested = append(f.requested, q.Get("TYPENAME"))
	f.mu.Unlock()

	if q.Get("REQUEST") == "GetCapabilities" {
		if f.capsCode != 0 {
			w.WriteHeader(f.capsCode)
			return
		}
		_, _ = w.Write([]byte("<WMS_Capabilities/>"))
		return
	}
	if f.blockWFS != nil {
		select {
		case <-r.Context().Done():
		case <-f.blockWFS:
		}
		return
	}
	if q.Get("SERVICE") != "WFS" || q.Get("TYPENAME") != f.layer {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(stationsGeoJSON))
}

func newTestClient(t *testing.T, srv *httptest.Server) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second}, srv.Client(), NewSimulated(rand.New(rand.NewPCG(1, 2)), func() time.Time { return testNow }), discardLogger())
	require.NoError(t, err)
	c.now = func() time.Time { return testNow }
	return c
}

// =============================================================================
// HTTP client
// =============================================================================

func TestHTTPClient_LoadsFirstLayerWithFeatures(t *testing.T) {
	fake := &fakeServer{layer: "sensors"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv)
	stations, err := c.LiveStations(context.Background())
	require.NoError(t, err)

	require.Len(t, stations, 2)
	assert.Equal(t, "QGIS_sensors_001", stations[0].ID)
	assert.Equal(t, "Piezometer A", stations[0].Name)
	assert.Equal(t, domain.StationTypeGroundwater, stations[0].Type)
	assert.Equal(t, 27.61, stations[0].Position.Longitude)
	assert.Equal(t, -12.43, stations[0].Position.Latitude)
	assert.Equal(t, 15.5, stations[0].Parameters["QGIS_level"])
	assert.NotContains(t, stations[0].Parameters, "QGIS_note")

	assert.Equal(t, "QGIS_sensors_002", stations[1].ID)
	assert.Equal(t, "QGIS Station 2", stations[1].Name)
	assert.Equal(t, domain.StationTypeWaterQuality, stations[1].Type)

	status := c.Status()
	assert.True(t, status.Connected)
	assert.Equal(t, "sensors", status.Layer)

	// capabilities, monitoring_stations, stations, sensors
	assert.Equal(t, []string{"", "monitoring_stations", "stations", "sensors"}, fake.requested)
}

func TestHTTPClient_FallsBackWhenCapabilitiesFail(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{capsCode: http.StatusServiceUnavailable})
	defer srv.Close()

	c := newTestClient(t, srv)
	stations, err := c.LiveStations(context.Background())
	require.NoError(t, err)

	require.Len(t, stations, 2)
	assert.Equal(t, "QGIS_001", stations[0].ID)
	assert.Equal(t, 0.0, stations[0].Parameters["Connection_Strength"])

	status := c.Status()
	assert.False(t, status.Connected)
	assert.Contains(t, status.Message, "Server unavailable")
}

func TestHTTPClient_FallsBackWhenNoLayerHasData(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{layer: "nothing_matches"})
	defer srv.Close()

	c := newTestClient(t, srv)
	stations, err := c.LiveStations(context.Background())
	require.NoError(t, err)

	require.Len(t, stations, 2)
	assert.Equal(t, 1.0, stations[0].Parameters["Connection_Strength"])
	assert.Equal(t, "Connected - No monitoring layers found", c.Status().Message)
}

func TestHTTPClient_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	srv.Close()

	c := newTestClient(t, srv)
	stations, err := c.LiveStations(context.Background())
	require.NoError(t, err)
	assert.Len(t, stations, 2)
}

func TestHTTPClient_CancelledContextStillFallsBack(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{layer: "sensors"})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stations, err := newTestClient(t, srv).LiveStations(ctx)
	require.NoError(t, err)
	assert.Len(t, stations, 2)
	assert.Equal(t, "QGIS_001", stations[0].ID)
}

func TestHTTPClient_SlowLayersFallBackBeforeCallerDeadline(t *testing.T) {
	fake := &fakeServer{layer: "sensors", blockWFS: make(chan struct{})}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	defer close(fake.blockWFS)

	c, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Timeout: 10 * time.Second}, srv.Client(), nil, discardLogger())
	require.NoError(t, err)
	c.now = func() time.Time { return testNow }

	ctx, cancel := context.WithTimeout(context.Background(), fallbackReserve+500*time.Millisecond)
	defer cancel()

	stations, err := c.LiveStations(ctx)
	require.NoError(t, err)
	require.NoError(t, ctx.Err(), "fallback must leave the caller's budget unspent")

	require.Len(t, stations, 2)
	assert.Equal(t, 1.0, stations[0].Parameters["Connection_Strength"])

	status := c.Status()
	assert.True(t, status.Connected)
	assert.Contains(t, status.Message, "timed out")
}

func TestNewHTTPClient_RequiresURL(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{}, nil, nil, discardLogger())
	assert.Error(t, err)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(ModeSimulated, HTTPConfig{}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &Simulated{}, c)

	c, err = NewClient(ModeHTTP, HTTPConfig{BaseURL: "http://localhost:8080/ows"}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &HTTPClient{}, c)

	_, err = NewClient("ftp", HTTPConfig{}, discardLogger())
	assert.Error(t, err)
}

// =============================================================================
// Parsing
// =============================================================================

func TestParseStations_Invalid(t *testing.T) {
	assert.Empty(t, ParseStations([]byte("not json"), "x", testNow))
	assert.Empty(t, ParseStations([]byte(`{"type":"FeatureCollection"}`), "x", testNow))
}

// =============================================================================
// Simulated
// =============================================================================

func TestSimulated_Stations(t *testing.T) {
	s := NewSimulated(nil, func() time.Time { return testNow })
	stations, err := s.LiveStations(context.Background())
	require.NoError(t, err)

	require.Len(t, stations, 2)
	assert.Equal(t, "QGIS Server Monitor", stations[0].Name)
	assert.Equal(t, "MapServer Status", stations[1].Name)
	assert.Equal(t, testNow, stations[1].LastReading)
	assert.Equal(t, ModeSimulated, s.Status().Mode)
}

func TestSimulated_PacketAlertRate(t *testing.T) {
	s := NewSimulated(rand.New(rand.NewPCG(42, 42)), func() time.Time { return testNow })

	const n = 2000
	withAlert := 0
	for range n {
		p, err := s.Packet(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "TSF-MUKUBAICO-001", p.ProjectID)
		assert.GreaterOrEqual(t, p.Stability["SlopeStability"], 1.2)
		assert.Less(t, p.Stability["SlopeStability"], 1.5)
		if len(p.Alerts) > 0 {
			withAlert++
		}
	}

	rate := float64(withAlert) / n
	assert.InDelta(t, AlertChance, rate, 0.05)
}
