package mapserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/metrics"
)

const (
	// DefaultTimeout bounds every request to the map server.
	DefaultTimeout = 30 * time.Second

	// fallbackReserve is kept back from the caller's deadline so a slow
	// server still leaves time to return simulated stations.
	fallbackReserve = 2 * time.Second

	// MaxFeatures caps the features requested per layer.
	MaxFeatures = 100

	// maxBodySize caps how much of a response is read.
	maxBodySize = 10 << 20

	collaboratorName = "mapserver"
)

// Doer is the subset of *http.Client the map-server client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPConfig holds map-server connection settings.
type HTTPConfig struct {
	// BaseURL is the OWS endpoint, e.g.
	// http://localhost:8080/cgi-bin/qgis_mapserv.fcgi
	BaseURL string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64

	// Layers overrides DefaultLayers.
	Layers []string
}

// HTTPClient fetches live stations over WMS/WFS.
type HTTPClient struct {
	config   HTTPConfig
	doer     Doer
	limiter  *rate.Limiter
	fallback *Simulated
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	status Status
}

// NewHTTPClient creates a client for the server at cfg.BaseURL. A nil doer
// uses an *http.Client with cfg.Timeout.
func NewHTTPClient(cfg HTTPConfig, doer Doer, fallback *Simulated, logger *slog.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("map server URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid map server URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.Layers) == 0 {
		cfg.Layers = DefaultLayers
	}
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	if fallback == nil {
		fallback = NewSimulated(nil, nil)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPClient{
		config:   cfg,
		doer:     doer,
		limiter:  limiter,
		fallback: fallback,
		logger:   logger.With("component", "mapserver"),
		now:      time.Now,
		status:   Status{Mode: ModeHTTP, Message: "Not connected"},
	}, nil
}

// Status implements Client.
func (c *HTTPClient) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Ping checks the server answers a WMS GetCapabilities request.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.get(ctx, url.Values{
		"SERVICE": {"WMS"},
		"REQUEST": {"GetCapabilities"},
	})
	return err
}

// LiveStations pings the server and returns stations from the first layer
// with features. Failures, including running out of time, fall back to
// simulated stations; it never returns an error.
func (c *HTTPClient) LiveStations(ctx context.Context) ([]domain.MonitoringStation, error) {
	reqCtx, cancel := withReserve(ctx, fallbackReserve)
	defer cancel()

	if err := c.Ping(reqCtx); err != nil {
		return c.degrade(fmt.Sprintf("Server unavailable: %v", err), false), nil
	}

	for _, layer := range c.config.Layers {
		body, err := c.get(reqCtx, url.Values{
			"SERVICE":      {"WFS"},
			"VERSION":      {"1.1.0"},
			"REQUEST":      {"GetFeature"},
			"TYPENAME":     {layer},
			"OUTPUTFORMAT": {"application/json"},
			"MAXFEATURES":  {fmt.Sprint(MaxFeatures)},
		})
		if err != nil {
			if reqCtx.Err() != nil {
				return c.degrade("Connected - Layer requests timed out", true), nil
			}
			c.logger.Debug("layer unavailable", "layer", layer, "error", err)
			continue
		}

		stations := ParseStations(body, layer, c.now())
		if len(stations) == 0 {
			c.logger.Debug("layer has no point features", "layer", layer)
			continue
		}

		c.setStatus(Status{
			Mode:        ModeHTTP,
			Connected:   true,
			Layer:       layer,
			Message:     "Connected - Live data loaded",
			LastAttempt: c.now(),
		})
		c.logger.Info("loaded live stations", "layer", layer, "count", len(stations))
		return stations, nil
	}

	return c.degrade("Connected - No monitoring layers found", true), nil
}

// Packet implements Client. The server exposes no packet endpoint, so this
// is always simulated.
func (c *HTTPClient) Packet(ctx context.Context) (*Packet, error) {
	return c.fallback.Packet(ctx)
}

func (c *HTTPClient) degrade(message string, connected bool) []domain.MonitoringStation {
	metrics.CollaboratorFallback(collaboratorName)
	c.logger.Warn("map server degraded to simulation", "reason", message)

	now := c.now()
	c.setStatus(Status{
		Mode:        ModeHTTP,
		Connected:   connected,
		Message:     message,
		LastAttempt: now,
	})
	return SimulatedStations(now, connected)
}

// withReserve returns a context whose deadline is reserve earlier than
// ctx's. Without a deadline on ctx it only adds cancellation.
func withReserve(ctx context.Context, reserve time.Duration) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline.Add(-reserve))
}

func (c *HTTPClient) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *HTTPClient) get(ctx context.Context, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, err
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// =============================================================================
// GeoJSON parsing
// =============================================================================

// ParseStations converts the point features of a WFS GeoJSON response into
// stations named QGIS_<layer>_<NNN>. Numeric properties become parameters
// prefixed with QGIS_. Features without at least two coordinates are
// skipped.
func ParseStations(body []byte, layer string, now time.Time) []domain.MonitoringStation {
	if !gjson.ValidBytes(body) {
		return nil
	}

	var stations []domain.MonitoringStation
	gjson.GetBytes(body, "features").ForEach(func(_, feature gjson.Result) bool {
		coords := feature.Get("geometry.coordinates").Array()
		if len(coords) < 2 || coords[0].Type != gjson.Number || coords[1].Type != gjson.Number {
			return true
		}

		n := len(stations) + 1
		props := feature.Get("properties")

		name := props.Get("name").String()
		if name == "" {
			name = fmt.Sprintf("QGIS Station %d", n)
		}

		stationType := domain.StationType(props.Get("type").String())
		if !stationType.IsValid() {
			stationType = domain.StationTypeWaterQuality
		}

		params := map[string]float64{
			"QGIS_Connected": 1.0,
			"Data_Quality":   0.98,
			"Live_Status":    1.0,
		}
		props.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.Number {
				params["QGIS_"+key.String()] = value.Float()
			}
			return true
		})

		stations = append(stations, domain.MonitoringStation{
			ID:   fmt.Sprintf("QGIS_%s_%03d", layer, n),
			Name: name,
			Position: domain.Position{
				Longitude: coords[0].Float(),
				Latitude:  coords[1].Float(),
			},
			Type:        stationType,
			Parameters:  params,
			LastReading: now,
			Status:      domain.StationStatusOnline,
			AlertLevel:  domain.AlertLevelNormal,
		})
		return true
	})
	return stations
}
