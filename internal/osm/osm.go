// Package osm provides OpenStreetMap tile addressing and nearby-feature
// lookups through the Overpass API.
package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/metrics"
)

const (
	// DefaultOverpassURL is the public Overpass interpreter.
	DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

	// DefaultTimeout bounds each Overpass request.
	DefaultTimeout = 30 * time.Second

	// MaxZoom is the deepest standard OSM tile zoom.
	MaxZoom = 19

	tileURLFormat    = "https://tile.openstreetmap.org/%d/%d/%d.png"
	collaboratorName = "overpass"
)

// =============================================================================
// Tiles
// =============================================================================

// Tile is a slippy-map tile address.
type Tile struct {
	Zoom int `json:"zoom"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// URL returns the standard OSM tile URL.
func (t Tile) URL() string {
	return fmt.Sprintf(tileURLFormat, t.Zoom, t.X, t.Y)
}

// TileFor returns the tile containing the position at zoom. Zoom is clamped
// to [0, MaxZoom].
func TileFor(pos domain.Position, zoom int) Tile {
	zoom = max(0, min(zoom, MaxZoom))
	n := math.Exp2(float64(zoom))
	lat := pos.Latitude * math.Pi / 180

	x := int((pos.Longitude + 180) / 360 * n)
	y := int((1 - math.Asinh(math.Tan(lat))/math.Pi) / 2 * n)

	last := int(n) - 1
	return Tile{
		Zoom: zoom,
		X:    max(0, min(x, last)),
		Y:    max(0, min(y, last)),
	}
}

// =============================================================================
// Overpass
// =============================================================================

// BoundingBox is a south/west/north/east box in degrees.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// Validate checks the box is ordered and within WGS84 bounds.
func (b BoundingBox) Validate() error {
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return fmt.Errorf("bounding box outside WGS84 range")
	}
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return fmt.Errorf("bounding box min must be below max")
	}
	return nil
}

// Copperbelt covers the seeded facilities.
var Copperbelt = BoundingBox{MinLat: -13.0, MinLon: 27.2, MaxLat: -12.0, MaxLon: 28.5}

// Query builds the Overpass QL request for water bodies, industrial land
// and mines inside the box.
func (b BoundingBox) Query() string {
	box := fmt.Sprintf("(%s,%s,%s,%s)", ff(b.MinLat), ff(b.MinLon), ff(b.MaxLat), ff(b.MaxLon))
	return "[out:json][timeout:25];(" +
		`way["natural"="water"]` + box + ";" +
		`way["landuse"="industrial"]` + box + ";" +
		`way["man_made"="mine"]` + box + ";" +
		`relation["landuse"="industrial"]` + box + ";" +
		");out geom;"
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Doer is the subset of *http.Client the Overpass client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries Overpass for geographic features.
type Client struct {
	baseURL string
	timeout time.Duration
	doer    Doer
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates an Overpass client. Empty baseURL uses
// DefaultOverpassURL; nil doer uses an *http.Client. Overpass asks clients
// to keep to about one request per second.
func NewClient(baseURL string, doer Doer, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultOverpassURL
	}
	if doer == nil {
		doer = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: baseURL,
		timeout: DefaultTimeout,
		doer:    doer,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger.With("component", "overpass"),
	}
}

// Features returns the features inside box. Lookup failures fall back to
// SimulatedFeatures; only an invalid box or a cancelled context is an
// error.
func (c *Client) Features(ctx context.Context, box BoundingBox) ([]domain.GeoFeature, error) {
	const op = "osm.Features"

	if err := box.Validate(); err != nil {
		return nil, domain.Invalid(op, err.Error())
	}

	features, err := c.fetch(ctx, box)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.CollaboratorFallback(collaboratorName)
		c.logger.Warn("overpass lookup failed, using simulated features", "error", err)
		return SimulatedFeatures(), nil
	}
	return features, nil
}

func (c *Client) fetch(ctx context.Context, box BoundingBox) ([]domain.GeoFeature, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.RawQuery = url.Values{"data": {box.Query()}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, err
	}
	return ParseFeatures(body)
}

// ParseFeatures reads an Overpass JSON response with "out geom" geometry.
func ParseFeatures(body []byte) ([]domain.GeoFeature, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid overpass response")
	}

	elements := gjson.GetBytes(body, "elements")
	if !elements.IsArray() {
		return nil, fmt.Errorf("overpass response has no elements")
	}

	features := []domain.GeoFeature{}
	elements.ForEach(func(_, el gjson.Result) bool {
		tags := map[string]string{}
		el.Get("tags").ForEach(func(k, v gjson.Result) bool {
			tags[k.String()] = v.String()
			return true
		})

		name := tags["name"]
		if name == "" {
			name = "Unnamed Feature"
		}

		var coords []domain.Position
		if geom := el.Get("geometry"); geom.IsArray() {
			geom.ForEach(func(_, p gjson.Result) bool {
				coords = append(coords, domain.Position{
					Latitude:  p.Get("lat").Float(),
					Longitude: p.Get("lon").Float(),
				})
				return true
			})
		} else if el.Get("lat").Exists() && el.Get("lon").Exists() {
			coords = append(coords, domain.Position{
				Latitude:  el.Get("lat").Float(),
				Longitude: el.Get("lon").Float(),
			})
		}

		features = append(features, domain.GeoFeature{
			ID:          el.Get("id").String(),
			Name:        name,
			Kind:        FeatureKind(tags),
			Coordinates: coords,
			Tags:        tags,
		})
		return true
	})
	return features, nil
}

// FeatureKind classifies a feature by its OSM tags.
func FeatureKind(tags map[string]string) string {
	switch {
	case len(tags) == 0:
		return "Unknown"
	case tags["natural"] == "water":
		return "Water Body"
	case tags["landuse"] == "industrial":
		return "Industrial"
	case tags["man_made"] == "mine":
		return "Mine"
	default:
		return "Other"
	}
}

// SimulatedFeatures returns the Kafue River and Konkola mine.
func SimulatedFeatures() []domain.GeoFeature {
	return []domain.GeoFeature{
		{
			ID:   "RIVER-001",
			Name: "Kafue River",
			Kind: "River",
			Coordinates: []domain.Position{
				{Latitude: -12.4, Longitude: 27.5},
				{Latitude: -12.6, Longitude: 27.8},
			},
			Tags: map[string]string{"waterway": "river", "name": "Kafue River"},
		},
		{
			ID:          "MINE-001",
			Name:        "Konkola Copper Mine",
			Kind:        "Industrial",
			Coordinates: []domain.Position{{Latitude: -12.43, Longitude: 27.61}},
			Tags:        map[string]string{"landuse": "industrial", "industrial": "mine"},
		},
	}
}
