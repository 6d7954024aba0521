// Package weather looks up current conditions at a facility.
//
// With an OpenWeather API key the client queries the current-weather
// endpoint; without one, or when the call fails, it returns a simulated
// reading flagged with Simulated.
package weather

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/metrics"
)

const (
	// DefaultBaseURL is the OpenWeather current-weather endpoint.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

	// DefaultTimeout bounds each request.
	DefaultTimeout = 30 * time.Second

	// SimulatedLocation labels every simulated reading.
	SimulatedLocation = "Copperbelt Province, Zambia"

	collaboratorName = "weather"
)

var descriptions = []string{"Clear sky", "Few clouds", "Scattered clouds", "Partly cloudy"}

// Doer is the subset of *http.Client the weather client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds OpenWeather settings. An empty APIKey means simulate.
type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client fetches weather readings.
type Client struct {
	config  Config
	doer    Doer
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Client.
type Option func(*Client)

// WithDoer sets the HTTP client.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithRand sets the random source for simulated readings.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) { c.rng = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a weather client. A missing API key is logged once as a
// warning; the client then only simulates.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		config:  cfg,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger.With("component", "weather"),
		now:     time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = &http.Client{Timeout: cfg.Timeout}
	}
	if c.rng == nil {
		seed := uint64(time.Now().UnixNano())
		c.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}

	if cfg.APIKey == "" {
		c.logger.Warn("OPENWEATHER_API_KEY not set, weather readings will be simulated")
	}
	return c
}

// Current returns the weather at the position. It never fails for
// collaborator errors; those produce a simulated reading.
func (c *Client) Current(ctx context.Context, pos domain.Position) (domain.WeatherReading, error) {
	if err := ctx.Err(); err != nil {
		return domain.WeatherReading{}, err
	}
	if c.config.APIKey == "" {
		return c.Simulated(), nil
	}

	reading, err := c.fetch(ctx, pos)
	if err != nil {
		if ctx.Err() != nil {
			return domain.WeatherReading{}, ctx.Err()
		}
		metrics.CollaboratorFallback(collaboratorName)
		c.logger.Warn("weather lookup failed, using simulated reading", "error", err)
		return c.Simulated(), nil
	}
	return reading, nil
}

// Simulated returns a plausible Copperbelt reading.
func (c *Client) Simulated() domain.WeatherReading {
	c.mu.Lock()
	defer c.mu.Unlock()

	return domain.WeatherReading{
		Temperature:   22 + c.rng.Float64()*8,
		Humidity:      45 + c.rng.Float64()*30,
		Pressure:      1010 + c.rng.Float64()*20,
		WindSpeed:     2 + c.rng.Float64()*8,
		WindDirection: c.rng.Float64() * 360,
		Description:   descriptions[c.rng.IntN(len(descriptions))],
		Location:      SimulatedLocation,
		Simulated:     true,
		ObservedAt:    c.now(),
	}
}

func (c *Client) fetch(ctx context.Context, pos domain.Position) (domain.WeatherReading, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.WeatherReading{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return domain.WeatherReading{}, err
	}
	u.RawQuery = url.Values{
		"lat":   {strconv.FormatFloat(pos.Latitude, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(pos.Longitude, 'f', -1, 64)},
		"appid": {c.config.APIKey},
		"units": {"metric"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.WeatherReading{}, err
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return domain.WeatherReading{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.WeatherReading{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.WeatherReading{}, err
	}
	return Parse(body, c.now())
}

// Parse reads an OpenWeather current-weather response.
func Parse(body []byte, observedAt time.Time) (domain.WeatherReading, error) {
	if !gjson.ValidBytes(body) {
		return domain.WeatherReading{}, fmt.Errorf("invalid weather response")
	}

	doc := gjson.ParseBytes(body)
	if !doc.Get("main").Exists() {
		return domain.WeatherReading{}, fmt.Errorf("weather response has no main block")
	}

	location := doc.Get("name").String()
	if location == "" {
		location = "Unknown"
	}
	description := doc.Get("weather.0.description").String()
	if description == "" {
		description = "Unknown"
	}

	return domain.WeatherReading{
		Temperature:   doc.Get("main.temp").Float(),
		Humidity:      doc.Get("main.humidity").Float(),
		Pressure:      doc.Get("main.pressure").Float(),
		WindSpeed:     doc.Get("wind.speed").Float(),
		WindDirection: doc.Get("wind.deg").Float(),
		Description:   description,
		Location:      location,
		ObservedAt:    observedAt,
	}, nil
}
