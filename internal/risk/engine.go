// Package risk derives analysis metrics, risk classifications and live alert
// levels from facility state.
//
// Engineering readings (stability factor, settlement, seepage) are synthetic:
// each is drawn uniformly from a fixed band so the dashboard shows plausible
// values. The random source is injectable so tests can pin it.
package risk

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// =============================================================================
// Bands and Thresholds
// =============================================================================

// Band is an inclusive-exclusive range [Min, Max) for a synthetic reading.
type Band struct {
	Min float64
	Max float64
}

func (b Band) draw(r *rand.Rand) float64 {
	return b.Min + r.Float64()*(b.Max-b.Min)
}

// Contains reports whether v lies within the band, Max inclusive.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

var (
	StabilityBand    = Band{Min: 1.2, Max: 1.8}
	SettlementBand   = Band{Min: 1.5, Max: 5.5}
	SeepageBand      = Band{Min: 3.0, Max: 15.0}
	VolumeChangeBand = Band{Min: -1.5, Max: 1.5}
)

const (
	// MediumUtilizationThreshold is the mean capacity utilization (percent)
	// above which the overall risk is raised to Medium.
	MediumUtilizationThreshold = 80.0

	// Live risk scores are drawn from [LiveScoreMin, LiveScoreMax).
	LiveScoreMin = 15
	LiveScoreMax = 85

	amberThreshold = 40
	redThreshold   = 70
)

// Display labels derived from a single stability sample.
const (
	LabelLow    = "LOW"
	LabelMedium = "MEDIUM"
	LabelHigh   = "HIGH"
)

// =============================================================================
// Engine
// =============================================================================

// Engine computes analysis results. It is safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for synthetic readings.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock sets the clock used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine seeded from the wall clock unless WithRand is
// given.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		seed := uint64(time.Now().UnixNano())
		e.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return e
}

// ComputeAnalysis aggregates the facility set into one AnalysisResult.
// An empty set fails with domain.ErrEmptyInput.
func (e *Engine) ComputeAnalysis(facilities []domain.Facility) (*domain.AnalysisResult, error) {
	const op = "risk.ComputeAnalysis"

	if len(facilities) == 0 {
		return nil, domain.Wrap(domain.ErrEmptyInput, domain.EINVALID, op, "No facilities to analyze")
	}

	var total float64
	for i := range facilities {
		total += facilities[i].CurrentVolume
	}

	e.mu.Lock()
	result := &domain.AnalysisResult{
		TotalVolume:         total / 1_000_000,
		VolumeChangePercent: VolumeChangeBand.draw(e.rng),
		StabilityFactor:     StabilityBand.draw(e.rng),
		SettlementRate:      SettlementBand.draw(e.rng),
		SeepageRate:         SeepageBand.draw(e.rng),
		OverallRisk:         ClassifyOverallRisk(facilities),
		ComputedAt:          e.now(),
	}
	e.mu.Unlock()

	if len(facilities) == 1 {
		result.FacilityID = facilities[0].ID
	}
	return result, nil
}

// ClassifyOverallRisk applies the aggregate precedence: any High/Critical or
// over-capacity facility makes the set High; otherwise a mean utilization
// above 80% makes it Medium; otherwise Low. An empty set is Low.
func ClassifyOverallRisk(facilities []domain.Facility) domain.RiskLevel {
	if len(facilities) == 0 {
		return domain.RiskLevelLow
	}

	var utilization float64
	for i := range facilities {
		f := &facilities[i]
		if f.RiskLevel.IsElevated() || f.IsOverCapacity() {
			return domain.RiskLevelHigh
		}
		utilization += f.CapacityUtilization()
	}

	if utilization/float64(len(facilities)) > MediumUtilizationThreshold {
		return domain.RiskLevelMedium
	}
	return domain.RiskLevelLow
}

// RiskDisplayLabel maps a single stability sample to the label shown on the
// dashboard. It is independent of ClassifyOverallRisk.
func RiskDisplayLabel(stability float64) string {
	switch {
	case stability > 1.4:
		return LabelLow
	case stability > 1.2:
		return LabelMedium
	default:
		return LabelHigh
	}
}

// BaselineAnalysis returns the fixed snapshot shown before the first
// analysis pass completes.
func (e *Engine) BaselineAnalysis() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		TotalVolume:         2.75,
		VolumeChangePercent: 0.2,
		StabilityFactor:     1.45,
		SettlementRate:      3.2,
		SeepageRate:         8.5,
		OverallRisk:         domain.RiskLevelLow,
		ComputedAt:          e.now(),
	}
}

// LiveReading draws a live risk score for the facility and derives its
// traffic-light level.
func (e *Engine) LiveReading(facilityID string) domain.LiveReading {
	e.mu.Lock()
	score := LiveScoreMin + e.rng.IntN(LiveScoreMax-LiveScoreMin)
	now := e.now()
	e.mu.Unlock()

	level := AlertForScore(score)
	return domain.LiveReading{
		FacilityID: facilityID,
		RiskScore:  score,
		AlertLevel: level,
		AlertColor: level.Color(),
		Timestamp:  now,
	}
}

// AlertForScore maps a live risk score to Green (<40), Amber (<70) or Red.
func AlertForScore(score int) domain.LiveAlertLevel {
	switch {
	case score < amberThreshold:
		return domain.LiveAlertGreen
	case score < redThreshold:
		return domain.LiveAlertAmber
	default:
		return domain.LiveAlertRed
	}
}

// MapLabels renders the map overlay text for a result. Stability is
// jittered by up to ±0.025 and volume by ±0.05 so the overlay visibly ticks
// between refreshes.
func (e *Engine) MapLabels(result *domain.AnalysisResult) domain.MapLabels {
	e.mu.Lock()
	stability := result.StabilityFactor + (e.rng.Float64()-0.5)*0.05
	volume := result.TotalVolume + (e.rng.Float64()-0.5)*0.1
	e.mu.Unlock()

	return domain.MapLabels{
		Stability: fmt.Sprintf("%.2f", stability),
		Volume:    fmt.Sprintf("%.2fM m³", volume),
		RiskLabel: RiskDisplayLabel(stability),
	}
}
