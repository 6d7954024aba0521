package refresh

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/events"
	"github.com/DukeRupert/tsfwatch/internal/metrics"
	"github.com/DukeRupert/tsfwatch/internal/registry"
	"github.com/DukeRupert/tsfwatch/internal/risk"
)

// AnalysisRecorder persists analysis results outside the process, e.g. to a
// time-series database. Failures are logged and do not fail the refresh.
type AnalysisRecorder interface {
	RecordAnalysis(ctx context.Context, result *domain.AnalysisResult) error
}

// =============================================================================
// Dashboard
// =============================================================================

// Dashboard owns the latest analysis result and refreshes it on demand.
type Dashboard struct {
	registry  *registry.Registry
	engine    *risk.Engine
	publisher events.Publisher
	recorder  AnalysisRecorder
	logger    *slog.Logger
	now       func() time.Time

	latest atomic.Pointer[domain.AnalysisResult]
}

// DashboardOption configures a Dashboard.
type DashboardOption func(*Dashboard)

// WithPublisher sets where analysis.updated and station.status go.
func WithPublisher(p events.Publisher) DashboardOption {
	return func(d *Dashboard) { d.publisher = p }
}

// WithRecorder sets an AnalysisRecorder for every computed result.
func WithRecorder(r AnalysisRecorder) DashboardOption {
	return func(d *Dashboard) { d.recorder = r }
}

// WithClock overrides time.Now for snapshots.
func WithClock(now func() time.Time) DashboardOption {
	return func(d *Dashboard) { d.now = now }
}

// NewDashboard creates a Dashboard. Until the first Refresh, Latest returns
// the engine's baseline analysis.
func NewDashboard(reg *registry.Registry, engine *risk.Engine, logger *slog.Logger, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{
		registry:  reg,
		engine:    engine,
		publisher: events.Nop{},
		logger:    logger.With("component", "dashboard"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type stationStatusPayload struct {
	Lines []string `json:"lines"`
}

// Refresh computes a new analysis over the registry and swaps it in.
func (d *Dashboard) Refresh(ctx context.Context) error {
	const op = "Dashboard.Refresh"

	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := d.engine.ComputeAnalysis(d.registry.ListFacilities())
	if err != nil {
		return domain.Wrap(err, domain.ErrorCode(err), op, "Failed to compute analysis")
	}
	d.latest.Store(result)
	metrics.AnalysisRecorded(result)

	if d.recorder != nil {
		if err := d.recorder.RecordAnalysis(ctx, result); err != nil {
			d.logger.Warn("failed to record analysis", "error", err)
		}
	}

	events.PublishJSON(ctx, d.publisher, d.logger, events.TypeAnalysisUpdated, result)
	events.PublishJSON(ctx, d.publisher, d.logger, events.TypeStationStatus, stationStatusPayload{
		Lines: d.registry.StationStatusLines(),
	})

	d.logger.Debug("analysis refreshed",
		"overall_risk", result.OverallRisk,
		"stability", result.StabilityFactor,
	)
	return nil
}

// Latest returns the most recent analysis, or the baseline before the first
// refresh. The returned value must not be modified.
func (d *Dashboard) Latest() *domain.AnalysisResult {
	if r := d.latest.Load(); r != nil {
		return r
	}
	return d.engine.BaselineAnalysis()
}

// Snapshot collects the current registry, compliance and analysis state for
// an export run.
func (d *Dashboard) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.Snapshot{
		Facilities:  d.registry.ListFacilities(),
		Stations:    d.registry.ListMonitoringStations(),
		Standards:   risk.Standards(),
		Analysis:    d.Latest(),
		GeneratedAt: d.now().UTC(),
	}, nil
}
