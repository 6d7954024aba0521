package risk

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestEngine(seed uint64) *Engine {
	return NewEngine(
		WithRand(rand.New(rand.NewPCG(seed, seed+1))),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func facility(id string, risk domain.RiskLevel, capacity, volume float64) domain.Facility {
	return domain.Facility{ID: id, RiskLevel: risk, Capacity: capacity, CurrentVolume: volume}
}

func TestClassifyOverallRisk(t *testing.T) {
	tests := []struct {
		name       string
		facilities []domain.Facility
		want       domain.RiskLevel
	}{
		{
			name: "four low plus one high is high",
			facilities: []domain.Facility{
				facility("a", domain.RiskLevelLow, 100, 10),
				facility("b", domain.RiskLevelLow, 100, 10),
				facility("c", domain.RiskLevelLow, 100, 10),
				facility("d", domain.RiskLevelLow, 100, 10),
				facility("e", domain.RiskLevelHigh, 100, 10),
			},
			want: domain.RiskLevelHigh,
		},
		{
			name: "critical dominates",
			facilities: []domain.Facility{
				facility("a", domain.RiskLevelCritical, 100, 1),
			},
			want: domain.RiskLevelHigh,
		},
		{
			name: "over capacity dominates even when low risk",
			facilities: []domain.Facility{
				facility("a", domain.RiskLevelLow, 100, 101),
				facility("b", domain.RiskLevelLow, 100, 5),
			},
			want: domain.RiskLevelHigh,
		},
		{
			name: "mean utilization above 80 is medium",
			facilities: []domain.Facility{
				facility("a", domain.RiskLevelLow, 100, 85),
				facility("b", domain.RiskLevelMedium, 100, 82),
				facility("c", domain.RiskLevelLow, 100, 90),
			},
			want: domain.RiskLevelMedium,
		},
		{
			name: "mean utilization exactly 80 is low",
			facilities: []domain.Facility{
				facility("a", domain.RiskLevelLow, 100, 80),
			},
			want: domain.RiskLevelLow,
		},
		{
			name: "medium facilities with low utilization stay low",
			facilities: []domain.Facility{
				facility("a", domain.RiskLevelMedium, 100, 40),
			},
			want: domain.RiskLevelLow,
		},
		{
			name:       "empty set",
			facilities: nil,
			want:       domain.RiskLevelLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyOverallRisk(tt.facilities))
		})
	}
}

func TestEngine_ComputeAnalysis_Bands(t *testing.T) {
	facilities := []domain.Facility{
		facility("TSF-KONKOLA-001", domain.RiskLevelMedium, 45_000_000, 38_500_000),
		facility("TSF-NCHANGA-002", domain.RiskLevelLow, 52_000_000, 41_200_000),
	}

	for seed := uint64(0); seed < 200; seed++ {
		result, err := newTestEngine(seed).ComputeAnalysis(facilities)
		require.NoError(t, err)

		assert.InDelta(t, 79.7, result.TotalVolume, 1e-9)
		assert.True(t, StabilityBand.Contains(result.StabilityFactor), "stability %v", result.StabilityFactor)
		assert.True(t, SettlementBand.Contains(result.SettlementRate), "settlement %v", result.SettlementRate)
		assert.True(t, SeepageBand.Contains(result.SeepageRate), "seepage %v", result.SeepageRate)
		assert.True(t, VolumeChangeBand.Contains(result.VolumeChangePercent), "volume change %v", result.VolumeChangePercent)
		assert.Equal(t, fixedNow, result.ComputedAt)
		assert.Empty(t, result.FacilityID)
		assert.True(t, result.Succeeded())
	}
}

func TestEngine_ComputeAnalysis_SingleFacilityReference(t *testing.T) {
	result, err := newTestEngine(1).ComputeAnalysis([]domain.Facility{
		facility("TSF-KITWE-004", domain.RiskLevelMedium, 28_000_000, 22_800_000),
	})
	require.NoError(t, err)
	assert.Equal(t, "TSF-KITWE-004", result.FacilityID)
}

func TestEngine_ComputeAnalysis_Empty(t *testing.T) {
	result, err := newTestEngine(1).ComputeAnalysis(nil)

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyInput))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestEngine_SeededIsDeterministic(t *testing.T) {
	facilities := []domain.Facility{facility("a", domain.RiskLevelLow, 10, 5)}

	a, _ := newTestEngine(42).ComputeAnalysis(facilities)
	b, _ := newTestEngine(42).ComputeAnalysis(facilities)
	assert.Equal(t, a, b)
}

func TestRiskDisplayLabel(t *testing.T) {
	tests := []struct {
		stability float64
		want      string
	}{
		{1.8, LabelLow},
		{1.41, LabelLow},
		{1.4, LabelMedium},
		{1.21, LabelMedium},
		{1.2, LabelHigh},
		{0.9, LabelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RiskDisplayLabel(tt.stability))
		})
	}
}

func TestEngine_BaselineAnalysis(t *testing.T) {
	b := newTestEngine(1).BaselineAnalysis()

	assert.Equal(t, 2.75, b.TotalVolume)
	assert.Equal(t, 0.2, b.VolumeChangePercent)
	assert.Equal(t, 1.45, b.StabilityFactor)
	assert.Equal(t, 3.2, b.SettlementRate)
	assert.Equal(t, 8.5, b.SeepageRate)
	assert.Equal(t, domain.RiskLevelLow, b.OverallRisk)
}

func TestAlertForScore(t *testing.T) {
	tests := []struct {
		score int
		want  domain.LiveAlertLevel
	}{
		{15, domain.LiveAlertGreen},
		{39, domain.LiveAlertGreen},
		{40, domain.LiveAlertAmber},
		{69, domain.LiveAlertAmber},
		{70, domain.LiveAlertRed},
		{84, domain.LiveAlertRed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AlertForScore(tt.score), "score %d", tt.score)
	}
}

func TestEngine_LiveReading(t *testing.T) {
	e := newTestEngine(7)
	for i := 0; i < 100; i++ {
		r := e.LiveReading("TSF-01")
		assert.GreaterOrEqual(t, r.RiskScore, LiveScoreMin)
		assert.Less(t, r.RiskScore, LiveScoreMax)
		assert.Equal(t, AlertForScore(r.RiskScore), r.AlertLevel)
		assert.Equal(t, r.AlertLevel.Color(), r.AlertColor)
		assert.Equal(t, "TSF-01", r.FacilityID)
	}
}

func TestEngine_MapLabels(t *testing.T) {
	e := newTestEngine(3)
	labels := e.MapLabels(e.BaselineAnalysis())

	assert.Regexp(t, `^1\.4[2-8]$`, labels.Stability)
	assert.Regexp(t, `^2\.(7|8)\dM m³$`, labels.Volume)
	assert.Contains(t, []string{LabelLow, LabelMedium}, labels.RiskLabel)
}
