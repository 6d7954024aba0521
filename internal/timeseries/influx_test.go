package timeseries

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

type mockWriter struct {
	points []*write.Point
	err    error
}

func (m *mockWriter) WritePoint(_ context.Context, point ...*write.Point) error {
	m.points = append(m.points, point...)
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordAnalysis(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	mock := &mockWriter{}
	w := NewWithWriter(mock, discardLogger())

	err := w.RecordAnalysis(context.Background(), &domain.AnalysisResult{
		FacilityID:      "TSF-KONKOLA-001",
		TotalVolume:     38.5,
		StabilityFactor: 1.45,
		SeepageRate:     8.5,
		OverallRisk:     domain.RiskLevelMedium,
		ComputedAt:      at,
	})
	require.NoError(t, err)
	require.Len(t, mock.points, 1)

	p := mock.points[0]
	assert.Equal(t, AnalysisMeasurement, p.Name())
	assert.Equal(t, at, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"overall_risk": "Medium", "facility_id": "TSF-KONKOLA-001"}, tags)

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 1.45, fields["stability_factor"])
	assert.Equal(t, 38.5, fields["total_volume"])
	assert.Len(t, fields, 5)
}

func TestRecordAnalysis_Errors(t *testing.T) {
	w := NewWithWriter(&mockWriter{err: errors.New("unauthorized")}, discardLogger())
	assert.Error(t, w.RecordAnalysis(context.Background(), &domain.AnalysisResult{}))
	assert.Error(t, w.RecordAnalysis(context.Background(), nil))
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{URL: "http://influx:8086"}.Validate())
	assert.NoError(t, Config{URL: "http://influx:8086", Token: "t", Org: "o", Bucket: "b"}.Validate())

	_, err := New(Config{}, discardLogger())
	assert.Error(t, err)
}
