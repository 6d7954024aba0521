// Package timeseries writes analysis results to InfluxDB so the dashboard
// history outlives the process.
package timeseries

import (
	"context"
	"errors"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// AnalysisMeasurement is the measurement every analysis point is written to.
const AnalysisMeasurement = "tsf_analysis"

// PointWriter is the subset of api.WriteAPIBlocking used here.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Config holds InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Validate checks every field is set.
func (c Config) Validate() error {
	if c.URL == "" || c.Token == "" || c.Org == "" || c.Bucket == "" {
		return errors.New("influx url, token, org and bucket are required")
	}
	return nil
}

// Writer records analysis results.
type Writer struct {
	writer PointWriter
	client influxdb2.Client
	logger *slog.Logger
}

// New connects a Writer to InfluxDB with blocking writes.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Writer{
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		client: client,
		logger: logger.With("component", "timeseries"),
	}, nil
}

// NewWithWriter wraps an existing PointWriter.
func NewWithWriter(w PointWriter, logger *slog.Logger) *Writer {
	return &Writer{writer: w, logger: logger.With("component", "timeseries")}
}

// RecordAnalysis writes one point per result, tagged by overall risk and,
// for single-facility results, facility ID.
func (w *Writer) RecordAnalysis(ctx context.Context, result *domain.AnalysisResult) error {
	if result == nil {
		return errors.New("nil analysis result")
	}
	return w.writer.WritePoint(ctx, AnalysisPoint(result))
}

// AnalysisPoint builds the point for a result.
func AnalysisPoint(result *domain.AnalysisResult) *write.Point {
	p := influxdb2.NewPointWithMeasurement(AnalysisMeasurement).
		AddTag("overall_risk", string(result.OverallRisk)).
		AddField("total_volume", result.TotalVolume).
		AddField("volume_change_percent", result.VolumeChangePercent).
		AddField("stability_factor", result.StabilityFactor).
		AddField("settlement_rate", result.SettlementRate).
		AddField("seepage_rate", result.SeepageRate).
		SetTime(result.ComputedAt)
	if result.FacilityID != "" {
		p.AddTag("facility_id", result.FacilityID)
	}
	return p
}

// Close releases the underlying client.
func (w *Writer) Close() {
	if w.client != nil {
		w.client.Close()
	}
}
