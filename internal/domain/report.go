// Package domain contains core business types and interfaces.
//
// This file defines the export format types and the data bundle shared by
// the export generators.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Export Format
// =============================================================================

// ExportFormat represents the output format of an export file.
type ExportFormat string

const (
	ExportFormatGeoJSON  ExportFormat = "geojson"
	ExportFormatCSV      ExportFormat = "csv"
	ExportFormatKML      ExportFormat = "kml"
	ExportFormatText     ExportFormat = "txt"
	ExportFormatPDF      ExportFormat = "pdf"
	ExportFormatXLSX     ExportFormat = "xlsx"
	ExportFormatMetadata ExportFormat = "metadata"
)

// String returns the string representation of the format.
func (f ExportFormat) String() string {
	return string(f)
}

// IsValid returns true if the format is a recognized value.
func (f ExportFormat) IsValid() bool {
	switch f {
	case ExportFormatGeoJSON, ExportFormatCSV, ExportFormatKML, ExportFormatText,
		ExportFormatPDF, ExportFormatXLSX, ExportFormatMetadata:
		return true
	}
	return false
}

// ContentType returns the MIME content type for the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatGeoJSON:
		return "application/geo+json"
	case ExportFormatCSV:
		return "text/csv; charset=utf-8"
	case ExportFormatKML:
		return "application/vnd.google-earth.kml+xml"
	case ExportFormatText, ExportFormatMetadata:
		return "text/plain; charset=utf-8"
	case ExportFormatPDF:
		return "application/pdf"
	case ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// FileExtension returns the file extension for the format.
func (f ExportFormat) FileExtension() string {
	if f == ExportFormatMetadata {
		return "txt"
	}
	return string(f)
}

// =============================================================================
// Export Data
// =============================================================================

// Snapshot is the input to every export generator. GeneratedAt is the only
// time-dependent field; generators never read the wall clock.
type Snapshot struct {
	Facilities  []Facility
	Stations    []MonitoringStation
	Standards   []ComplianceStandard
	Analysis    *AnalysisResult
	GeneratedAt time.Time
}

// ExportFile describes one file written during an export run.
type ExportFile struct {
	Name   string       `json:"name"`
	Key    string       `json:"key"`
	Format ExportFormat `json:"format"`
	Size   int64        `json:"size"`
}

// ExportResult summarizes an export run.
type ExportResult struct {
	RunID     uuid.UUID      `json:"runId"`
	Folder    string         `json:"folder"`
	Files     []ExportFile   `json:"files"`
	Formats   []ExportFormat `json:"formats"`
	TotalSize int64          `json:"totalSize"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FileCount returns the number of files written.
func (r *ExportResult) FileCount() int {
	return len(r.Files)
}

// ReportResult summarizes a generated narrative report.
type ReportResult struct {
	Name      string       `json:"name"`
	Files     []ExportFile `json:"files"`
	PageCount int          `json:"pageCount"`
	CreatedAt time.Time    `json:"createdAt"`
}
