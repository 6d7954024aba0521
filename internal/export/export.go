// Package export serializes facility and station data into interchange
// formats (GeoJSON, CSV, KML, XLSX) and a narrative safety report (text and
// PDF).
//
// Every Generator is a pure function of its Snapshot: identical input yields
// identical output. The only time a generator prints is Snapshot.GeneratedAt.
package export

import (
	"context"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// =============================================================================
// Generator Interface
// =============================================================================

// Generator defines the interface for export generators.
type Generator interface {
	// Generate writes the export to w and returns the number of bytes written.
	Generate(ctx context.Context, snap *domain.Snapshot, w io.Writer) (int64, error)

	// Format returns the output format of this generator.
	Format() domain.ExportFormat

	// FileName returns the file name the export is stored under.
	FileName() string
}

// File names inside an export folder.
const (
	GeoJSONFileName  = "tsf_locations.geojson"
	CSVFileName      = "monitoring_stations.csv"
	KMLFileName      = "tsf_facilities.kml"
	XLSXFileName     = "compliance_summary.xlsx"
	MetadataFileName = "export_metadata.txt"
)

// DateLayout and DateTimeLayout are the layouts used across every export.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
	StampLayout    = "2006-01-02 15:04:05"
)

// =============================================================================
// Helpers
// =============================================================================

// countingWriter tracks how many bytes have passed through to w.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

// WriteString lets fmt.Fprint* and io.WriteString skip a conversion.
func (c *countingWriter) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// formatFloat prints the shortest decimal that round-trips, e.g. 27.6167
// or 1280.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var numberPrinter = message.NewPrinter(language.English)

// groupedInt prints v rounded to a whole number with thousands separators,
// e.g. 45,000,000.
func groupedInt(v float64) string {
	return numberPrinter.Sprintf("%d", int64(v+0.5))
}
