package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// ReportPeriodDays is the look-back window printed in the report header.
const ReportPeriodDays = 30

// Recommendations closes every narrative report.
var Recommendations = []string{
	"Continue regular monitoring of all TSF facilities",
	"Maintain compliance with ZEMA regulations",
	"Schedule inspections for facilities overdue",
	"Monitor capacity utilization trends",
	"Ensure all monitoring stations remain operational",
}

// =============================================================================
// Narrative Report
// =============================================================================

// TextReportGenerator writes the plain-text safety report.
type TextReportGenerator struct{}

func (TextReportGenerator) Format() domain.ExportFormat { return domain.ExportFormatText }
func (TextReportGenerator) FileName() string { return "safety_report.txt" }

func (TextReportGenerator) Generate(ctx context.Context, snap *domain.Snapshot, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, NarrativeReport(snap))
	return int64(n), err
}

// NarrativeReport renders the safety report for snap.
func NarrativeReport(snap *domain.Snapshot) string {
	var b strings.Builder
	at := snap.GeneratedAt

	heading(&b, "MUKUBAICO TSF SAFETY MONITORING REPORT", '=')
	fmt.Fprintf(&b, "Generated: %s\n", at.Format(StampLayout))
	fmt.Fprintf(&b, "Report Period: %s to %s\n",
		at.AddDate(0, 0, -ReportPeriodDays).Format(DateLayout), at.Format(DateLayout))
	b.WriteString("\n")

	heading(&b, "EXECUTIVE SUMMARY", '-')
	fmt.Fprintf(&b, "Total TSF Facilities Monitored: %d\n", len(snap.Facilities))
	fmt.Fprintf(&b, "Active Monitoring Stations: %d\n", len(snap.Stations))
	b.WriteString("Overall System Status: Operational\n")
	b.WriteString("\n")

	heading(&b, "TSF FACILITY STATUS", '-')
	for i := range snap.Facilities {
		f := &snap.Facilities[i]
		fmt.Fprintf(&b, "Facility: %s\n", f.Name)
		fmt.Fprintf(&b, "  Location: %.4f°, %.4f°\n", f.Position.Latitude, f.Position.Longitude)
		fmt.Fprintf(&b, "  Capacity Utilization: %.1f%%\n", f.CapacityUtilization())
		fmt.Fprintf(&b, "  Risk Level: %s\n", f.RiskLevel)
		fmt.Fprintf(&b, "  Last Inspection: %s (%d days ago)\n",
			f.LastInspection.Format(DateLayout), f.DaysSinceInspection(at))
		fmt.Fprintf(&b, "  Compliance Status: %s\n", f.ComplianceStatus)
		b.WriteString("\n")
	}

	heading(&b, "ENVIRONMENTAL MONITORING", '-')
	for i := range snap.Stations {
		s := &snap.Stations[i]
		fmt.Fprintf(&b, "Station: %s (%s)\n", s.Name, s.Type)
		fmt.Fprintf(&b, "  Status: %s - %s\n", s.Status, s.AlertLevel)
		fmt.Fprintf(&b, "  Last Reading: %s\n", s.LastReading.Format(DateTimeLayout))
		for _, name := range s.SortedParameterNames() {
			fmt.Fprintf(&b, "    %s: %.2f\n", name, s.Parameters[name])
		}
		b.WriteString("\n")
	}

	heading(&b, "RECOMMENDATIONS", '-')
	for i, rec := range Recommendations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
	}

	return b.String()
}

// PageCount estimates printed pages for a report at fifty lines a page,
// never fewer than ten.
func PageCount(report string) int {
	return max(10, len(strings.Split(report, "\n"))/50)
}

func heading(b *strings.Builder, title string, underline byte) {
	b.WriteString(title)
	b.WriteString("\n")
	b.Write(bytes.Repeat([]byte{underline}, len(title)))
	b.WriteString("\n")
}

// =============================================================================
// Export Metadata
// =============================================================================

// fileDescriptions documents each file listed in export_metadata.txt.
var fileDescriptions = map[string]string{
	GeoJSONFileName:  "TSF facility locations and attributes",
	CSVFileName:      "Environmental monitoring station data",
	KMLFileName:      "Google Earth compatible format",
	XLSXFileName:     "Compliance standards and facility summary workbook",
	MetadataFileName: "This metadata file",
}

// MetadataGenerator describes an export run. Files lists the file names in
// the run, in order; the metadata file itself is always listed last.
type MetadataGenerator struct {
	Files []string
}

func (MetadataGenerator) Format() domain.ExportFormat { return domain.ExportFormatMetadata }
func (MetadataGenerator) FileName() string { return MetadataFileName }

func (g MetadataGenerator) Generate(ctx context.Context, snap *domain.Snapshot, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var b strings.Builder
	heading(&b, "TSF MAP DATA EXPORT METADATA", '=')
	fmt.Fprintf(&b, "Export Date: %s\n", snap.GeneratedAt.Format(StampLayout))
	b.WriteString("Data Source: Mukubaico TSF Dashboard\n")
	b.WriteString("Coordinate System: WGS84 (EPSG:4326)\n")
	fmt.Fprintf(&b, "TSF Facilities: %d\n", len(snap.Facilities))
	fmt.Fprintf(&b, "Monitoring Stations: %d\n", len(snap.Stations))
	b.WriteString("\n")
	b.WriteString("FILES INCLUDED:\n")

	for _, name := range g.Files {
		if name == MetadataFileName {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, describeFile(name))
	}
	fmt.Fprintf(&b, "- %s: %s\n", MetadataFileName, fileDescriptions[MetadataFileName])

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func describeFile(name string) string {
	if d, ok := fileDescriptions[name]; ok {
		return d
	}
	switch {
	case strings.HasSuffix(name, ".pdf"):
		return "Safety monitoring report (PDF)"
	case strings.HasSuffix(name, ".txt"):
		return "Safety monitoring report (text)"
	}
	return "Export file"
}
