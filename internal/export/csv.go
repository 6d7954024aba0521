package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// CSVHeader is the first line of the station CSV.
const CSVHeader = "ID,Name,Type,Latitude,Longitude,Status,AlertLevel,LastReading,Parameters"

// CSVGenerator writes one row per monitoring station. The Parameters column
// is always quoted and holds "name:value" pairs joined by semicolons, sorted
// by name.
type CSVGenerator struct{}

func (CSVGenerator) Format() domain.ExportFormat { return domain.ExportFormatCSV }
func (CSVGenerator) FileName() string { return CSVFileName }

func (CSVGenerator) Generate(ctx context.Context, snap *domain.Snapshot, w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	fmt.Fprintln(cw, CSVHeader)
	for i := range snap.Stations {
		if err := ctx.Err(); err != nil {
			return cw.n, err
		}
		s := &snap.Stations[i]
		fmt.Fprintf(cw, "%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			csvField(s.ID),
			csvField(s.Name),
			s.Type,
			formatFloat(s.Position.Latitude),
			formatFloat(s.Position.Longitude),
			s.Status,
			s.AlertLevel,
			s.LastReading.Format(DateTimeLayout),
			quote(ParameterSummary(s)),
		)
	}

	return cw.n, cw.err
}

// ParameterSummary joins a station's readings as "name:value" with two
// decimals, sorted by name. Example: "Copper:0.15;pH:7.20".
func ParameterSummary(s *domain.MonitoringStation) string {
	names := s.SortedParameterNames()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%.2f", name, s.Parameters[name]))
	}
	return strings.Join(parts, ";")
}

// csvField quotes a value only when it contains a delimiter, quote or
// line break.
func csvField(v string) string {
	if strings.ContainsAny(v, ",\"\r\n") {
		return quote(v)
	}
	return v
}

func quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
