package export

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

const (
	kmlDocumentName        = "Mukubaico TSF Facilities"
	kmlDocumentDescription = "Tailings Storage Facilities in Zambia Copperbelt"
)

// KMLGenerator writes a KML 2.2 document with one placemark per facility.
type KMLGenerator struct{}

func (KMLGenerator) Format() domain.ExportFormat { return domain.ExportFormatKML }
func (KMLGenerator) FileName() string { return KMLFileName }

func (KMLGenerator) Generate(ctx context.Context, snap *domain.Snapshot, w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	io.WriteString(cw, xml.Header)
	io.WriteString(cw, "<kml xmlns=\"http://www.opengis.net/kml/2.2\">\n")
	io.WriteString(cw, "  <Document>\n")
	fmt.Fprintf(cw, "    <name>%s</name>\n", escapeXML(kmlDocumentName))
	fmt.Fprintf(cw, "    <description>%s</description>\n", escapeXML(kmlDocumentDescription))

	for i := range snap.Facilities {
		if err := ctx.Err(); err != nil {
			return cw.n, err
		}
		f := &snap.Facilities[i]
		io.WriteString(cw, "    <Placemark>\n")
		fmt.Fprintf(cw, "      <name>%s</name>\n", escapeXML(f.Name))
		fmt.Fprintf(cw, "      <description>%s</description>\n", escapeXML(PlacemarkDescription(f)))
		io.WriteString(cw, "      <Point>\n")
		fmt.Fprintf(cw, "        <coordinates>%s,%s,%s</coordinates>\n",
			formatFloat(f.Position.Longitude),
			formatFloat(f.Position.Latitude),
			formatFloat(f.Position.Elevation),
		)
		io.WriteString(cw, "      </Point>\n")
		io.WriteString(cw, "    </Placemark>\n")
	}

	io.WriteString(cw, "  </Document>\n")
	io.WriteString(cw, "</kml>\n")

	return cw.n, cw.err
}

// PlacemarkDescription is the text shown in a facility's KML balloon.
// Example: "Capacity: 45,000,000 m³, Status: Active, Risk: Medium".
func PlacemarkDescription(f *domain.Facility) string {
	return fmt.Sprintf("Capacity: %s m³, Status: %s, Risk: %s", groupedInt(f.Capacity), f.Status, f.RiskLevel)
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
