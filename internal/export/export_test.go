package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/registry"
	"github.com/DukeRupert/tsfwatch/internal/risk"
)

var testNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSnapshot() *domain.Snapshot {
	reg := registry.New(testNow, discardLogger())
	return &domain.Snapshot{
		Facilities:  reg.ListFacilities(),
		Stations:    reg.ListMonitoringStations(),
		Standards:   risk.Standards(),
		GeneratedAt: testNow,
	}
}

func generate(t *testing.T, g Generator, snap *domain.Snapshot) string {
	t.Helper()
	var buf bytes.Buffer
	n, err := g.Generate(context.Background(), snap, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	return buf.String()
}

// =============================================================================
// Determinism
// =============================================================================

func TestGenerators_AreDeterministic(t *testing.T) {
	generators := []Generator{
		GeoJSONGenerator{},
		CSVGenerator{},
		KMLGenerator{},
		TextReportGenerator{},
		MetadataGenerator{Files: []string{GeoJSONFileName, CSVFileName}},
	}

	for _, g := range generators {
		t.Run(string(g.Format()), func(t *testing.T) {
			first := generate(t, g, testSnapshot())
			second := generate(t, g, testSnapshot())
			assert.Equal(t, first, second)
		})
	}
}

// =============================================================================
// GeoJSON
// =============================================================================

func TestGeoJSON_RoundTrip(t *testing.T) {
	snap := testSnapshot()
	out := generate(t, GeoJSONGenerator{}, snap)

	var fc FeatureCollection
	require.NoError(t, json.Unmarshal([]byte(out), &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, len(snap.Facilities))

	for i, f := range snap.Facilities {
		got := fc.Features[i]
		assert.Equal(t, "Point", got.Geometry.Type)
		assert.Equal(t, [2]float64{f.Position.Longitude, f.Position.Latitude}, got.Geometry.Coordinates)
		assert.Equal(t, f.ID, got.Properties.ID)
		assert.Equal(t, f.Name, got.Properties.Name)
		assert.Equal(t, f.Capacity, got.Properties.Capacity)
		assert.Equal(t, f.RiskLevel, got.Properties.RiskLevel)
		assert.Equal(t, f.LastInspection.Format(DateLayout), got.Properties.LastInspection)
		assert.InDelta(t, f.CapacityUtilization(), got.Properties.CapacityUtilization, 1e-9)
	}
}

func TestGeoJSON_IsIndented(t *testing.T) {
	out := generate(t, GeoJSONGenerator{}, testSnapshot())
	assert.True(t, strings.HasPrefix(out, "{\n  \"type\": \"FeatureCollection\""))
}

func TestGeoJSON_EmptySnapshot(t *testing.T) {
	out := generate(t, GeoJSONGenerator{}, &domain.Snapshot{GeneratedAt: testNow})
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, out)
}

// =============================================================================
// CSV
// =============================================================================

func TestCSV_Rows(t *testing.T) {
	out := generate(t, CSVGenerator{}, testSnapshot())
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	require.Len(t, lines, 5)
	assert.Equal(t, CSVHeader, lines[0])
	assert.Equal(t,
		`ENV-MON-001,Kafue River Monitoring Point,WaterQuality,-12.45,27.6,Online,Normal,2025-06-01 09:15,"Conductivity:450.20;DissolvedOxygen:8.10;Temperature:24.30;Turbidity:12.50;pH:7.20"`,
		lines[1])
	assert.Equal(t,
		`ENV-MON-003,Seismic Monitoring - Mufulira,Seismic,-12.56,28.25,Online,Normal,2025-06-01 09:00,"Depth:5.20;Duration:12.50;Frequency:2.10;Magnitude:0.80"`,
		lines[3])
}

func TestCSV_QuotesAwkwardNames(t *testing.T) {
	snap := &domain.Snapshot{
		Stations: []domain.MonitoringStation{{
			ID:          "ENV-MON-009",
			Name:        `Kafue, "North" Bank`,
			Type:        domain.StationTypeWaterQuality,
			Parameters:  map[string]float64{},
			LastReading: testNow,
			Status:      domain.StationStatusOffline,
			AlertLevel:  domain.AlertLevelWarning,
		}},
	}

	out := generate(t, CSVGenerator{}, snap)
	assert.Contains(t, out, `ENV-MON-009,"Kafue, ""North"" Bank",WaterQuality,0,0,Offline,Warning,2025-06-01 09:30,""`)
}

func TestCSV_ParsesAsRFC4180(t *testing.T) {
	snap := testSnapshot()
	snap.Stations[0].Name = "Kafue, \"North\"\nBank"

	records, err := csv.NewReader(strings.NewReader(generate(t, CSVGenerator{}, snap))).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, len(snap.Stations)+1)
	assert.Equal(t, strings.Split(CSVHeader, ","), records[0])
	for i, rec := range records[1:] {
		require.Len(t, rec, 9)
		assert.Equal(t, snap.Stations[i].ID, rec[0])
		assert.Equal(t, snap.Stations[i].Name, rec[1])
		assert.Equal(t, ParameterSummary(&snap.Stations[i]), rec[8])
	}
}

func TestParameterSummary(t *testing.T) {
	s := &domain.MonitoringStation{Parameters: map[string]float64{"pH": 7.2, "Copper": 0.154}}
	assert.Equal(t, "Copper:0.15;pH:7.20", ParameterSummary(s))
	assert.Equal(t, "", ParameterSummary(&domain.MonitoringStation{}))
}

// =============================================================================
// KML
// =============================================================================

func TestKML_Document(t *testing.T) {
	out := generate(t, KMLGenerator{}, testSnapshot())

	assert.True(t, strings.HasPrefix(out, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<kml xmlns=\"http://www.opengis.net/kml/2.2\">\n"))
	assert.Contains(t, out, "    <name>Mukubaico TSF Facilities</name>\n")
	assert.Contains(t, out, "    <description>Tailings Storage Facilities in Zambia Copperbelt</description>\n")
	assert.Equal(t, 5, strings.Count(out, "<Placemark>"))

	assert.Contains(t, out,
		"    <Placemark>\n"+
			"      <name>Konkola Copper Mine TSF</name>\n"+
			"      <description>Capacity: 45,000,000 m³, Status: Active, Risk: Medium</description>\n"+
			"      <Point>\n"+
			"        <coordinates>27.6167,-12.4333,1280</coordinates>\n"+
			"      </Point>\n"+
			"    </Placemark>\n")
	assert.True(t, strings.HasSuffix(out, "  </Document>\n</kml>\n"))
}

func TestKML_EscapesNames(t *testing.T) {
	snap := &domain.Snapshot{Facilities: []domain.Facility{{Name: "A & B <TSF>", Status: domain.FacilityStatusActive}}}
	out := generate(t, KMLGenerator{}, snap)
	assert.Contains(t, out, "<name>A &amp; B &lt;TSF&gt;</name>")
}

func TestPlacemarkDescription(t *testing.T) {
	f := &domain.Facility{Capacity: 1234567.6, Status: domain.FacilityStatusInactive, RiskLevel: domain.RiskLevelHigh}
	assert.Equal(t, "Capacity: 1,234,568 m³, Status: Inactive, Risk: High", PlacemarkDescription(f))
}

// =============================================================================
// Narrative Report
// =============================================================================

func TestNarrativeReport(t *testing.T) {
	out := NarrativeReport(testSnapshot())

	for _, want := range []string{
		"MUKUBAICO TSF SAFETY MONITORING REPORT\n======================================\n",
		"Generated: 2025-06-01 09:30:00\n",
		"Report Period: 2025-05-02 to 2025-06-01\n",
		"EXECUTIVE SUMMARY\n-----------------\n",
		"Total TSF Facilities Monitored: 5\n",
		"Active Monitoring Stations: 4\n",
		"Overall System Status: Operational\n",
		"Facility: Konkola Copper Mine TSF\n" +
			"  Location: -12.4333°, 27.6167°\n" +
			"  Capacity Utilization: 85.6%\n" +
			"  Risk Level: Medium\n" +
			"  Last Inspection: 2025-05-25 (7 days ago)\n" +
			"  Compliance Status: ZEMA Compliant\n",
		"Station: Air Quality Station - Kitwe (AirQuality)\n" +
			"  Status: Online - Normal\n" +
			"  Last Reading: 2025-06-01 09:25\n" +
			"    CO: 1.20\n",
		"RECOMMENDATIONS\n---------------\n",
		"5. Ensure all monitoring stations remain operational\n",
	} {
		assert.Contains(t, out, want)
	}
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 10, PageCount(NarrativeReport(testSnapshot())))
	assert.Equal(t, 10, PageCount(""))
	assert.Equal(t, 12, PageCount(strings.Repeat("line\n", 600)))
}

// =============================================================================
// Metadata
// =============================================================================

func TestMetadata(t *testing.T) {
	g := MetadataGenerator{Files: []string{GeoJSONFileName, CSVFileName, KMLFileName, "safety_report.pdf", MetadataFileName}}
	out := generate(t, g, testSnapshot())

	assert.Contains(t, out, "Export Date: 2025-06-01 09:30:00\n")
	assert.Contains(t, out, "Coordinate System: WGS84 (EPSG:4326)\n")
	assert.Contains(t, out, "TSF Facilities: 5\nMonitoring Stations: 4\n")
	assert.True(t, strings.HasSuffix(out,
		"FILES INCLUDED:\n"+
			"- tsf_locations.geojson: TSF facility locations and attributes\n"+
			"- monitoring_stations.csv: Environmental monitoring station data\n"+
			"- tsf_facilities.kml: Google Earth compatible format\n"+
			"- safety_report.pdf: Safety monitoring report (PDF)\n"+
			"- export_metadata.txt: This metadata file\n"))
}

// =============================================================================
// PDF and XLSX
// =============================================================================

func TestPDFReport(t *testing.T) {
	out := generate(t, NewPDFReportGenerator(), testSnapshot())
	assert.True(t, strings.HasPrefix(out, "%PDF-"))
	assert.Contains(t, out, "%%EOF")
}

func TestXLSX_Workbook(t *testing.T) {
	snap := testSnapshot()
	out := generate(t, XLSXGenerator{}, snap)

	f, err := excelize.OpenReader(strings.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{StandardsSheet, FacilitiesSheet}, f.GetSheetList())

	header, err := f.GetCellValue(StandardsSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Standard", header)

	rows, err := f.GetRows(StandardsSheet)
	require.NoError(t, err)
	items := 0
	for _, s := range snap.Standards {
		items += len(s.Items)
	}
	assert.Len(t, rows, items+1)

	id, err := f.GetCellValue(FacilitiesSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "TSF-KONKOLA-001", id)

	facilityRows, err := f.GetRows(FacilitiesSheet)
	require.NoError(t, err)
	assert.Len(t, facilityRows, len(snap.Facilities)+1)
}

func TestGenerators_HonorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, g := range []Generator{GeoJSONGenerator{}, CSVGenerator{}, KMLGenerator{}, XLSXGenerator{}, NewPDFReportGenerator()} {
		_, err := g.Generate(ctx, testSnapshot(), io.Discard)
		assert.ErrorIs(t, err, context.Canceled, string(g.Format()))
	}
}
