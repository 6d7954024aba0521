package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// =============================================================================
// PDF Generator
// =============================================================================

// PDFReportGenerator renders the narrative report onto A4 pages. Section
// headings are set in bold; everything else is body text.
type PDFReportGenerator struct {
	margin     float64
	lineHeight float64
}

// NewPDFReportGenerator creates a generator with 15mm margins.
func NewPDFReportGenerator() *PDFReportGenerator {
	return &PDFReportGenerator{margin: 15, lineHeight: 5}
}

func (g *PDFReportGenerator) Format() domain.ExportFormat { return domain.ExportFormatPDF }
func (g *PDFReportGenerator) FileName() string { return "safety_report.pdf" }

func (g *PDFReportGenerator) Generate(ctx context.Context, snap *domain.Snapshot, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("TSF Safety Monitoring Report", true)
	pdf.SetCreator("tsfwatch", true)
	pdf.SetCreationDate(snap.GeneratedAt)
	pdf.SetMargins(g.margin, g.margin, g.margin)
	pdf.SetAutoPageBreak(true, 20)

	// Core fonts are cp1252; the report contains ° and ³.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	lines := strings.Split(strings.TrimRight(NarrativeReport(snap), "\n"), "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			pdf.SetFont("Arial", "B", 16)
			pdf.SetTextColor(30, 58, 95)
			pdf.CellFormat(0, 10, tr(line), "", 1, "L", false, 0, "")
		case isRule(line):
			// Underlines become a drawn rule under the previous heading.
			y := pdf.GetY()
			pdf.SetDrawColor(229, 231, 235)
			pdf.Line(g.margin, y, 210-g.margin, y)
			pdf.Ln(2)
		case i+1 < len(lines) && isRule(lines[i+1]):
			pdf.Ln(2)
			pdf.SetFont("Arial", "B", 12)
			pdf.SetTextColor(30, 58, 95)
			pdf.CellFormat(0, 7, tr(line), "", 1, "L", false, 0, "")
		default:
			pdf.SetFont("Arial", "", 10)
			pdf.SetTextColor(31, 41, 55)
			pdf.CellFormat(0, g.lineHeight, tr(line), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("pdf generation error: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("pdf output error: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// isRule reports whether line is a heading underline such as "-----".
func isRule(line string) bool {
	if line == "" {
		return false
	}
	return strings.Trim(line, "=") == "" || strings.Trim(line, "-") == ""
}
