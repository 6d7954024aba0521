package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// Sheet names in the compliance workbook.
const (
	StandardsSheet  = "Standards"
	FacilitiesSheet = "Facilities"
)

// XLSXGenerator writes a two-sheet workbook: one row per compliance item on
// Standards, one row per facility on Facilities.
type XLSXGenerator struct{}

func (XLSXGenerator) Format() domain.ExportFormat { return domain.ExportFormatXLSX }
func (XLSXGenerator) FileName() string { return XLSXFileName }

func (XLSXGenerator) Generate(ctx context.Context, snap *domain.Snapshot, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StandardsSheet); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(FacilitiesSheet); err != nil {
		return 0, fmt.Errorf("create sheet: %w", err)
	}

	standards := [][]any{{"Standard", "Compliance %", "Item", "Status", "Description", "Value", "Unit"}}
	for _, s := range snap.Standards {
		for _, item := range s.Items {
			standards = append(standards, []any{
				s.Name, s.Percentage, item.Name, string(item.Status), item.Description, item.Value, item.Unit,
			})
		}
	}
	if err := writeRows(f, StandardsSheet, standards); err != nil {
		return 0, err
	}

	facilities := [][]any{{"ID", "Name", "Status", "Risk Level", "Capacity (m³)", "Current Volume (m³)", "Utilization %", "Last Inspection", "Compliance"}}
	for i := range snap.Facilities {
		fac := &snap.Facilities[i]
		facilities = append(facilities, []any{
			fac.ID, fac.Name, string(fac.Status), string(fac.RiskLevel), fac.Capacity, fac.CurrentVolume,
			fac.CapacityUtilization(), fac.LastInspection.Format(DateLayout), fac.ComplianceStatus,
		})
	}
	if err := writeRows(f, FacilitiesSheet, facilities); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	if err := f.Write(cw); err != nil {
		return cw.n, fmt.Errorf("write workbook: %w", err)
	}
	return cw.n, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
