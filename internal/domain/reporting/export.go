package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Consultations"

// ExportHeader is the first row of the consultation workbook.
var ExportHeader = []string{
	"Consultation ID",
	"Patient",
	"Status",
	"Chief Complaint",
	"Requested At",
	"Started At",
	"Completed At",
	"Neurologist",
	"tPA Status",
	"tPA Administered",
}

var exportColumnWidths = []float64{38, 24, 14, 40, 20, 20, 20, 24, 12, 16}

const exportTimeLayout = "2006-01-02 15:04"

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(exportTimeLayout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// BuildWorkbook renders rows as an XLSX workbook.
func BuildWorkbook(rows []ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, width := range exportColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.SetSheetRow(exportSheet, "A1", &ExportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(ExportHeader), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{
			r.ConsultationID.String(),
			r.PatientName,
			r.Status,
			r.ChiefComplaint,
			formatTime(&r.RequestedAt),
			formatTime(r.StartedAt),
			formatTime(r.CompletedAt),
			r.Neurologist,
			r.TPAStatus,
			yesNo(r.TPAAdministered),
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
