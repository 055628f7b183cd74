package audit

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"docsign/internal/model"
)

const sheetName = "Audit"

var workbookHeader = []any{
	"Time (UTC)", "Action", "IP address", "User agent", "Platform", "Language",
	"Timezone", "Screen", "Touch points", "Country", "City", "Extra",
}

// Workbook exports events as an XLSX file, one row per event in the given order.
func Workbook(events []model.AuditEvent) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &workbookHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, e := range events {
		var touch any
		if e.TouchPoints != nil {
			touch = *e.TouchPoints
		}
		row := []any{
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"), e.Action, e.IPAddress, e.UserAgent,
			e.Platform, e.Language, e.Timezone, e.Screen, touch, e.GeoCountry, e.GeoCity, string(e.Extra),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
