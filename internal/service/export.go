package service

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ag3dash/server/internal/data/vobs"
)

const exportSheet = "samples"

var exportHeaders = []interface{}{
	"sample_id", "sample_set", "country", "admin1_name", "location",
	"taxon", "year", "month", "latitude", "longitude",
}

// WriteXLSX writes records as a single-sheet workbook. Missing coordinates
// are left blank.
func WriteXLSX(w io.Writer, records []vobs.SampleRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, bold); err != nil {
		return err
	}

	for i, r := range records {
		row := []interface{}{
			r.SampleID, r.SampleSet, r.Country, r.Admin1Name, r.Location,
			r.Taxon, r.Year, r.Month, nil, nil,
		}
		if r.HasCoordinates() {
			row[8], row[9] = r.Latitude, r.Longitude
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
