package contour

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	Mc "github.com/maroda/contour/chart"
	"github.com/xuri/excelize/v2"
)

var ErrNoSheet = errors.New("spreadsheet has no such sheet")

// ReadXLSXSeries reads one column of a spreadsheet as a series.
// An empty sheet means the first one, an empty column means A.
// A non-numeric first cell is taken as a header; blank cells are skipped.
func ReadXLSXSeries(path, sheet, column string) ([]float64, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		slog.Error("Could not open spreadsheet", slog.String("file", path), slog.Any("Error", err))
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("Close Error", slog.Any("Error", err))
		}
	}()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: %w", path, ErrNoSheet)
		}
		sheet = sheets[0]
	}
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, fmt.Errorf("%s %q: %w", path, sheet, ErrNoSheet)
	}

	if column == "" {
		column = "A"
	}
	colNum, err := excelize.ColumnNameToNumber(strings.ToUpper(column))
	if err != nil {
		return nil, Mc.NewInputError("column", column, Mc.ErrInvalidValue)
	}

	cols, err := f.GetCols(sheet)
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0)
	if colNum > len(cols) {
		return values, nil
	}

	for row, cell := range cols[colNum-1] {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		v, err := parseFinite("cell", cell)
		if err != nil {
			if row == 0 {
				continue
			}
			name, _ := excelize.CoordinatesToCellName(colNum, row+1)
			return nil, Mc.NewInputError(name, cell, Mc.ErrInvalidValue)
		}
		values = append(values, v)
	}

	return values, nil
}

// WriteXLSXSeries saves a series as a single column with a header
func WriteXLSXSeries(path, sheet, header string, values []float64) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	}

	if err := f.SetCellValue(sheet, "A1", header); err != nil {
		return err
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		slog.Error("Could not save spreadsheet", slog.String("file", path), slog.Any("Error", err))
		return err
	}
	return nil
}
