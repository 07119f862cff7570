package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// WriteWideXLSX writes wide rows to a single-sheet workbook named "wide".
// Bucket values are numeric cells; every other column is text.
func WriteWideXLSX(w io.Writer, rows []WideRow) error {
	return writeWorkbook(w, string(ShapeWide), WideHeader(), len(rows), func(i int) []interface{} {
		row := &rows[i]
		record := wideRecord(row)
		cells := make([]interface{}, len(record))
		fixed := len(wideFixedColumns)
		for j := 0; j < fixed; j++ {
			cells[j] = record[j]
		}
		cells[fixed-1] = row.OriginalIntervalLength
		for k, v := range row.Values {
			cells[fixed+k] = v.InexactFloat64()
		}
		return cells
	})
}

// WriteLongXLSX writes long rows to a single-sheet workbook named "long".
func WriteLongXLSX(w io.Writer, rows []LongRow) error {
	return writeWorkbook(w, string(ShapeLong), LongHeader(), len(rows), func(i int) []interface{} {
		row := &rows[i]
		record := longRecord(row)
		cells := make([]interface{}, len(record))
		for j, v := range record {
			cells[j] = v
		}
		cells[9] = row.IntervalLength
		if row.ReasonCode != nil {
			cells[11] = *row.ReasonCode
		}
		cells[len(cells)-1] = row.ReadValue.InexactFloat64()
		return cells
	})
}

// writeWorkbook streams a header row and n data rows into a new workbook.
func writeWorkbook(w io.Writer, sheet string, header []string, n int, row func(int) []interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet writer: %w", err)
	}

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row(i)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
