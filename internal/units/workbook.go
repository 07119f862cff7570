// =============================================================================
// NEM12 Converter - Unit Table Workbook
// =============================================================================
//
// Sites that meter in units outside the AEMO set can extend the unit table
// with an XLSX workbook. The first sheet is read; each data row describes one
// unit:
//
//   | A: uom | B: description | C: canonical | D: multiplier | E: additive |
//   |--------|----------------|--------------|---------------|-------------|
//   | GWh    | gigawatt hour  | kWh          | 1000000       | yes         |
//
// Row 1 is a header row and is skipped. Blank rows are ignored.
//
// =============================================================================

package units

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// WorkbookColumns defines which 0-based columns hold which unit attribute.
type WorkbookColumns struct {
	Name        int
	Description int
	Canonical   int
	Multiplier  int
	Additive    int

	// DataStartRow is the first data row (0-based).
	DataStartRow int
}

// DefaultWorkbookColumns returns the A..E layout documented above.
func DefaultWorkbookColumns() WorkbookColumns {
	return WorkbookColumns{
		Name:         0, // Column A
		Description:  1, // Column B
		Canonical:    2, // Column C
		Multiplier:   3, // Column D
		Additive:     4, // Column E
		DataStartRow: 1, // Row 2
	}
}

// LoadWorkbook reads unit definitions from an XLSX workbook.
//
// PARAMETERS:
//   - path: The path to the XLSX workbook.
//
// RETURNS:
//   - The units defined in the first sheet, in row order.
//   - An error if the workbook cannot be opened or a row is malformed.
func LoadWorkbook(path string) ([]Unit, error) {
	return LoadWorkbookWithColumns(path, DefaultWorkbookColumns())
}

// LoadWorkbookWithColumns is LoadWorkbook with a custom column layout.
func LoadWorkbookWithColumns(path string, columns WorkbookColumns) ([]Unit, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open unit workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("unit workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var list []Unit
	for i := columns.DataStartRow; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}

		u, err := parseRow(row, columns)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", i+1, err)
		}
		list = append(list, u)
	}

	return list, nil
}

// parseRow extracts a Unit from a single workbook row.
func parseRow(row []string, columns WorkbookColumns) (Unit, error) {
	getCell := func(index int) string {
		if index < len(row) {
			return strings.TrimSpace(row[index])
		}
		return ""
	}

	u := Unit{
		Name:        getCell(columns.Name),
		Description: getCell(columns.Description),
		Canonical:   getCell(columns.Canonical),
	}
	if u.Name == "" {
		return Unit{}, fmt.Errorf("missing unit name")
	}
	if u.Canonical == "" {
		return Unit{}, fmt.Errorf("unit %q: missing canonical unit", u.Name)
	}

	multiplier, err := decimal.NewFromString(getCell(columns.Multiplier))
	if err != nil {
		return Unit{}, fmt.Errorf("unit %q: invalid multiplier: %w", u.Name, err)
	}
	u.Multiplier = multiplier

	additive, err := parseAdditive(getCell(columns.Additive))
	if err != nil {
		return Unit{}, fmt.Errorf("unit %q: %w", u.Name, err)
	}
	u.Additive = additive

	return u, nil
}

// parseAdditive accepts the yes/no spellings spreadsheet authors tend to use.
func parseAdditive(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y", "true", "1", "additive":
		return true, nil
	case "", "no", "n", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid additive flag %q", value)
	}
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
