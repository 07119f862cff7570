package units

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "canonical unit maps to itself", input: "kWh", want: "kWh"},
		{name: "larger unit", input: "MWh", want: "kWh"},
		{name: "smaller unit", input: "Wh", want: "kWh"},
		{name: "upper case", input: "KWH", want: "kWh"},
		{name: "lower case", input: "mvarh", want: "kVArh"},
		{name: "voltage family", input: "kV", want: "V"},
		{name: "power factor", input: "PF", want: "pf"},
	}

	table := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.CanonicalName(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertToCanonical(t *testing.T) {
	tests := []struct {
		name  string
		unit  string
		value string
		want  string
	}{
		{name: "watt hours to kilowatt hours", unit: "Wh", value: "1000", want: "1"},
		{name: "smaller unit lowers magnitude", unit: "Wh", value: "123.45", want: "0.12345"},
		{name: "larger unit raises magnitude", unit: "MWh", value: "123.45", want: "123450"},
		{name: "canonical unit unchanged", unit: "kWh", value: "123.45", want: "123.45"},
	}

	table := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.ConvertToCanonical(tt.unit, decimal.RequireFromString(tt.value))
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestUnknownUnit(t *testing.T) {
	table := Default()

	_, err := table.CanonicalName("xxx")
	require.Error(t, err)
	var unknown *UnknownUnitError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "xxx", unknown.Name)
	assert.True(t, errors.Is(err, ErrUnknownUnit))

	_, err = table.ConvertToCanonical("", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrUnknownUnit)

	_, err = table.IsAdditive("xyz")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestIsAdditive(t *testing.T) {
	table := Default()

	additive, err := table.IsAdditive("kWh")
	require.NoError(t, err)
	assert.True(t, additive)

	additive, err = table.IsAdditive("kW")
	require.NoError(t, err)
	assert.False(t, additive)

	additive, err = table.IsAdditive("kvah")
	require.NoError(t, err)
	assert.True(t, additive)
}

func TestResolve(t *testing.T) {
	got, err := Default().Resolve("KWH")
	require.NoError(t, err)
	assert.Equal(t, "kWh", got)

	got, err = Default().Resolve("mvar")
	require.NoError(t, err)
	assert.Equal(t, "MVAr", got)
}

func TestExtend(t *testing.T) {
	extended, err := Default().Extend([]Unit{
		{Name: "GWh", Canonical: "kWh", Multiplier: decimal.NewFromInt(1_000_000), Additive: true},
	})
	require.NoError(t, err)

	got, err := extended.ConvertToCanonical("gwh", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, "500000", got.String())

	// The default table is left untouched.
	_, err = Default().Lookup("GWh")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestNewTableRejectsIncompleteUnits(t *testing.T) {
	_, err := NewTable([]Unit{{Name: "", Canonical: "kWh"}})
	assert.Error(t, err)

	_, err = NewTable([]Unit{{Name: "GWh"}})
	assert.Error(t, err)
}

func TestLoadWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"uom", "description", "canonical", "multiplier", "additive"},
		{"GWh", "gigawatt hour", "kWh", "1000000", "yes"},
		{},
		{"Hz", "hertz", "Hz", "1", "no"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	list, err := LoadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "GWh", list[0].Name)
	assert.Equal(t, "kWh", list[0].Canonical)
	assert.True(t, list[0].Additive)
	assert.Equal(t, "1000000", list[0].Multiplier.String())

	assert.Equal(t, "Hz", list[1].Name)
	assert.False(t, list[1].Additive)
}

func TestParseRowRejectsBadMultiplier(t *testing.T) {
	_, err := parseRow([]string{"GWh", "", "kWh", "lots", "yes"}, DefaultWorkbookColumns())
	assert.Error(t, err)

	_, err = parseRow([]string{"GWh", "", "kWh", "1", "maybe"}, DefaultWorkbookColumns())
	assert.Error(t, err)
}
