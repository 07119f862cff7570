// =============================================================================
// NEM12 Converter - Unit Table
// =============================================================================
//
// This package maps NEM12 unit-of-measure names to their canonical unit, the
// linear multiplier into that canonical unit, and whether readings in the unit
// may be summed across sub-intervals.
//
// LOOKUP RULES:
//   - Unit names are matched case-insensitively ("KWH", "kwh" and "kWh" are the
//     same unit).
//   - An unrecognised name is always reported as *UnknownUnitError. The table
//     never falls back to a default multiplier.
//
// ADDITIVE UNITS:
//   Flow quantities (energy, reactive energy, apparent energy) are additive.
//   Instantaneous quantities (power, voltage, current, power factor) are not.
//
// =============================================================================

package units

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNIT DEFINITIONS
// =============================================================================

// Unit describes a single unit of measure.
type Unit struct {
	// Name is the unit name as AEMO writes it (e.g. "kWh").
	Name string

	// Description is a human readable description (e.g. "kilowatt hour").
	Description string

	// Canonical is the unit every member of the family is converted to.
	Canonical string

	// Multiplier converts a value in this unit into the canonical unit.
	Multiplier decimal.Decimal

	// Additive reports whether values may be summed across sub-intervals.
	Additive bool
}

// ErrUnknownUnit matches every *UnknownUnitError via errors.Is.
var ErrUnknownUnit = errors.New("unknown unit of measure")

// UnknownUnitError is returned when a unit name is not in the table.
type UnknownUnitError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unknown unit of measure %q", e.Name)
}

// Is reports whether target is ErrUnknownUnit.
func (e *UnknownUnitError) Is(target error) bool {
	return target == ErrUnknownUnit
}

// =============================================================================
// TABLE
// =============================================================================

// Table is an immutable-after-construction unit lookup table, safe for
// concurrent readers.
type Table struct {
	// byUpper indexes units by upper-cased name.
	byUpper map[string]Unit
}

// NewTable builds a table from the given units. Later entries replace earlier
// entries with the same case-insensitive name.
func NewTable(list []Unit) (*Table, error) {
	t := &Table{byUpper: make(map[string]Unit, len(list))}
	for _, u := range list {
		if strings.TrimSpace(u.Name) == "" {
			return nil, fmt.Errorf("unit with empty name")
		}
		if u.Canonical == "" {
			return nil, fmt.Errorf("unit %q has no canonical unit", u.Name)
		}
		t.byUpper[strings.ToUpper(u.Name)] = u
	}
	return t, nil
}

// Default returns the built-in AEMO unit table.
func Default() *Table {
	return defaultTable
}

// Extend returns a new table containing t's units overlaid with extra.
func (t *Table) Extend(extra []Unit) (*Table, error) {
	merged := make([]Unit, 0, len(t.byUpper)+len(extra))
	merged = append(merged, t.Units()...)
	merged = append(merged, extra...)
	return NewTable(merged)
}

// Lookup returns the unit registered under name, ignoring case.
func (t *Table) Lookup(name string) (Unit, error) {
	u, ok := t.byUpper[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Unit{}, &UnknownUnitError{Name: name}
	}
	return u, nil
}

// Resolve maps a unit name in any letter case to its AEMO spelling.
// Example: "KWH" -> "kWh".
func (t *Table) Resolve(name string) (string, error) {
	u, err := t.Lookup(name)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

// CanonicalName returns the canonical unit for name. Example: "MWh" -> "kWh".
func (t *Table) CanonicalName(name string) (string, error) {
	u, err := t.Lookup(name)
	if err != nil {
		return "", err
	}
	return u.Canonical, nil
}

// ConvertToCanonical converts value expressed in unit name into the canonical
// unit. Example: ("Wh", 1000) -> 1.
func (t *Table) ConvertToCanonical(name string, value decimal.Decimal) (decimal.Decimal, error) {
	u, err := t.Lookup(name)
	if err != nil {
		return decimal.Zero, err
	}
	return value.Mul(u.Multiplier), nil
}

// IsAdditive reports whether the unit's values may be summed.
func (t *Table) IsAdditive(name string) (bool, error) {
	u, err := t.Lookup(name)
	if err != nil {
		return false, err
	}
	return u.Additive, nil
}

// Units returns every unit sorted by canonical family and then by multiplier.
func (t *Table) Units() []Unit {
	list := make([]Unit, 0, len(t.byUpper))
	for _, u := range t.byUpper {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Canonical != list[j].Canonical {
			return list[i].Canonical < list[j].Canonical
		}
		return list[i].Multiplier.LessThan(list[j].Multiplier)
	})
	return list
}

// =============================================================================
// BUILT-IN TABLE
// =============================================================================

var (
	thousand   = decimal.NewFromInt(1000)
	one        = decimal.NewFromInt(1)
	oneThousth = decimal.New(1, -3)
)

var builtin = []Unit{
	{Name: "MWh", Description: "megawatt hour", Canonical: "kWh", Multiplier: thousand, Additive: true},
	{Name: "kWh", Description: "kilowatt hour", Canonical: "kWh", Multiplier: one, Additive: true},
	{Name: "Wh", Description: "watt hour", Canonical: "kWh", Multiplier: oneThousth, Additive: true},

	{Name: "MVArh", Description: "megavolt ampere reactive hour", Canonical: "kVArh", Multiplier: thousand, Additive: true},
	{Name: "kVArh", Description: "kilovolt ampere reactive hour", Canonical: "kVArh", Multiplier: one, Additive: true},
	{Name: "VArh", Description: "volt ampere reactive hour", Canonical: "kVArh", Multiplier: oneThousth, Additive: true},

	{Name: "MVAr", Description: "megavolt ampere reactive", Canonical: "kVAr", Multiplier: thousand},
	{Name: "kVAr", Description: "kilovolt ampere reactive", Canonical: "kVAr", Multiplier: one},
	{Name: "VAr", Description: "volt ampere reactive", Canonical: "kVAr", Multiplier: oneThousth},

	{Name: "MW", Description: "megawatt", Canonical: "kW", Multiplier: thousand},
	{Name: "kW", Description: "kilowatt", Canonical: "kW", Multiplier: one},
	{Name: "W", Description: "watt", Canonical: "kW", Multiplier: oneThousth},

	{Name: "MVAh", Description: "megavolt ampere hour", Canonical: "kVAh", Multiplier: thousand, Additive: true},
	{Name: "kVAh", Description: "kilovolt ampere hour", Canonical: "kVAh", Multiplier: one, Additive: true},
	{Name: "VAh", Description: "volt ampere hour", Canonical: "kVAh", Multiplier: oneThousth, Additive: true},

	{Name: "MVA", Description: "megavolt ampere", Canonical: "kVA", Multiplier: thousand},
	{Name: "kVA", Description: "kilovolt ampere", Canonical: "kVA", Multiplier: one},
	{Name: "VA", Description: "volt ampere", Canonical: "kVA", Multiplier: oneThousth},

	{Name: "kV", Description: "kilovolt", Canonical: "V", Multiplier: thousand},
	{Name: "V", Description: "volt", Canonical: "V", Multiplier: one},

	{Name: "kA", Description: "kiloampere", Canonical: "A", Multiplier: thousand},
	{Name: "A", Description: "ampere", Canonical: "A", Multiplier: one},

	{Name: "pf", Description: "power factor", Canonical: "pf", Multiplier: one},
}

var defaultTable = mustTable(builtin)

func mustTable(list []Unit) *Table {
	t, err := NewTable(list)
	if err != nil {
		panic(err)
	}
	return t
}
