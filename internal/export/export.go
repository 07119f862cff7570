// =============================================================================
// NEM12 Converter - Export Module
// =============================================================================
//
// This module derives tabular rows from a parsed NEM12 document. It never
// mutates the document.
//
// SHAPES:
//   wide - one row per interval day with 48 canonical half-hour buckets.
//          Only additive units (energy and similar flow quantities) are
//          eligible; readings are converted to the canonical unit one by one
//          and then summed into their bucket.
//   long - one row per native sub-interval with start/end timestamps, the
//          resolved quality triple and the raw (unconverted) reading.
//
// BLOCK ERRORS:
//   A block that cannot be exported in the requested shape (unknown or
//   non-additive unit, interval length that does not divide 30 minutes,
//   inconsistent quality events) is skipped and reported as a *BlockError.
//   Other blocks are unaffected.
//
// =============================================================================

package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/nem12-converter/internal/nem12"
	"github.com/ginjaninja78/nem12-converter/internal/units"
)

// =============================================================================
// SHAPES AND FORMATS
// =============================================================================

// Shape selects the row layout.
type Shape string

// Supported shapes.
const (
	ShapeWide Shape = "wide"
	ShapeLong Shape = "long"
)

// ParseShape converts a case-insensitive name into a Shape.
func ParseShape(name string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(name))) {
	case ShapeWide:
		return ShapeWide, nil
	case ShapeLong:
		return ShapeLong, nil
	default:
		return "", fmt.Errorf("unknown output shape %q (expected wide or long)", name)
	}
}

// Format selects the output encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat converts a case-insensitive name into a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected csv, json or xlsx)", name)
	}
}

// Extension returns the file extension for the format, without a dot.
func (f Format) Extension() string {
	return string(f)
}

// =============================================================================
// ERRORS
// =============================================================================

// Reasons a block is skipped.
var (
	// ErrNonAdditiveUnit marks a block whose unit cannot be summed into
	// half-hour buckets.
	ErrNonAdditiveUnit = errors.New("unit is not additive")

	// ErrIncompatibleIntervalLength marks a block whose interval length does
	// not divide 30 minutes.
	ErrIncompatibleIntervalLength = errors.New("interval length does not divide 30 minutes")
)

// BlockError reports an NMI block skipped during export.
type BlockError struct {
	NMI       string
	NMISuffix string
	UOM       string
	Shape     Shape
	Err       error
}

// Error implements the error interface.
func (e *BlockError) Error() string {
	return fmt.Sprintf("skipped %s export of NMI %s suffix %s (%s): %v", e.Shape, e.NMI, e.NMISuffix, e.UOM, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BlockError) Unwrap() error {
	return e.Err
}

func blockError(block *nem12.NMIBlock, shape Shape, err error) *BlockError {
	return &BlockError{
		NMI:       block.NMI,
		NMISuffix: block.NMISuffix,
		UOM:       block.UOM,
		Shape:     shape,
		Err:       err,
	}
}

// =============================================================================
// FILTER
// =============================================================================

// Filter selects NMI blocks by exact match. Empty fields match everything.
type Filter struct {
	NMI       string
	NMISuffix string
}

// Matches reports whether block passes the filter.
func (f Filter) Matches(block *nem12.NMIBlock) bool {
	if f.NMI != "" && block.NMI != f.NMI {
		return false
	}
	if f.NMISuffix != "" && block.NMISuffix != f.NMISuffix {
		return false
	}
	return true
}

// Blocks returns the blocks of doc that pass the filter, in file order.
func (f Filter) Blocks(doc *nem12.Document) []*nem12.NMIBlock {
	var out []*nem12.NMIBlock
	for _, block := range doc.NMIBlocks {
		if f.Matches(block) {
			out = append(out, block)
		}
	}
	return out
}

// =============================================================================
// EXPORTER
// =============================================================================

// Exporter turns documents into rows.
type Exporter struct {
	units   *units.Table
	filter  Filter
	resolve ResolveOptions
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithUnits sets the unit table. The built-in table is used otherwise.
func WithUnits(table *units.Table) Option {
	return func(e *Exporter) {
		if table != nil {
			e.units = table
		}
	}
}

// WithFilter restricts export to matching blocks.
func WithFilter(f Filter) Option {
	return func(e *Exporter) {
		e.filter = f
	}
}

// WithAllowOverlappingEvents lets the first of several overlapping 400
// records win instead of skipping the block.
func WithAllowOverlappingEvents(allow bool) Option {
	return func(e *Exporter) {
		e.resolve.AllowOverlappingEvents = allow
	}
}

// New creates an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{units: units.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wide builds wide rows for every filtered block. Skipped blocks are
// reported as *BlockError values; they never stop other blocks.
func (e *Exporter) Wide(doc *nem12.Document) ([]WideRow, []error) {
	var (
		rows []WideRow
		errs []error
	)
	for _, block := range e.filter.Blocks(doc) {
		blockRows, err := WideBlock(block, e.units, e.resolve)
		if err != nil {
			errs = append(errs, blockError(block, ShapeWide, err))
			continue
		}
		rows = append(rows, blockRows...)
	}
	return rows, errs
}

// Long builds long rows for every filtered block.
func (e *Exporter) Long(doc *nem12.Document) ([]LongRow, []error) {
	var (
		rows []LongRow
		errs []error
	)
	for _, block := range e.filter.Blocks(doc) {
		blockRows, err := LongBlock(block, e.resolve)
		if err != nil {
			errs = append(errs, blockError(block, ShapeLong, err))
			continue
		}
		rows = append(rows, blockRows...)
	}
	return rows, errs
}
