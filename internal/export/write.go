package export

import (
	"fmt"
	"io"

	"github.com/ginjaninja78/nem12-converter/internal/nem12"
)

// Summary describes one Write call.
type Summary struct {
	Format Format
	Shape  Shape

	// Blocks is the number of NMI blocks that passed the filter.
	Blocks int

	// Rows is the number of rows written; for JSON it is the number of
	// blocks written.
	Rows int

	// Skipped holds one *BlockError per block left out of the output.
	Skipped []error
}

// Write exports doc in the given format and shape.
//
// JSON is a structural dump of the filtered document and ignores shape. CSV
// and XLSX write rows of the requested shape.
//
// RETURNS:
//   - Summary: counts and skipped blocks, also on success
//   - error: only for a failed write or an unsupported format/shape
func (e *Exporter) Write(w io.Writer, doc *nem12.Document, format Format, shape Shape) (Summary, error) {
	summary := Summary{Format: format, Shape: shape}
	summary.Blocks = len(e.filter.Blocks(doc))

	if format == FormatJSON {
		filtered := FilterDocument(doc, e.filter)
		summary.Rows = len(filtered.NMIBlocks)
		return summary, WriteDocumentJSON(w, filtered)
	}

	switch shape {
	case ShapeWide:
		rows, skipped := e.Wide(doc)
		summary.Rows, summary.Skipped = len(rows), skipped
		switch format {
		case FormatCSV:
			return summary, WriteWideCSV(w, rows)
		case FormatXLSX:
			return summary, WriteWideXLSX(w, rows)
		}
	case ShapeLong:
		rows, skipped := e.Long(doc)
		summary.Rows, summary.Skipped = len(rows), skipped
		switch format {
		case FormatCSV:
			return summary, WriteLongCSV(w, rows)
		case FormatXLSX:
			return summary, WriteLongXLSX(w, rows)
		}
	default:
		return summary, fmt.Errorf("unsupported output shape %q", shape)
	}

	return summary, fmt.Errorf("unsupported output format %q", format)
}
