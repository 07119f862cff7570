package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ginjaninja78/nem12-converter/internal/nem12"
)

// WriteDocumentJSON writes the document tree as indented JSON. Dates are
// ISO-8601 strings carrying the parse offset.
func WriteDocumentJSON(w io.Writer, doc *nem12.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document as JSON: %w", err)
	}
	return nil
}

// FilterDocument returns a shallow copy of doc holding only the blocks that
// pass f. doc itself is not modified.
func FilterDocument(doc *nem12.Document, f Filter) *nem12.Document {
	return &nem12.Document{
		Header:    doc.Header,
		NMIBlocks: f.Blocks(doc),
		Footer:    doc.Footer,
	}
}
