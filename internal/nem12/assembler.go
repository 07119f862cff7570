// =============================================================================
// NEM12 Converter - Document Assembler
// =============================================================================
//
// The assembler folds decoded records into a Document, enforcing the record
// grammar:
//
//   file     := [100] block+ [900]      (900 present iff 100 present)
//   block    := 200 day*
//   day      := 300 (400 | 500)*
//
// RULES:
//   - 100 may only appear as the very first record.
//   - 300 attaches to the most recent 200.
//   - 400 and 500 attach to the most recent 300 of the current block, in any
//     interleaving.
//   - Nothing may follow 900.
//   - A file must contain at least one 200 record.
//
// =============================================================================

package nem12

// Assembler builds a Document from records in file order.
type Assembler struct {
	doc   *Document
	block *NMIBlock
	day   *IntervalDay

	records int
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{doc: &Document{}}
}

// Add attaches one record to the document under construction.
func (a *Assembler) Add(rec Record) error {
	first := a.records == 0
	a.records++

	if a.doc.Footer != nil {
		return a.fail(rec, "record after end of data (900)")
	}

	switch v := rec.Value.(type) {
	case *Header:
		if !first {
			return a.fail(rec, "header (100) must be the first record")
		}
		a.doc.Header = v

	case *NMIBlock:
		a.doc.NMIBlocks = append(a.doc.NMIBlocks, v)
		a.block = v
		a.day = nil

	case *IntervalDay:
		if a.block == nil {
			return a.fail(rec, "interval data (300) without a preceding 200 record")
		}
		a.block.IntervalDays = append(a.block.IntervalDays, v)
		a.day = v

	case *IntervalEvent:
		if a.day == nil {
			return a.fail(rec, "interval event (400) without a preceding 300 record")
		}
		a.day.IntervalEvents = append(a.day.IntervalEvents, v)

	case *TransactionDetail:
		if a.day == nil {
			return a.fail(rec, "B2B details (500) without a preceding 300 record")
		}
		a.day.TransactionDetails = append(a.day.TransactionDetails, v)

	case *Footer:
		if a.doc.Header == nil {
			return a.fail(rec, "end of data (900) without a header (100)")
		}
		a.doc.Footer = v

	default:
		return a.fail(rec, "unsupported record")
	}

	return nil
}

// Finish checks the end-of-file rules and returns the document. end is the
// position of the end of input, used in error reports.
func (a *Assembler) Finish(end Position) (*Document, error) {
	if len(a.doc.NMIBlocks) == 0 {
		return nil, &AssemblyError{Pos: end, Message: "file contains no NMI data details (200) records"}
	}
	if a.doc.Header != nil && a.doc.Footer == nil {
		return nil, &AssemblyError{Pos: end, Message: "file has a header (100) but no end of data (900) record"}
	}
	return a.doc, nil
}

func (a *Assembler) fail(rec Record, msg string) error {
	return &AssemblyError{Pos: rec.Pos, Indicator: rec.Indicator, Message: msg}
}
