// =============================================================================
// NEM12 Converter - Parse Errors
// =============================================================================
//
// Every parse failure aborts the whole file. The error types below carry the
// position of the failure so that an operator can find the offending line:
//
//   *TokenizeError  - malformed line structure, unterminated quoted field
//   *DecodeError    - wrong field count, unparseable number or date,
//                     unknown record indicator
//   *AssemblyError  - record out of order or orphaned
//
// Use errors.As to classify.
//
// =============================================================================

package nem12

import (
	"fmt"
	"strings"
)

// Position locates a token or record in the input.
type Position struct {
	// Offset is the 0-based byte offset.
	Offset int

	// Line is the 1-based line number.
	Line int

	// Column is the 1-based byte column within the line.
	Column int
}

// String renders the position as "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// TokenizeError reports input the tokenizer cannot split into tokens.
type TokenizeError struct {
	Pos     Position
	Message string
}

// Error implements the error interface.
func (e *TokenizeError) Error() string {
	return fmt.Sprintf("tokenize error at %s (offset %d): %s", e.Pos, e.Pos.Offset, e.Message)
}

// DecodeError reports a record whose fields do not match its template.
type DecodeError struct {
	Pos       Position
	Indicator RecordIndicator

	// Field is the 1-based field index after the record indicator, or 0 when
	// the error concerns the record as a whole.
	Field int

	// Value is the offending raw field value, if any.
	Value   string
	Message string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "decode error at %s (offset %d)", e.Pos, e.Pos.Offset)
	if e.Indicator != recordIndicatorUnknown {
		fmt.Fprintf(&b, ", record %d", e.Indicator)
	}
	if e.Field > 0 {
		fmt.Fprintf(&b, ", field %d", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.Value != "" {
		fmt.Fprintf(&b, " (value: %q)", e.Value)
	}
	return b.String()
}

// AssemblyError reports a well-formed record in a position the grammar does
// not allow.
type AssemblyError struct {
	Pos       Position
	Indicator RecordIndicator
	Message   string
}

// Error implements the error interface.
func (e *AssemblyError) Error() string {
	if e.Indicator == recordIndicatorUnknown {
		return fmt.Sprintf("assembly error at %s: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("assembly error at %s, record %d: %s", e.Pos, e.Indicator, e.Message)
}
