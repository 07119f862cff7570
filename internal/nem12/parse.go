// =============================================================================
// NEM12 Converter - Parser Entry Point
// =============================================================================
//
// Parse runs the three parse stages over one in-memory input:
//
//   text -> Tokenizer -> Decoder -> Assembler -> *Document
//
// The first error from any stage aborts the parse; no partial document is
// returned. Parse holds no state between calls and is safe to call from
// several goroutines at once.
//
// =============================================================================

package nem12

import (
	"fmt"
	"io"
	"time"
)

// DefaultUTCOffset is the offset NEM12 timestamps are assumed to carry. The
// format has no zone field and AEMO files are written in AEST.
const DefaultUTCOffset = 10 * time.Hour

// DefaultLocation returns the fixed UTC+10 zone used when no other location is
// configured.
func DefaultLocation() *time.Location {
	return FixedOffset(DefaultUTCOffset)
}

// FixedOffset returns a fixed zone for offset, named like "UTC+10:00".
func FixedOffset(offset time.Duration) *time.Location {
	sign := '+'
	d := offset
	if d < 0 {
		sign = '-'
		d = -d
	}
	minutes := int(d / time.Minute)
	name := fmt.Sprintf("UTC%c%02d:%02d", sign, minutes/60, minutes%60)
	return time.FixedZone(name, int(offset/time.Second))
}

// Options controls parsing.
type Options struct {
	// Location is the zone every date and timestamp is interpreted in.
	Location *time.Location
}

// Option customises Options.
type Option func(*Options)

// WithLocation interprets dates in loc.
func WithLocation(loc *time.Location) Option {
	return func(o *Options) {
		if loc != nil {
			o.Location = loc
		}
	}
}

// WithUTCOffset interprets dates in a fixed zone offset from UTC.
func WithUTCOffset(offset time.Duration) Option {
	return func(o *Options) {
		o.Location = FixedOffset(offset)
	}
}

// Parse parses a complete NEM12 file.
//
// PARAMETERS:
//   - input: the whole file text
//   - opts:  parse options; dates default to UTC+10
//
// RETURNS:
//   - *Document: the assembled tree
//   - error: *TokenizeError, *DecodeError or *AssemblyError
func Parse(input string, opts ...Option) (*Document, error) {
	options := Options{Location: DefaultLocation()}
	for _, opt := range opts {
		opt(&options)
	}

	reader := newRecordReader(NewTokenizer(input))
	decoder := NewDecoder(options.Location)
	assembler := NewAssembler()

	for {
		raw, end, ok, err := reader.read()
		if err != nil {
			return nil, err
		}
		if !ok {
			return assembler.Finish(end)
		}

		rec, err := decoder.Decode(raw)
		if err != nil {
			return nil, err
		}
		if err := assembler.Add(rec); err != nil {
			return nil, err
		}
	}
}

// ParseReader reads r to the end and parses the result.
func ParseReader(r io.Reader, opts ...Option) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read NEM12 input: %w", err)
	}
	return Parse(string(data), opts...)
}
