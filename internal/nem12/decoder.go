// =============================================================================
// NEM12 Converter - Record Decoder
// =============================================================================
//
// The decoder turns a run of tokens (one record marker plus its fields) into
// one typed record. Every record type has a fixed field template except 300,
// whose number of reading fields is 1440 / intervalLength, where the interval
// length comes from the 200 record that opened the current NMI block.
//
// FIELD TEMPLATES (fields counted after the record indicator):
//   100: VersionHeader, DateTime, FromParticipant, ToParticipant          = 4
//   200: NMI, NMIConfiguration, RegisterID, NMISuffix,
//        MDMDataStreamIdentifier, MeterSerialNumber, UOM,
//        IntervalLength, NextScheduledReadDate                           = 9
//        (the trailing NextScheduledReadDate may be omitted entirely)
//   300: IntervalDate, N readings, QualityMethod, ReasonCode,
//        ReasonDescription, UpdateDateTime, MSATSLoadDateTime            = N+5
//        (the trailing MSATSLoadDateTime may be omitted entirely)
//   400: StartInterval, EndInterval, QualityMethod, ReasonCode,
//        ReasonDescription                                               = 5
//   500: TransCode, RetServiceOrder, ReadDateTime, IndexRead              = 4
//   900: (none)                                                          = 0
//
// DATES:
//   yyyyMMdd        interval dates and the next scheduled read date
//   yyyyMMddHHmmss  sub-record timestamps
//   yyyyMMddHHmm    also accepted for the 100 record, which AEMO writes to
//                   the minute
//
// Optional fields decode to nil when empty. Empty readings are an error.
//
// =============================================================================

package nem12

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Layouts for the literal NEM12 date formats.
const (
	dateLayout            = "20060102"
	timestampLayout       = "20060102150405"
	headerTimestampLayout = "200601021504"
)

// Number of fields after the indicator for the fixed-arity records.
const (
	headerFieldCount        = 4
	nmiFieldCount           = 9
	intervalEventFieldCount = 5
	b2bFieldCount           = 4

	// intervalDayFixedFields counts the 300 fields that are not readings.
	intervalDayFixedFields = 5
)

// =============================================================================
// RAW RECORDS
// =============================================================================

// rawRecord is a record marker together with the field tokens that follow it.
type rawRecord struct {
	Indicator RecordIndicator
	Pos       Position
	Fields    []Token
}

// recordReader groups a token stream into raw records.
type recordReader struct {
	tokens  *Tokenizer
	pending *Token
}

func newRecordReader(t *Tokenizer) *recordReader {
	return &recordReader{tokens: t}
}

func (r *recordReader) next() (Token, error) {
	if r.pending != nil {
		tok := *r.pending
		r.pending = nil
		return tok, nil
	}
	return r.tokens.Next()
}

// read returns the next raw record, or ok=false at the end of input.
func (r *recordReader) read() (rec rawRecord, endPos Position, ok bool, err error) {
	tok, err := r.next()
	if err != nil {
		return rawRecord{}, Position{}, false, err
	}

	switch {
	case tok.Kind == TokenEndOfInput:
		return rawRecord{}, tok.Pos, false, nil
	case tok.IsField():
		return rawRecord{}, Position{}, false, unknownIndicator(tok)
	case tok.Kind != TokenRecordMarker:
		return rawRecord{}, Position{}, false, &DecodeError{Pos: tok.Pos, Message: "expected a record indicator"}
	}

	rec = rawRecord{Indicator: tok.Indicator, Pos: tok.Pos}
	for {
		tok, err := r.next()
		if err != nil {
			return rawRecord{}, Position{}, false, err
		}

		switch tok.Kind {
		case TokenSeparator:
			field, err := r.next()
			if err != nil {
				return rawRecord{}, Position{}, false, err
			}
			rec.Fields = append(rec.Fields, field)
		case TokenRecordMarker, TokenEndOfInput:
			r.pending = &tok
			return rec, Position{}, true, nil
		default:
			// A field that does not follow a separator starts a new line
			// without a recognised record indicator.
			return rawRecord{}, Position{}, false, unknownIndicator(tok)
		}
	}
}

func unknownIndicator(tok Token) error {
	return &DecodeError{
		Pos:     tok.Pos,
		Value:   tok.Value,
		Message: "unknown or misplaced record indicator",
	}
}

// =============================================================================
// DECODED RECORDS
// =============================================================================

// Record is one decoded NEM12 line. Value holds one of *Header, *NMIBlock,
// *IntervalDay, *IntervalEvent, *TransactionDetail or *Footer.
type Record struct {
	Indicator RecordIndicator
	Pos       Position
	Value     any
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder decodes raw records. It carries the interval length of the most
// recent 200 record, which fixes the arity of the 300 records after it.
type Decoder struct {
	loc            *time.Location
	intervalLength int
}

// NewDecoder creates a decoder that interprets dates in loc.
func NewDecoder(loc *time.Location) *Decoder {
	return &Decoder{loc: loc}
}

// IntervalLength returns the interval length of the active NMI block, or 0
// before the first 200 record.
func (d *Decoder) IntervalLength() int {
	return d.intervalLength
}

// Decode decodes one raw record.
func (d *Decoder) Decode(rec rawRecord) (Record, error) {
	var (
		value any
		err   error
	)

	switch rec.Indicator {
	case RecordHeader:
		value, err = decodeHeader(rec, d.loc)
	case RecordNMIDataDetails:
		var block *NMIBlock
		block, err = decodeNMIBlock(rec, d.loc)
		if err == nil {
			d.intervalLength = block.IntervalLength
		}
		value = block
	case RecordIntervalData:
		if d.intervalLength == 0 {
			return Record{}, &AssemblyError{Pos: rec.Pos, Indicator: rec.Indicator, Message: "interval data before any 200 record"}
		}
		value, err = decodeIntervalDay(rec, d.intervalLength, d.loc)
	case RecordIntervalEvent:
		value, err = decodeIntervalEvent(rec, d.intervalLength)
	case RecordB2BDetails:
		value, err = decodeTransactionDetail(rec, d.loc)
	case RecordEndOfData:
		if err = expectFieldCount(rec, 0); err == nil {
			value = &Footer{}
		}
	default:
		err = &DecodeError{Pos: rec.Pos, Indicator: rec.Indicator, Message: "unknown record indicator"}
	}

	if err != nil {
		return Record{}, err
	}
	return Record{Indicator: rec.Indicator, Pos: rec.Pos, Value: value}, nil
}

// decodeHeader decodes a 100 record.
func decodeHeader(rec rawRecord, loc *time.Location) (*Header, error) {
	if err := expectFieldCount(rec, headerFieldCount); err != nil {
		return nil, err
	}
	f := fieldReader{rec: rec, loc: loc}

	h := &Header{
		VersionHeader:   f.required(0),
		FromParticipant: f.required(2),
		ToParticipant:   f.required(3),
	}
	h.DateTime = f.headerTimestamp(1)
	return h, f.err
}

// decodeNMIBlock decodes a 200 record.
func decodeNMIBlock(rec rawRecord, loc *time.Location) (*NMIBlock, error) {
	if len(rec.Fields) != nmiFieldCount && len(rec.Fields) != nmiFieldCount-1 {
		return nil, fieldCountError(rec, fmt.Sprintf("%d or %d", nmiFieldCount-1, nmiFieldCount))
	}
	f := fieldReader{rec: rec, loc: loc}

	b := &NMIBlock{
		NMI:                     f.required(0),
		NMIConfiguration:        f.required(1),
		RegisterID:              f.required(2),
		NMISuffix:               f.required(3),
		MDMDataStreamIdentifier: f.required(4),
		MeterSerialNumber:       f.text(5), // empty for unmetered connection points
		UOM:                     f.required(6),
		IntervalLength:          f.integer(7),
	}
	if f.err == nil && IntervalsPerDay(b.IntervalLength) == 0 {
		f.fail(7, "interval length must be a positive divisor of 1440 minutes")
	}
	if len(rec.Fields) == nmiFieldCount {
		b.NextScheduledReadDate = f.optionalDate(8)
	}
	return b, f.err
}

// decodeIntervalDay decodes a 300 record whose readings are intervalLength
// minutes long.
func decodeIntervalDay(rec rawRecord, intervalLength int, loc *time.Location) (*IntervalDay, error) {
	n := IntervalsPerDay(intervalLength)
	full := 1 + n + intervalDayFixedFields
	if len(rec.Fields) != full && len(rec.Fields) != full-1 {
		return nil, fieldCountError(rec, fmt.Sprintf("%d or %d for %d readings of %d minutes", full-1, full, n, intervalLength))
	}
	f := fieldReader{rec: rec, loc: loc}

	day := &IntervalDay{
		IntervalDate: f.date(0),
		Readings:     make([]decimal.Decimal, n),
	}
	for i := 0; i < n; i++ {
		day.Readings[i] = f.reading(1 + i)
	}

	tail := 1 + n
	day.QualityMethod = f.required(tail)
	day.ReasonCode = f.optionalInteger(tail + 1)
	day.ReasonDescription = f.reasonDescription(tail+2, day.ReasonCode)
	day.UpdateDateTime = f.optionalTimestamp(tail + 3)
	if len(rec.Fields) == full {
		day.MSATSLoadDateTime = f.optionalTimestamp(tail + 4)
	}
	return day, f.err
}

// decodeIntervalEvent decodes a 400 record. When intervalLength is known the
// range is checked against the number of sub-intervals in a day.
func decodeIntervalEvent(rec rawRecord, intervalLength int) (*IntervalEvent, error) {
	if err := expectFieldCount(rec, intervalEventFieldCount); err != nil {
		return nil, err
	}
	f := fieldReader{rec: rec}

	e := &IntervalEvent{
		StartInterval: f.integer(0),
		EndInterval:   f.integer(1),
		QualityMethod: f.required(2),
		ReasonCode:    f.optionalInteger(3),
	}
	e.ReasonDescription = f.reasonDescription(4, e.ReasonCode)
	if f.err != nil {
		return nil, f.err
	}

	if e.StartInterval < 1 {
		f.fail(0, "start interval must be at least 1")
	} else if e.EndInterval < e.StartInterval {
		f.fail(1, "end interval precedes start interval")
	} else if n := IntervalsPerDay(intervalLength); n > 0 && e.EndInterval > n {
		f.fail(1, fmt.Sprintf("end interval exceeds the %d intervals in a day", n))
	}
	return e, f.err
}

// decodeTransactionDetail decodes a 500 record.
func decodeTransactionDetail(rec rawRecord, loc *time.Location) (*TransactionDetail, error) {
	if err := expectFieldCount(rec, b2bFieldCount); err != nil {
		return nil, err
	}
	f := fieldReader{rec: rec, loc: loc}

	td := &TransactionDetail{
		TransactionCode:    f.required(0),
		RetailServiceOrder: f.text(1), // only set for service order transactions
		ReadDateTime:       f.optionalTimestamp(2),
		IndexRead:          f.optionalDecimal(3),
	}
	return td, f.err
}

func expectFieldCount(rec rawRecord, want int) error {
	if len(rec.Fields) != want {
		return fieldCountError(rec, strconv.Itoa(want))
	}
	return nil
}

func fieldCountError(rec rawRecord, want string) error {
	return &DecodeError{
		Pos:       rec.Pos,
		Indicator: rec.Indicator,
		Message:   fmt.Sprintf("expected %s fields, found %d", want, len(rec.Fields)),
	}
}

// =============================================================================
// FIELD READER
// =============================================================================

// fieldReader converts fields of one record, keeping the first error.
// Once an error is recorded every further conversion returns a zero value.
type fieldReader struct {
	rec rawRecord
	loc *time.Location
	err error
}

func (f *fieldReader) fail(i int, msg string) {
	if f.err != nil {
		return
	}
	tok := f.rec.Fields[i]
	f.err = &DecodeError{
		Pos:       tok.Pos,
		Indicator: f.rec.Indicator,
		Field:     i + 1,
		Value:     tok.Value,
		Message:   msg,
	}
}

// text returns the field verbatim.
func (f *fieldReader) text(i int) string {
	return f.rec.Fields[i].Value
}

// required returns the trimmed field and fails when it is empty.
func (f *fieldReader) required(i int) string {
	v := strings.TrimSpace(f.rec.Fields[i].Value)
	if v == "" {
		f.fail(i, "required field is empty")
	}
	return v
}

// reasonDescription returns the free-text reason, which must be present when
// the reason code is 0.
func (f *fieldReader) reasonDescription(i int, code *int) string {
	v := f.text(i)
	if code != nil && *code == 0 && strings.TrimSpace(v) == "" {
		f.fail(i, "reason description is required for reason code 0")
	}
	return v
}

func (f *fieldReader) integer(i int) int {
	v := f.required(i)
	if f.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.fail(i, "invalid integer")
		return 0
	}
	return n
}

func (f *fieldReader) optionalInteger(i int) *int {
	v := strings.TrimSpace(f.rec.Fields[i].Value)
	if v == "" || f.err != nil {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.fail(i, "invalid integer")
		return nil
	}
	return &n
}

func (f *fieldReader) reading(i int) decimal.Decimal {
	v := strings.TrimSpace(f.rec.Fields[i].Value)
	if f.err != nil {
		return decimal.Zero
	}
	if v == "" {
		f.fail(i, "empty interval reading")
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		f.fail(i, "invalid interval reading")
		return decimal.Zero
	}
	return d
}

func (f *fieldReader) optionalDecimal(i int) decimal.NullDecimal {
	v := strings.TrimSpace(f.rec.Fields[i].Value)
	if v == "" || f.err != nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		f.fail(i, "invalid number")
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (f *fieldReader) date(i int) time.Time {
	v := f.required(i)
	if f.err != nil {
		return time.Time{}
	}
	return f.parseTime(i, v, dateLayout)
}

func (f *fieldReader) optionalDate(i int) *time.Time {
	v := strings.TrimSpace(f.rec.Fields[i].Value)
	if v == "" || f.err != nil {
		return nil
	}
	t := f.parseTime(i, v, dateLayout)
	if f.err != nil {
		return nil
	}
	return &t
}

func (f *fieldReader) optionalTimestamp(i int) *time.Time {
	v := strings.TrimSpace(f.rec.Fields[i].Value)
	if v == "" || f.err != nil {
		return nil
	}
	t := f.parseTime(i, v, timestampLayout)
	if f.err != nil {
		return nil
	}
	return &t
}

func (f *fieldReader) headerTimestamp(i int) time.Time {
	v := f.required(i)
	if f.err != nil {
		return time.Time{}
	}
	if len(v) == len(headerTimestampLayout) {
		return f.parseTime(i, v, headerTimestampLayout)
	}
	return f.parseTime(i, v, timestampLayout)
}

// parseTime parses v with layout, which must match v's length exactly and be
// made of digits only.
func (f *fieldReader) parseTime(i int, v, layout string) time.Time {
	if len(v) != len(layout) || !isDigits(v) {
		f.fail(i, fmt.Sprintf("expected a %d-digit date", len(layout)))
		return time.Time{}
	}
	t, err := time.ParseInLocation(layout, v, f.loc)
	if err != nil {
		f.fail(i, "invalid date")
		return time.Time{}
	}
	return t
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
