// =============================================================================
// NEM12 Converter - Document Model
// =============================================================================
//
// The parsed form of a NEM12 file is a strict tree:
//
//   Document
//   ├── Header             (record 100, optional)
//   ├── NMIBlock ...       (record 200)
//   │   └── IntervalDay ...        (record 300)
//   │       ├── IntervalEvent ...      (record 400)
//   │       └── TransactionDetail ...  (record 500)
//   └── Footer             (record 900, present iff Header is present)
//
// Nothing in the tree points back at its parent. Once Parse returns, the tree
// is read-only: the export stages derive new rows from it and never mutate it.
//
// All dates and timestamps are expressed in the parse location (UTC+10 unless
// configured otherwise), since NEM12 files carry no zone information.
//
// =============================================================================

package nem12

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinutesPerDay is the number of minutes covered by one interval day.
const MinutesPerDay = 1440

// RecordIndicator is the leading numeric code of every NEM12 line.
type RecordIndicator int

// The record indicators understood by the parser.
const (
	RecordHeader         RecordIndicator = 100
	RecordNMIDataDetails RecordIndicator = 200
	RecordIntervalData   RecordIndicator = 300
	RecordIntervalEvent  RecordIndicator = 400
	RecordB2BDetails     RecordIndicator = 500
	RecordEndOfData      RecordIndicator = 900
)

const recordIndicatorUnknown RecordIndicator = 0

// Document is the root of a parsed NEM12 file.
type Document struct {
	Header    *Header     `json:"header"`
	NMIBlocks []*NMIBlock `json:"nmiBlocks"`
	Footer    *Footer     `json:"footer"`
}

// Header is record 100.
type Header struct {
	VersionHeader   string    `json:"versionHeader"`
	DateTime        time.Time `json:"dateTime"`
	FromParticipant string    `json:"fromParticipant"`
	ToParticipant   string    `json:"toParticipant"`
}

// NMIBlock is record 200 together with the interval days that follow it.
type NMIBlock struct {
	NMI                     string         `json:"nmi"`
	NMIConfiguration        string         `json:"nmiConfiguration"`
	RegisterID              string         `json:"registerId"`
	NMISuffix               string         `json:"nmiSuffix"`
	MDMDataStreamIdentifier string         `json:"mdmDataStreamIdentifier"`
	MeterSerialNumber       string         `json:"meterSerialNumber"`
	UOM                     string         `json:"uom"`
	IntervalLength          int            `json:"intervalLength"`
	NextScheduledReadDate   *time.Time     `json:"nextScheduledReadDate"`
	IntervalDays            []*IntervalDay `json:"intervalDays"`
}

// IntervalsPerDay returns the number of readings each day of the block holds.
func (b *NMIBlock) IntervalsPerDay() int {
	return IntervalsPerDay(b.IntervalLength)
}

// IntervalDay is record 300 together with its 400 and 500 sub-records.
type IntervalDay struct {
	IntervalDate       time.Time            `json:"intervalDate"`
	Readings           []decimal.Decimal    `json:"readings"`
	QualityMethod      string               `json:"qualityMethod"`
	ReasonCode         *int                 `json:"reasonCode"`
	ReasonDescription  string               `json:"reasonDescription"`
	UpdateDateTime     *time.Time           `json:"updateDateTime"`
	MSATSLoadDateTime  *time.Time           `json:"msatsLoadDateTime"`
	IntervalEvents     []*IntervalEvent     `json:"intervalEvents"`
	TransactionDetails []*TransactionDetail `json:"transactionDetails"`
}

// IntervalEvent is record 400: a quality overlay over an inclusive, 1-based
// range of sub-intervals.
type IntervalEvent struct {
	StartInterval     int    `json:"startInterval"`
	EndInterval       int    `json:"endInterval"`
	QualityMethod     string `json:"qualityMethod"`
	ReasonCode        *int   `json:"reasonCode"`
	ReasonDescription string `json:"reasonDescription"`
}

// Covers reports whether the 1-based sub-interval index i lies in the event.
func (e *IntervalEvent) Covers(i int) bool {
	return i >= e.StartInterval && i <= e.EndInterval
}

// TransactionDetail is record 500 (B2B details).
type TransactionDetail struct {
	TransactionCode    string              `json:"transactionCode"`
	RetailServiceOrder string              `json:"retailServiceOrder"`
	ReadDateTime       *time.Time          `json:"readDateTime"`
	IndexRead          decimal.NullDecimal `json:"indexRead"`
}

// Footer is record 900. It has no payload.
type Footer struct{}

// IntervalsPerDay returns 1440 / intervalLength, or 0 when the length does not
// evenly divide a day.
func IntervalsPerDay(intervalLength int) int {
	if intervalLength <= 0 || MinutesPerDay%intervalLength != 0 {
		return 0
	}
	return MinutesPerDay / intervalLength
}
