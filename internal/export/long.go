package export

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/nem12-converter/internal/nem12"
)

// LongRow is one native sub-interval of one interval day.
type LongRow struct {
	IntervalDate            time.Time  `json:"intervalDate"`
	NMI                     string     `json:"nmi"`
	RegisterID              string     `json:"registerId"`
	NMISuffix               string     `json:"nmiSuffix"`
	MDMDataStreamIdentifier string     `json:"mdmDataStreamIdentifier"`
	MeterSerialNumber       string     `json:"meterSerialNumber"`
	NextScheduledReadDate   *time.Time `json:"nextScheduledReadDate"`
	UpdateDateTime          *time.Time `json:"updateDateTime"`

	// UOM is the unit as written in the 200 record; the value is not converted.
	UOM            string `json:"uom"`
	IntervalLength int    `json:"intervalLength"`

	Quality

	IntervalStart time.Time       `json:"intervalStartTimestamp"`
	IntervalEnd   time.Time       `json:"intervalEndTimestamp"`
	ReadValue     decimal.Decimal `json:"readValue"`
}

// LongBlock expands every interval day of block into one row per
// sub-interval. Sub-interval i (1-based) spans
// [date + (i-1)*length, date + i*length) minutes.
//
// Units are not looked up, so an unknown unit never fails this shape. The
// only error is a *QualityResolutionError.
func LongBlock(block *nem12.NMIBlock, opts ResolveOptions) ([]LongRow, error) {
	length := time.Duration(block.IntervalLength) * time.Minute

	var rows []LongRow
	for _, day := range block.IntervalDays {
		qualities, err := ResolveQuality(day, opts)
		if err != nil {
			return nil, err
		}

		for i, reading := range day.Readings {
			start := day.IntervalDate.Add(time.Duration(i) * length)
			rows = append(rows, LongRow{
				IntervalDate:            day.IntervalDate,
				NMI:                     block.NMI,
				RegisterID:              block.RegisterID,
				NMISuffix:               block.NMISuffix,
				MDMDataStreamIdentifier: block.MDMDataStreamIdentifier,
				MeterSerialNumber:       block.MeterSerialNumber,
				NextScheduledReadDate:   block.NextScheduledReadDate,
				UpdateDateTime:          day.UpdateDateTime,
				UOM:                     block.UOM,
				IntervalLength:          block.IntervalLength,
				Quality:                 qualities[i],
				IntervalStart:           start,
				IntervalEnd:             start.Add(length),
				ReadValue:               reading,
			})
		}
	}

	return rows, nil
}
