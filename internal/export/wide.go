package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/nem12-converter/internal/nem12"
	"github.com/ginjaninja78/nem12-converter/internal/units"
)

// Half-hour bucket geometry of the wide shape.
const (
	BucketMinutes = 30
	BucketsPerDay = nem12.MinutesPerDay / BucketMinutes
)

// WideRow is one interval day of an additive block, bucketed into canonical
// half hours.
type WideRow struct {
	IntervalDate            time.Time  `json:"intervalDate"`
	NMI                     string     `json:"nmi"`
	RegisterID              string     `json:"registerId"`
	NMISuffix               string     `json:"nmiSuffix"`
	MDMDataStreamIdentifier string     `json:"mdmDataStreamIdentifier"`
	MeterSerialNumber       string     `json:"meterSerialNumber"`
	NextScheduledReadDate   *time.Time `json:"nextScheduledReadDate"`
	QualityMethod           string     `json:"qualityMethod"`
	UpdateDateTime          *time.Time `json:"updateDateTime"`

	// UOM is the canonical unit the buckets are expressed in.
	UOM                    string `json:"uom"`
	OriginalIntervalLength int    `json:"originalIntervalLength"`

	// Values holds BucketsPerDay sums; Values[k] ends at (k+1)*30 minutes.
	Values []decimal.Decimal `json:"values"`

	// Qualities holds the resolved quality of each bucket.
	Qualities []Quality `json:"qualities"`
}

// WideLabels returns the 48 bucket column names, labelled by the clock time
// at which each bucket ends: interval_0030 ... interval_2330, interval_0000.
func WideLabels() []string {
	labels := make([]string, BucketsPerDay)
	for k := 1; k <= BucketsPerDay; k++ {
		minutes := (k * BucketMinutes) % nem12.MinutesPerDay
		labels[k-1] = fmt.Sprintf("interval_%02d%02d", minutes/60, minutes%60)
	}
	return labels
}

// WideBlock buckets every interval day of block.
//
// Each reading is converted to the canonical unit before it is added to its
// bucket. Bucket k (1-based) sums readings (k-1)*step .. k*step-1 where step
// is 30 / intervalLength.
//
// RETURNS:
//   - *units.UnknownUnitError when the unit is not in the table
//   - ErrNonAdditiveUnit for instantaneous quantities
//   - ErrIncompatibleIntervalLength when the interval length does not divide 30
//   - *QualityResolutionError for inconsistent 400 records
func WideBlock(block *nem12.NMIBlock, table *units.Table, opts ResolveOptions) ([]WideRow, error) {
	unit, err := table.Lookup(block.UOM)
	if err != nil {
		return nil, err
	}
	if !unit.Additive {
		return nil, fmt.Errorf("%w: %s", ErrNonAdditiveUnit, unit.Name)
	}
	if block.IntervalLength <= 0 || BucketMinutes%block.IntervalLength != 0 {
		return nil, fmt.Errorf("%w: %d minutes", ErrIncompatibleIntervalLength, block.IntervalLength)
	}
	step := BucketMinutes / block.IntervalLength

	rows := make([]WideRow, 0, len(block.IntervalDays))
	for _, day := range block.IntervalDays {
		qualities, err := ResolveQuality(day, opts)
		if err != nil {
			return nil, err
		}

		row := WideRow{
			IntervalDate:            day.IntervalDate,
			NMI:                     block.NMI,
			RegisterID:              block.RegisterID,
			NMISuffix:               block.NMISuffix,
			MDMDataStreamIdentifier: block.MDMDataStreamIdentifier,
			MeterSerialNumber:       block.MeterSerialNumber,
			NextScheduledReadDate:   block.NextScheduledReadDate,
			QualityMethod:           day.QualityMethod,
			UpdateDateTime:          day.UpdateDateTime,
			UOM:                     unit.Canonical,
			OriginalIntervalLength:  block.IntervalLength,
			Values:                  make([]decimal.Decimal, BucketsPerDay),
			Qualities:               make([]Quality, BucketsPerDay),
		}

		for k := 0; k < BucketsPerDay; k++ {
			lo, hi := k*step, (k+1)*step
			sum := decimal.Zero
			for _, reading := range day.Readings[lo:hi] {
				sum = sum.Add(reading.Mul(unit.Multiplier))
			}
			row.Values[k] = sum
			row.Qualities[k] = mergeQualities(qualities[lo:hi])
		}

		rows = append(rows, row)
	}

	return rows, nil
}
