package export

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/nem12-converter/internal/nem12"
)

var testDate = time.Date(2024, 1, 1, 0, 0, 0, 0, nem12.DefaultLocation())

// sequence returns the readings 1, 2, ..., n.
func sequence(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.NewFromInt(int64(i + 1))
	}
	return out
}

func constant(value string, n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.RequireFromString(value)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}

func testDay(readings []decimal.Decimal, quality string, events ...*nem12.IntervalEvent) *nem12.IntervalDay {
	return &nem12.IntervalDay{
		IntervalDate:   testDate,
		Readings:       readings,
		QualityMethod:  quality,
		IntervalEvents: events,
	}
}

func testEvent(start, end int, quality string, reason *int) *nem12.IntervalEvent {
	return &nem12.IntervalEvent{
		StartInterval: start,
		EndInterval:   end,
		QualityMethod: quality,
		ReasonCode:    reason,
	}
}

func testBlock(nmi, suffix, uom string, intervalLength int, days ...*nem12.IntervalDay) *nem12.NMIBlock {
	return &nem12.NMIBlock{
		NMI:               nmi,
		RegisterID:        "1",
		NMISuffix:         suffix,
		MeterSerialNumber: "METER1",
		UOM:               uom,
		IntervalLength:    intervalLength,
		IntervalDays:      days,
	}
}

func testDocument(blocks ...*nem12.NMIBlock) *nem12.Document {
	return &nem12.Document{NMIBlocks: blocks}
}
