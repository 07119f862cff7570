package nem12

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Readings and index reads encode as JSON numbers carrying their exact
// decimal text.

// MarshalJSON implements json.Marshaler.
func (d IntervalDay) MarshalJSON() ([]byte, error) {
	type plain IntervalDay
	readings := make([]json.Number, len(d.Readings))
	for i, r := range d.Readings {
		readings[i] = decimalNumber(r)
	}
	return json.Marshal(struct {
		plain
		Readings []json.Number `json:"readings"`
	}{plain(d), readings})
}

// MarshalJSON implements json.Marshaler. A missing index read encodes as null.
func (t TransactionDetail) MarshalJSON() ([]byte, error) {
	type plain TransactionDetail
	var indexRead *json.Number
	if t.IndexRead.Valid {
		n := decimalNumber(t.IndexRead.Decimal)
		indexRead = &n
	}
	return json.Marshal(struct {
		plain
		IndexRead *json.Number `json:"indexRead"`
	}{plain(t), indexRead})
}

func decimalNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
