package nem12

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalDayJSONReadingsAreNumbers(t *testing.T) {
	day := &IntervalDay{
		Readings:      []decimal.Decimal{decimal.RequireFromString("1.500"), decimal.RequireFromString("0.001")},
		QualityMethod: "A",
		TransactionDetails: []*TransactionDetail{
			{TransactionCode: "S", IndexRead: decimal.NewNullDecimal(decimal.RequireFromString("1234.5"))},
			{TransactionCode: "O"},
		},
	}

	data, err := json.Marshal(day)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []any{1.5, 0.001}, decoded["readings"])
	assert.Equal(t, "A", decoded["qualityMethod"])

	details := decoded["transactionDetails"].([]any)
	require.Len(t, details, 2)
	assert.Equal(t, 1234.5, details[0].(map[string]any)["indexRead"])
	assert.Nil(t, details[1].(map[string]any)["indexRead"])
	assert.Equal(t, "S", details[0].(map[string]any)["transactionCode"])
}

func TestDecimalEncodingIsUnchangedElsewhere(t *testing.T) {
	_, err := json.Marshal(&IntervalDay{Readings: []decimal.Decimal{decimal.NewFromInt(1)}})
	require.NoError(t, err)

	data, err := json.Marshal(decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	assert.Equal(t, `"2.5"`, string(data))
}
