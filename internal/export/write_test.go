package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/nem12-converter/internal/nem12"
)

func TestParseShapeAndFormat(t *testing.T) {
	shape, err := ParseShape(" Long ")
	require.NoError(t, err)
	assert.Equal(t, ShapeLong, shape)

	_, err = ParseShape("tall")
	assert.Error(t, err)

	format, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)
	assert.Equal(t, "xlsx", format.Extension())

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestHeaders(t *testing.T) {
	wide := WideHeader()
	require.Len(t, wide, 11+48)
	assert.Equal(t, "interval_date", wide[0])
	assert.Equal(t, "original_interval_length", wide[10])
	assert.Equal(t, "interval_0030", wide[11])
	assert.Equal(t, "interval_0000", wide[58])

	want := []string{
		"interval_date", "nmi", "register_id", "nmi_suffix", "mdm_data_stream_identifier",
		"meter_serial_number", "next_scheduled_read_date", "update_datetime", "uom", "interval_length",
		"quality_method", "reason_code", "reason_description", "interval_start_timestamp",
		"interval_end_timestamp", "read_value",
	}
	if diff := cmp.Diff(want, LongHeader()); diff != "" {
		t.Errorf("long header mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteWideCSV(t *testing.T) {
	next := time.Date(2024, 3, 1, 0, 0, 0, 0, nem12.DefaultLocation())
	block := testBlock("N1", "E1", "Wh", 30, testDay(constant("1500", 48), "A"))
	block.NextScheduledReadDate = &next

	rows, skipped := New().Wide(testDocument(block))
	require.Empty(t, skipped)

	var buf bytes.Buffer
	require.NoError(t, WriteWideCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	record := records[1]
	require.Len(t, record, 59)
	assert.Equal(t, []string{"2024-01-01", "N1", "1", "E1", "", "METER1", "2024-03-01", "A", "", "kWh", "30"}, record[:11])
	assert.Equal(t, "1.5", record[11])
	assert.Equal(t, "1.5", record[58])
}

func TestWriteLongCSV(t *testing.T) {
	day := testDay(sequence(96), "A")
	day.ReasonCode = intPtr(51)
	day.ReasonDescription = "Meter, replaced"

	rows, err := LongBlock(testBlock("N1", "E1", "kWh", 15, day), ResolveOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLongCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 97)

	assert.Equal(t, LongHeader(), records[0])
	assert.Equal(t, []string{
		"2024-01-01", "N1", "1", "E1", "", "METER1", "", "", "kWh", "15",
		"A", "51", "Meter, replaced",
		"2024-01-01T00:15:00+10:00", "2024-01-01T00:30:00+10:00", "2",
	}, records[2])
	assert.Equal(t, "2024-01-02T00:00:00+10:00", records[96][14])
}

func TestWriteDocumentJSON(t *testing.T) {
	doc, err := nem12.Parse("100,NEM12,200402070911,MDA1,Ret1\n" +
		"200,N1,E1,1,E1,N1,M1,kWh,30,\n" +
		"300,20240101," + joinDecimals(constant("1.5", 48)) + ",A,,,,\n" +
		"500,S,RET1,,\n" +
		"900\n")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDocumentJSON(&buf, doc))

	var decoded struct {
		Header struct {
			DateTime string `json:"dateTime"`
		} `json:"header"`
		NMIBlocks []struct {
			NMI                   string  `json:"nmi"`
			NextScheduledReadDate *string `json:"nextScheduledReadDate"`
			IntervalDays          []struct {
				IntervalDate       string    `json:"intervalDate"`
				Readings           []float64 `json:"readings"`
				TransactionDetails []struct {
					IndexRead *float64 `json:"indexRead"`
				} `json:"transactionDetails"`
			} `json:"intervalDays"`
		} `json:"nmiBlocks"`
		Footer *struct{} `json:"footer"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "2004-02-07T09:11:00+10:00", decoded.Header.DateTime)
	require.Len(t, decoded.NMIBlocks, 1)
	assert.Nil(t, decoded.NMIBlocks[0].NextScheduledReadDate)

	day := decoded.NMIBlocks[0].IntervalDays[0]
	assert.Equal(t, "2024-01-01T00:00:00+10:00", day.IntervalDate)
	require.Len(t, day.Readings, 48)
	assert.Equal(t, 1.5, day.Readings[0])
	require.Len(t, day.TransactionDetails, 1)
	assert.Nil(t, day.TransactionDetails[0].IndexRead)
	assert.NotNil(t, decoded.Footer)
}

func TestWriteWideXLSX(t *testing.T) {
	rows, _ := New().Wide(testDocument(testBlock("N1", "E1", "kWh", 30, testDay(constant("2", 48), "A"))))

	var buf bytes.Buffer
	require.NoError(t, WriteWideXLSX(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheetRows, err := f.GetRows("wide")
	require.NoError(t, err)
	require.Len(t, sheetRows, 2)
	assert.Equal(t, WideHeader(), sheetRows[0])
	assert.Equal(t, "N1", sheetRows[1][1])
	assert.Equal(t, "30", sheetRows[1][10])
	assert.Equal(t, "2", sheetRows[1][11])
}

func TestWriteLongXLSX(t *testing.T) {
	rows, err := LongBlock(testBlock("N1", "E1", "kWh", 30, testDay(sequence(48), "A")), ResolveOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLongXLSX(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheetRows, err := f.GetRows("long")
	require.NoError(t, err)
	require.Len(t, sheetRows, 49)
	assert.Equal(t, "interval_start_timestamp", sheetRows[0][13])
	assert.Equal(t, "2024-01-01T00:00:00+10:00", sheetRows[1][13])
	assert.Equal(t, "48", sheetRows[48][15])
}

func TestExporterWrite(t *testing.T) {
	doc := testDocument(
		testBlock("N1", "E1", "kWh", 30, testDay(sequence(48), "A")),
		testBlock("N1", "K1", "kW", 30, testDay(sequence(48), "A")),
		testBlock("N2", "E1", "kWh", 30, testDay(sequence(48), "A")),
	)

	tests := []struct {
		name        string
		filter      Filter
		format      Format
		shape       Shape
		wantBlocks  int
		wantRows    int
		wantSkipped int
	}{
		{name: "wide csv", format: FormatCSV, shape: ShapeWide, wantBlocks: 3, wantRows: 2, wantSkipped: 1},
		{name: "long csv", format: FormatCSV, shape: ShapeLong, wantBlocks: 3, wantRows: 144},
		{name: "filtered long xlsx", filter: Filter{NMI: "N1"}, format: FormatXLSX, shape: ShapeLong, wantBlocks: 2, wantRows: 96},
		{name: "json ignores shape", format: FormatJSON, shape: ShapeWide, wantBlocks: 3, wantRows: 3},
		{name: "filtered json", filter: Filter{NMISuffix: "K1"}, format: FormatJSON, shape: ShapeLong, wantBlocks: 1, wantRows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			summary, err := New(WithFilter(tt.filter)).Write(&buf, doc, tt.format, tt.shape)
			require.NoError(t, err)

			assert.Equal(t, tt.wantBlocks, summary.Blocks)
			assert.Equal(t, tt.wantRows, summary.Rows)
			assert.Len(t, summary.Skipped, tt.wantSkipped)
			assert.NotZero(t, buf.Len())
		})
	}

	_, err := New().Write(&bytes.Buffer{}, doc, Format("xml"), ShapeWide)
	assert.Error(t, err)
}

func joinDecimals(values []decimal.Decimal) string {
	var buf bytes.Buffer
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(v.String())
	}
	return buf.String()
}
