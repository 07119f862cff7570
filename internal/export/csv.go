package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Output layouts for dates and timestamps. Timestamps keep the parse offset.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = time.RFC3339
)

var wideFixedColumns = []string{
	"interval_date",
	"nmi",
	"register_id",
	"nmi_suffix",
	"mdm_data_stream_identifier",
	"meter_serial_number",
	"next_scheduled_read_date",
	"quality_method",
	"update_datetime",
	"uom",
	"original_interval_length",
}

var longColumns = []string{
	"interval_date",
	"nmi",
	"register_id",
	"nmi_suffix",
	"mdm_data_stream_identifier",
	"meter_serial_number",
	"next_scheduled_read_date",
	"update_datetime",
	"uom",
	"interval_length",
	"quality_method",
	"reason_code",
	"reason_description",
	"interval_start_timestamp",
	"interval_end_timestamp",
	"read_value",
}

// WideHeader returns the wide-shape column names.
func WideHeader() []string {
	header := make([]string, 0, len(wideFixedColumns)+BucketsPerDay)
	header = append(header, wideFixedColumns...)
	return append(header, WideLabels()...)
}

// LongHeader returns the long-shape column names.
func LongHeader() []string {
	return append([]string(nil), longColumns...)
}

// WriteWideCSV writes a header line and one line per row.
func WriteWideCSV(w io.Writer, rows []WideRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(WideHeader()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(wideRecord(&rows[i])); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLongCSV writes a header line and one line per row.
func WriteLongCSV(w io.Writer, rows []LongRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LongHeader()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(longRecord(&rows[i])); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func wideRecord(row *WideRow) []string {
	record := make([]string, 0, len(wideFixedColumns)+BucketsPerDay)
	record = append(record,
		row.IntervalDate.Format(DateLayout),
		row.NMI,
		row.RegisterID,
		row.NMISuffix,
		row.MDMDataStreamIdentifier,
		row.MeterSerialNumber,
		formatOptional(row.NextScheduledReadDate, DateLayout),
		row.QualityMethod,
		formatOptional(row.UpdateDateTime, TimestampLayout),
		row.UOM,
		strconv.Itoa(row.OriginalIntervalLength),
	)
	for _, v := range row.Values {
		record = append(record, v.String())
	}
	return record
}

func longRecord(row *LongRow) []string {
	return []string{
		row.IntervalDate.Format(DateLayout),
		row.NMI,
		row.RegisterID,
		row.NMISuffix,
		row.MDMDataStreamIdentifier,
		row.MeterSerialNumber,
		formatOptional(row.NextScheduledReadDate, DateLayout),
		formatOptional(row.UpdateDateTime, TimestampLayout),
		row.UOM,
		strconv.Itoa(row.IntervalLength),
		row.Method,
		formatReasonCode(row.ReasonCode),
		row.ReasonDescription,
		row.IntervalStart.Format(TimestampLayout),
		row.IntervalEnd.Format(TimestampLayout),
		row.ReadValue.String(),
	}
}

func formatOptional(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}

func formatReasonCode(code *int) string {
	if code == nil {
		return ""
	}
	return strconv.Itoa(*code)
}
