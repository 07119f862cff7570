package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/nem12-converter/internal/config"
	"github.com/ginjaninja78/nem12-converter/internal/export"
	"github.com/ginjaninja78/nem12-converter/internal/nem12"
	"github.com/ginjaninja78/nem12-converter/internal/validation"
	"github.com/ginjaninja78/nem12-converter/pkg/utils"
)

func readings(value string, n int) string {
	values := make([]string, n)
	for i := range values {
		values[i] = value
	}
	return strings.Join(values, ",")
}

// meterFile has one kWh block and one kW block, one day each.
var meterFile = strings.Join([]string{
	"100,NEM12,200402070911,MDA1,Ret1",
	"200,NEM1201009,E1E2,1,E1,N1,METER1,kWh,30,20240301",
	"300,20240101," + readings("0.5", 48) + ",A,,,20240102120000,20240102120500",
	"200,NEM1201009,E1E2,2,Q1,N2,METER1,kW,30,20240301",
	"300,20240101," + readings("2", 48) + ",A,,,20240102120000,20240102120500",
	"900",
}, "\n") + "\n"

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) *config.MainConfig {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.OutputNameFormat = "{stem}_{shape}.{ext}"
	return cfg
}

func TestRunWideCSV(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, t.TempDir(), "meter.csv", meterFile)

	result := New(input, cfg).Run(context.Background())
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "meter_wide.csv"), result.OutputFile)
	assert.Equal(t, 2, result.Stats.Blocks)
	assert.Equal(t, 1, result.Stats.Rows)
	assert.Equal(t, 0, result.Stats.LintErrors)
	assert.Equal(t, 1, result.Stats.LintWarnings)
	assert.Positive(t, result.Stats.ProcessingTime)

	require.Len(t, result.Skipped, 1)
	assert.ErrorIs(t, result.Skipped[0], export.ErrNonAdditiveUnit)

	content, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "interval_date,nmi,"))
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01,NEM1201009,1,E1,"))
	assert.True(t, utils.FileExists(input), "input is not archived without a file manager")
}

func TestRunLongToStdout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Shape = "long"
	input := writeInput(t, t.TempDir(), "meter.csv", meterFile)

	var stdout bytes.Buffer
	result := New(input, cfg, WithOutputPath(StdoutPath), WithStdout(&stdout)).Run(context.Background())
	require.NoError(t, result.Error)
	assert.Equal(t, StdoutPath, result.OutputFile)
	assert.Equal(t, 96, result.Stats.Rows)
	assert.Empty(t, result.Skipped)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Len(t, lines, 97)
}

func TestRunJSONWithFilter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Format = "json"
	cfg.Export.NMISuffix = "Q1"
	input := writeInput(t, t.TempDir(), "meter.nem12", meterFile)

	result := New(input, cfg).Run(context.Background())
	require.NoError(t, result.Error)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "meter_document.json"), result.OutputFile)
	assert.Equal(t, 1, result.Stats.Blocks)

	content, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)

	var doc struct {
		NMIBlocks []struct {
			NMISuffix string `json:"nmiSuffix"`
			UOM       string `json:"uom"`
		} `json:"nmiBlocks"`
	}
	require.NoError(t, json.Unmarshal(content, &doc))
	require.Len(t, doc.NMIBlocks, 1)
	assert.Equal(t, "Q1", doc.NMIBlocks[0].NMISuffix)
	assert.Equal(t, "kW", doc.NMIBlocks[0].UOM)
}

func TestRunParseFailure(t *testing.T) {
	cfg := testConfig(t)
	bad := strings.Replace(meterFile, "300,20240101,0.5,", "300,20240101,x,", 1)
	input := writeInput(t, t.TempDir(), "bad.csv", bad)

	result := New(input, cfg).Run(context.Background())
	require.Error(t, result.Error)
	assert.False(t, result.Success)
	assert.Empty(t, result.OutputFile)
	assert.Equal(t, "decode", ErrorType(result.Error))

	var decodeErr *nem12.DecodeError
	require.ErrorAs(t, result.Error, &decodeErr)
	assert.Equal(t, 3, decodeErr.Pos.Line)

	entries := result.ErrorLogEntries(time.Now())
	require.Len(t, entries, 1)
	assert.Equal(t, "bad.csv", entries[0].FileName)
	assert.Equal(t, 3, entries[0].Line)
	assert.Equal(t, "300", entries[0].Indicator)
	assert.Equal(t, 2, entries[0].Field)
	assert.Equal(t, "x", entries[0].Value)

	_, err := os.Stat(filepath.Join(cfg.OutputDir, "bad_wide.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunArchives(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()
	fm := utils.NewFileManager(filepath.Join(root, "in"), cfg.OutputDir,
		filepath.Join(root, "in_archive"), filepath.Join(root, "out_archive"))
	require.NoError(t, fm.EnsureDirectories())
	input := writeInput(t, fm.InputDir, "meter.csv", meterFile)

	result := New(input, cfg, WithFileManager(fm)).Run(context.Background())
	require.NoError(t, result.Error)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "meter.csv"), result.ArchivePath)
	assert.False(t, utils.FileExists(input))
	assert.True(t, utils.FileExists(filepath.Join(fm.OutputArchiveDir, "meter_wide.csv")))
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := New("meter.csv", testConfig(t)).Run(ctx)
	assert.ErrorIs(t, result.Error, context.Canceled)
	assert.Equal(t, "canceled", ErrorType(result.Error))
}

func TestRunBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Shape = "tall"

	result := New("meter.csv", cfg).Run(context.Background())
	assert.ErrorContains(t, result.Error, "unknown output shape")
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: &nem12.TokenizeError{}, want: "tokenize"},
		{err: fmt.Errorf("wrapped: %w", &nem12.DecodeError{}), want: "decode"},
		{err: &nem12.AssemblyError{}, want: "assembly"},
		{err: &os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, want: "io"},
		{err: errors.New("other"), want: "conversion"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err), tt.err.Error())
	}
}

func TestErrorLogEntriesIncludeSkipsAndLintErrors(t *testing.T) {
	result := Result{
		FilePath: "/data/in/meter.csv",
		Skipped: []error{&export.BlockError{
			NMI: "N1", NMISuffix: "Q1", UOM: "kW", Shape: export.ShapeWide, Err: export.ErrNonAdditiveUnit,
		}},
		Findings: []*validation.Finding{
			{Severity: validation.SeverityWarning, Rule: validation.RuleNonAdditiveUnit, NMI: "N1", NMISuffix: "Q1"},
			{Severity: validation.SeverityError, Rule: validation.RuleQualityGap, NMI: "N2", NMISuffix: "E1", Message: "gap"},
		},
	}

	entries := result.ErrorLogEntries(time.Now())
	require.Len(t, entries, 2)
	assert.Equal(t, "export", entries[0].ErrorType)
	assert.Equal(t, "Q1", entries[0].NMISuffix)
	assert.Equal(t, "lint", entries[1].ErrorType)
	assert.Equal(t, "N2", entries[1].NMI)
	assert.Equal(t, "meter.csv", entries[1].FileName)
}

func TestLoadUnits(t *testing.T) {
	cfg := config.Default()

	table, err := LoadUnits(cfg)
	require.NoError(t, err)
	_, err = table.Lookup("kWh")
	assert.NoError(t, err)

	cfg.UnitsWorkbook = filepath.Join(t.TempDir(), "missing.xlsx")
	_, err = LoadUnits(cfg)
	assert.ErrorContains(t, err, "failed to load units workbook")
}
