package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/nem12-converter/internal/config"
	"github.com/ginjaninja78/nem12-converter/pkg/utils"
)

func meterFile() string {
	readings := strings.TrimSuffix(strings.Repeat("0.25,", 48), ",")
	return strings.Join([]string{
		"100,NEM12,200402070911,MDA1,Ret1",
		"200,NEM1201009,E1E2,1,E1,N1,METER1,kWh,30,20240301",
		"300,20240101," + readings + ",A,,,20240102120000,20240102120500",
		"900",
	}, "\n") + "\n"
}

// badFile has no 900 footer.
func badFile() string {
	return strings.TrimSuffix(meterFile(), "900\n")
}

func batchConfig(t *testing.T) *config.MainConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.InputDir = filepath.Join(root, "input")
	cfg.OutputDir = filepath.Join(root, "output")
	cfg.InputArchiveDir = filepath.Join(root, "input_archive")
	cfg.OutputArchiveDir = filepath.Join(root, "output_archive")
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func glob(t *testing.T, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(pattern)
	require.NoError(t, err)
	return matches
}

func TestRunConvertBatch(t *testing.T) {
	cfg := batchConfig(t)
	writeFile(t, filepath.Join(cfg.InputDir, "good.csv"), meterFile())
	writeFile(t, filepath.Join(cfg.InputDir, "bad.csv"), badFile())
	writeFile(t, filepath.Join(cfg.InputDir, "notes.txt"), "ignored")

	var stdout, stderr bytes.Buffer
	err := runConvert(context.Background(), cfg, nil, convertFlags{}, &stdout, &stderr)
	require.EqualError(t, err, "1 of 2 file(s) failed")

	assert.True(t, utils.FileExists(filepath.Join(cfg.InputArchiveDir, "good.csv")))
	assert.True(t, utils.FileExists(filepath.Join(cfg.InputDir, "bad.csv")))
	assert.True(t, utils.FileExists(filepath.Join(cfg.InputDir, "notes.txt")))

	assert.Len(t, glob(t, filepath.Join(cfg.OutputDir, "good_wide_*.csv")), 1)
	assert.Len(t, glob(t, filepath.Join(cfg.OutputArchiveDir, "good_wide_*.csv")), 1)
	assert.Len(t, glob(t, filepath.Join(cfg.OutputDir, "processing_summary_*.txt")), 1)

	errorLogs := glob(t, filepath.Join(cfg.OutputDir, "error_log_*.txt"))
	require.Len(t, errorLogs, 1)
	content, err := os.ReadFile(errorLogs[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "bad.csv")
	assert.Contains(t, string(content), "Error Type:     assembly")

	assert.Contains(t, stdout.String(), "✓ good.csv")
	assert.Contains(t, stdout.String(), "✗ bad.csv")
	assert.Contains(t, stdout.String(), "Converted 1 of 2 file(s)")
}

func TestRunConvertEmptyInputDir(t *testing.T) {
	cfg := batchConfig(t)

	var stdout bytes.Buffer
	require.NoError(t, runConvert(context.Background(), cfg, nil, convertFlags{}, &stdout, &stdout))
	assert.Contains(t, stdout.String(), "No NEM12 files found")
}

func TestRunConvertSingleFileToStdout(t *testing.T) {
	cfg := batchConfig(t)
	cfg.Export.Shape = "long"
	input := filepath.Join(t.TempDir(), "meter.csv")
	writeFile(t, input, meterFile())

	var stdout, stderr bytes.Buffer
	err := runConvert(context.Background(), cfg, []string{input}, convertFlags{output: "-"}, &stdout, &stderr)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Len(t, lines, 49)
	assert.True(t, strings.HasPrefix(lines[0], "interval_date,"))
	assert.Contains(t, stderr.String(), "✓ meter.csv -> -")
	assert.True(t, utils.FileExists(input), "single-file mode does not archive")
}

func TestRunConvertOutputNeedsOneFile(t *testing.T) {
	cfg := batchConfig(t)
	var out bytes.Buffer

	err := runConvert(context.Background(), cfg, []string{"a.csv", "b.csv"}, convertFlags{output: "x.csv"}, &out, &out)
	assert.ErrorContains(t, err, "--output requires exactly one input file")

	err = runConvert(context.Background(), cfg, nil, convertFlags{output: "x.csv"}, &out, &out)
	assert.ErrorContains(t, err, "--output requires exactly one input file")
}

func TestRunConvertStopsOnError(t *testing.T) {
	cfg := batchConfig(t)
	cfg.ContinueOnError = false
	cfg.MaxConcurrency = 1
	writeFile(t, filepath.Join(cfg.InputDir, "a_bad.csv"), badFile())
	writeFile(t, filepath.Join(cfg.InputDir, "b_good.csv"), meterFile())

	var out bytes.Buffer
	err := runConvert(context.Background(), cfg, nil, convertFlags{}, &out, &out)
	require.EqualError(t, err, "2 of 2 file(s) failed")
	assert.True(t, utils.FileExists(filepath.Join(cfg.InputDir, "b_good.csv")))
	assert.Contains(t, out.String(), "context canceled")
}

func TestApplyConvertFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("format", "", "")
	cmd.Flags().String("shape", "", "")
	cmd.Flags().String("nmi", "", "")
	cmd.Flags().String("nmi-suffix", "", "")
	require.NoError(t, cmd.Flags().Set("shape", "long"))
	require.NoError(t, cmd.Flags().Set("nmi-suffix", "E1"))

	cfg := config.Default()
	cfg.Export.Format = "xlsx"
	applyConvertFlags(cmd, cfg, convertFlags{format: "json", shape: "long", nmiSuffix: "E1"})

	assert.Equal(t, "xlsx", cfg.Export.Format, "unset flags keep the configured value")
	assert.Equal(t, "long", cfg.Export.Shape)
	assert.Equal(t, "E1", cfg.Export.NMISuffix)
	assert.Empty(t, cfg.Export.NMI)
}

func TestRunValidate(t *testing.T) {
	cfg := batchConfig(t)
	good := filepath.Join(cfg.InputDir, "good.csv")
	bad := filepath.Join(cfg.InputDir, "bad.csv")
	writeFile(t, good, meterFile())
	writeFile(t, bad, badFile())

	var out bytes.Buffer
	require.NoError(t, runValidate(cfg, []string{good}, false, &out))
	assert.Contains(t, out.String(), "✓ "+good+": 1 NMI block(s), 1 day(s), 0 error(s), 0 warning(s)")

	out.Reset()
	err := runValidate(cfg, nil, false, &out)
	assert.EqualError(t, err, "1 file(s) failed validation")
	assert.Contains(t, out.String(), "✗ "+bad)
	assert.Contains(t, out.String(), "1 of 2 file(s) valid")
}

func TestRunValidateStrict(t *testing.T) {
	cfg := batchConfig(t)
	input := filepath.Join(cfg.InputDir, "power.csv")
	writeFile(t, input, strings.Replace(meterFile(), ",kWh,", ",kW,", 1))

	var out bytes.Buffer
	require.NoError(t, runValidate(cfg, []string{input}, false, &out))
	assert.Contains(t, out.String(), "non_additive_unit")

	out.Reset()
	assert.Error(t, runValidate(cfg, []string{input}, true, &out))
}

func TestRunUnits(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runUnits(config.Default(), &out))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "UOM"))
	assert.Contains(t, text, "kWh")
	assert.Contains(t, text, "MWh")
}
