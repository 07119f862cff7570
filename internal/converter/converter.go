// =============================================================================
// NEM12 Converter - Converter Module
// =============================================================================
//
// This module contains the conversion pipeline for a single NEM12 file.
//
// CONVERSION PIPELINE:
//   1. Read and parse the NEM12 file (any parse error fails the file)
//   2. Lint the parsed document and log the findings
//   3. Export the selected shape in the selected format
//   4. Write the output file
//   5. Archive the input and output files
//
// CONCURRENCY:
//   A Converter handles one file and shares nothing mutable with other
//   converters; the unit table and configuration are read-only. Batch mode
//   runs one Converter per file concurrently.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ginjaninja78/nem12-converter/internal/config"
	"github.com/ginjaninja78/nem12-converter/internal/export"
	"github.com/ginjaninja78/nem12-converter/internal/logging"
	"github.com/ginjaninja78/nem12-converter/internal/nem12"
	"github.com/ginjaninja78/nem12-converter/internal/units"
	"github.com/ginjaninja78/nem12-converter/internal/validation"
	"github.com/ginjaninja78/nem12-converter/pkg/utils"
)

// StdoutPath as an output path writes the converted data to standard output.
const StdoutPath = "-"

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFile is the path to the generated file, StdoutPath, or empty if
	// processing failed.
	OutputFile string

	// ArchivePath is where the input file was moved, if it was archived.
	ArchivePath string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Skipped holds one *export.BlockError per NMI block left out of the
	// output. Skipped blocks do not fail the file.
	Skipped []error

	// Findings are the lint findings of the parsed document.
	Findings []*validation.Finding

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// Blocks is the number of NMI blocks that passed the export filter.
	Blocks int

	// Rows is the number of rows written.
	Rows int

	LintErrors   int
	LintWarnings int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter handles the conversion of a single NEM12 file.
type Converter struct {
	inputPath  string
	outputPath string
	mainConfig *config.MainConfig
	units      *units.Table
	files      *utils.FileManager
	stdout     io.Writer
}

// Option configures a Converter.
type Option func(*Converter)

// WithOutputPath writes to path instead of a generated name in the output
// directory. StdoutPath writes to standard output.
func WithOutputPath(path string) Option {
	return func(c *Converter) {
		c.outputPath = path
	}
}

// WithUnits sets the unit table used for lint and export.
func WithUnits(table *units.Table) Option {
	return func(c *Converter) {
		if table != nil {
			c.units = table
		}
	}
}

// WithFileManager enables archiving through fm after a successful
// conversion.
func WithFileManager(fm *utils.FileManager) Option {
	return func(c *Converter) {
		c.files = fm
	}
}

// WithStdout replaces os.Stdout for StdoutPath output.
func WithStdout(w io.Writer) Option {
	return func(c *Converter) {
		c.stdout = w
	}
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - inputPath: The path to the NEM12 file.
//   - mainConfig: The application configuration, with any command-line
//     overrides already applied.
//   - opts: Optional settings.
func New(inputPath string, mainConfig *config.MainConfig, opts ...Option) *Converter {
	c := &Converter{
		inputPath:  inputPath,
		mainConfig: mainConfig,
		units:      units.Default(),
		stdout:     os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadUnits returns the built-in unit table, extended with the configured
// units workbook if there is one.
func LoadUnits(mainConfig *config.MainConfig) (*units.Table, error) {
	if mainConfig.UnitsWorkbook == "" {
		return units.Default(), nil
	}

	extra, err := units.LoadWorkbook(mainConfig.UnitsWorkbook)
	if err != nil {
		return nil, fmt.Errorf("failed to load units workbook: %w", err)
	}

	table, err := units.Default().Extend(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to extend unit table: %w", err)
	}
	return table, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline for the file.
//
// Run never panics on bad input; every failure is reported through
// Result.Error.
func (c *Converter) Run(ctx context.Context) (result Result) {
	startTime := time.Now()
	result.FilePath = c.inputPath
	logger := logging.WithFields(ctx, "file", c.inputPath)

	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
	}()

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	format, shape, err := c.outputKind()
	if err != nil {
		result.Error = err
		return result
	}

	// =========================================================================
	// STEP 1: PARSE
	// =========================================================================

	logger.Info("processing file", "format", format, "shape", shape)

	doc, err := c.parse()
	if err != nil {
		result.Error = err
		return result
	}

	logger.Debug("parsed document", "nmi_blocks", len(doc.NMIBlocks))

	// =========================================================================
	// STEP 2: LINT
	// =========================================================================

	lint := validation.NewValidatorWithOptions(validation.ValidationOptions{
		AllowOverlappingEvents: c.mainConfig.Quality.AllowOverlappingEvents,
		Units:                  c.units,
	}).ValidateDocument(doc)

	result.Findings = lint.Findings
	result.Stats.LintErrors = lint.ErrorCount
	result.Stats.LintWarnings = lint.WarningCount
	logFindings(ctx, logger, lint.Findings)

	// =========================================================================
	// STEP 3 + 4: EXPORT AND WRITE
	// =========================================================================

	exporter := export.New(
		export.WithUnits(c.units),
		export.WithFilter(export.Filter{
			NMI:       c.mainConfig.Export.NMI,
			NMISuffix: c.mainConfig.Export.NMISuffix,
		}),
		export.WithAllowOverlappingEvents(c.mainConfig.Quality.AllowOverlappingEvents),
	)

	outputPath := c.resolveOutputPath(format, shape)
	summary, err := c.writeOutput(outputPath, func(w io.Writer) (export.Summary, error) {
		return exporter.Write(w, doc, format, shape)
	})
	if err != nil {
		result.Error = err
		return result
	}

	result.OutputFile = outputPath
	result.Skipped = summary.Skipped
	result.Stats.Blocks = summary.Blocks
	result.Stats.Rows = summary.Rows

	for _, skipped := range summary.Skipped {
		var blockErr *export.BlockError
		if errors.As(skipped, &blockErr) {
			logger.Warn("skipped NMI block", "nmi", blockErr.NMI, "nmi_suffix", blockErr.NMISuffix,
				"uom", blockErr.UOM, "shape", blockErr.Shape, "error", blockErr.Err)
		} else {
			logger.Warn("skipped NMI block", "error", skipped)
		}
	}
	if summary.Blocks == 0 {
		logger.Warn("no NMI block matches the export filter",
			"nmi", c.mainConfig.Export.NMI, "nmi_suffix", c.mainConfig.Export.NMISuffix)
	}

	logger.Info("wrote output", "output", outputPath, "shape", shape, "rows", summary.Rows)

	// =========================================================================
	// STEP 5: ARCHIVE
	// =========================================================================
	// A failed archive is logged but does not fail a converted file.

	if c.files != nil && c.files.ArchiveOnSuccess {
		archived, err := c.files.ArchiveInputFile(c.inputPath)
		if err != nil {
			logger.Warn("failed to archive input file", "error", err)
		} else {
			result.ArchivePath = archived
		}

		if outputPath != StdoutPath {
			if _, err := c.files.ArchiveOutputFile(outputPath); err != nil {
				logger.Warn("failed to archive output file", "error", err)
			}
		}
	}

	result.Success = true
	return result
}

// outputKind parses the configured format and shape.
func (c *Converter) outputKind() (export.Format, export.Shape, error) {
	format, err := export.ParseFormat(c.mainConfig.Export.Format)
	if err != nil {
		return "", "", err
	}
	shape, err := export.ParseShape(c.mainConfig.Export.Shape)
	if err != nil {
		return "", "", err
	}
	return format, shape, nil
}

// parse reads the input file into a document.
func (c *Converter) parse() (*nem12.Document, error) {
	offset, err := c.mainConfig.UTCOffset()
	if err != nil {
		return nil, err
	}

	file, err := os.Open(c.inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	doc, err := nem12.ParseReader(file, nem12.WithUTCOffset(offset))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(c.inputPath), err)
	}
	return doc, nil
}

// resolveOutputPath returns the explicit output path, or a generated name in
// the output directory.
func (c *Converter) resolveOutputPath(format export.Format, shape export.Shape) string {
	if c.outputPath != "" {
		return c.outputPath
	}

	shapeName := string(shape)
	if format == export.FormatJSON {
		shapeName = "document"
	}

	fileName := utils.GenerateOutputFileName(c.mainConfig.OutputNameFormat, map[string]string{
		"stem":  utils.FileStem(c.inputPath),
		"shape": shapeName,
		"ext":   format.Extension(),
	})
	return filepath.Join(c.mainConfig.OutputDir, fileName)
}

// writeOutput runs write against the output destination. A partially
// written file is removed on failure.
func (c *Converter) writeOutput(outputPath string, write func(io.Writer) (export.Summary, error)) (export.Summary, error) {
	if outputPath == StdoutPath {
		summary, err := write(c.stdout)
		if err != nil {
			return summary, fmt.Errorf("failed to write output: %w", err)
		}
		return summary, nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return export.Summary{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return export.Summary{}, fmt.Errorf("failed to create output file: %w", err)
	}

	summary, err := write(file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(outputPath)
		return summary, fmt.Errorf("failed to write output: %w", err)
	}

	return summary, nil
}

func logFindings(ctx context.Context, logger *slog.Logger, findings []*validation.Finding) {
	for _, f := range findings {
		level := slog.LevelDebug
		if f.Severity == validation.SeverityError {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "lint finding",
			"rule", f.Rule, "nmi", f.NMI, "nmi_suffix", f.NMISuffix, "message", f.Message)
	}
}

// =============================================================================
// ERROR REPORTING
// =============================================================================

// ErrorType classifies a file failure for the error log.
func ErrorType(err error) string {
	var (
		tokenizeErr *nem12.TokenizeError
		decodeErr   *nem12.DecodeError
		assemblyErr *nem12.AssemblyError
		pathErr     *os.PathError
	)
	switch {
	case errors.As(err, &tokenizeErr):
		return "tokenize"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &assemblyErr):
		return "assembly"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &pathErr):
		return "io"
	default:
		return "conversion"
	}
}

// ErrorLogEntries lists the file failure, the skipped blocks and the lint
// errors of r as error log entries.
func (r Result) ErrorLogEntries(now time.Time) []utils.ErrorLogEntry {
	var entries []utils.ErrorLogEntry
	fileName := filepath.Base(r.FilePath)

	if r.Error != nil {
		entry := utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     fileName,
			ErrorType:    ErrorType(r.Error),
			ErrorMessage: r.Error.Error(),
		}
		fillPosition(&entry, r.Error)
		entries = append(entries, entry)
	}

	for _, skipped := range r.Skipped {
		entry := utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     fileName,
			ErrorType:    "export",
			ErrorMessage: skipped.Error(),
		}
		var blockErr *export.BlockError
		if errors.As(skipped, &blockErr) {
			entry.NMI, entry.NMISuffix = blockErr.NMI, blockErr.NMISuffix
		}
		entries = append(entries, entry)
	}

	for _, f := range r.Findings {
		if f.Severity != validation.SeverityError {
			continue
		}
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     fileName,
			ErrorType:    "lint",
			ErrorMessage: f.String(),
			NMI:          f.NMI,
			NMISuffix:    f.NMISuffix,
		})
	}

	return entries
}

func fillPosition(entry *utils.ErrorLogEntry, err error) {
	var (
		tokenizeErr *nem12.TokenizeError
		decodeErr   *nem12.DecodeError
		assemblyErr *nem12.AssemblyError
	)
	switch {
	case errors.As(err, &tokenizeErr):
		entry.Line, entry.Column = tokenizeErr.Pos.Line, tokenizeErr.Pos.Column
	case errors.As(err, &decodeErr):
		entry.Line, entry.Column = decodeErr.Pos.Line, decodeErr.Pos.Column
		entry.Indicator = indicatorName(decodeErr.Indicator)
		entry.Field = decodeErr.Field
		entry.Value = decodeErr.Value
	case errors.As(err, &assemblyErr):
		entry.Line, entry.Column = assemblyErr.Pos.Line, assemblyErr.Pos.Column
		entry.Indicator = indicatorName(assemblyErr.Indicator)
	}
}

func indicatorName(indicator nem12.RecordIndicator) string {
	if indicator <= 0 {
		return ""
	}
	return strconv.Itoa(int(indicator))
}
