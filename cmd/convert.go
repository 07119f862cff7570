// =============================================================================
// NEM12 Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, which runs the conversion
// pipeline over one or more NEM12 files.
//
// COMMAND USAGE:
//   nem12 convert [file...] [flags]
//
// MODES:
//   With file arguments, each named file is converted. --output may name the
//   destination of a single file; "-" writes to stdout.
//   Without arguments, every file in input_dir matching input_patterns is
//   converted (batch mode). Batch mode archives converted inputs, writes a
//   summary log and an error log to output_dir, and applies
//   archive_retention.
//
// FLAGS:
//   --output, -o   : Output file for a single input ("-" for stdout)
//   --format, -f   : csv, json or xlsx
//   --shape, -s    : wide or long
//   --nmi          : Export only blocks with this NMI
//   --nmi-suffix   : Export only blocks with this NMI suffix
//   --recursive    : Scan input_dir recursively in batch mode
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/nem12-converter/internal/config"
	"github.com/ginjaninja78/nem12-converter/internal/converter"
	"github.com/ginjaninja78/nem12-converter/internal/logging"
	"github.com/ginjaninja78/nem12-converter/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// convertFlags holds the command-line overrides of the convert command.
type convertFlags struct {
	output    string
	format    string
	shape     string
	nmi       string
	nmiSuffix string
	recursive bool
}

var convertOpts convertFlags

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert [file...]",
	Short: "Convert NEM12 files to CSV, JSON or XLSX",
	Long: `The convert command parses NEM12 files and exports them.

Any parse error fails the whole file; no partial output is written for it.
NMI blocks that cannot be exported in the requested shape (for example a kW
block in the wide shape) are skipped with a warning and listed in the error
log.

Without file arguments, all files in input_dir matching input_patterns are
converted concurrently (up to max_concurrency at once). On success:
  - The output is placed in output_dir
  - The input is moved to input_archive_dir (when archive_inputs is set)
On failure the input stays in place and processing continues for other files
unless continue_on_error is false.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		applyConvertFlags(cmd, mainConfig, convertOpts)
		if err := mainConfig.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
		return runConvert(cmd.Context(), mainConfig, args, convertOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(convertCmd)

	flags := convertCmd.Flags()
	flags.StringVarP(&convertOpts.output, "output", "o", "", `Output file for a single input ("-" for stdout)`)
	flags.StringVarP(&convertOpts.format, "format", "f", "", "Output format: csv, json or xlsx")
	flags.StringVarP(&convertOpts.shape, "shape", "s", "", "Output shape: wide or long")
	flags.StringVar(&convertOpts.nmi, "nmi", "", "Export only blocks with this NMI")
	flags.StringVar(&convertOpts.nmiSuffix, "nmi-suffix", "", "Export only blocks with this NMI suffix")
	flags.BoolVar(&convertOpts.recursive, "recursive", false, "Scan input_dir recursively in batch mode")
}

// applyConvertFlags copies the flags the user set onto cfg.
func applyConvertFlags(cmd *cobra.Command, cfg *config.MainConfig, opts convertFlags) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Export.Format = opts.format
	}
	if flags.Changed("shape") {
		cfg.Export.Shape = opts.shape
	}
	if flags.Changed("nmi") {
		cfg.Export.NMI = opts.nmi
	}
	if flags.Changed("nmi-suffix") {
		cfg.Export.NMISuffix = opts.nmiSuffix
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runConvert converts files, or the input directory when files is empty.
//
// RETURNS:
//   - An error if the run cannot start, or if any file failed.
func runConvert(ctx context.Context, cfg *config.MainConfig, files []string, opts convertFlags, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()
	batch := len(files) == 0

	if opts.output != "" && len(files) != 1 {
		return fmt.Errorf("--output requires exactly one input file")
	}

	// Status lines must not mix with converted data on stdout.
	report := stdout
	if opts.output == converter.StdoutPath {
		report = stderr
	}

	// =========================================================================
	// STEP 1: PREPARE
	// =========================================================================

	table, err := converter.LoadUnits(cfg)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx)

	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	fm.ArchiveOnSuccess = cfg.ArchiveInputs

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	if batch {
		if err := fm.EnsureDirectories(); err != nil {
			return err
		}
		if opts.recursive {
			files, err = fm.DiscoverInputFilesRecursive(cfg.InputPatterns)
		} else {
			files, err = fm.DiscoverInputFiles(cfg.InputPatterns)
		}
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		if len(files) == 0 {
			fmt.Fprintf(report, "No NEM12 files found in %s\n", cfg.InputDir)
			return nil
		}
	}

	logger.Info("starting conversion", "files", len(files), "batch", batch,
		"format", cfg.Export.Format, "shape", cfg.Export.Shape)

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================
	// Each file is parsed independently. With continue_on_error unset the
	// first failure cancels files that have not started yet.

	converterOpts := []converter.Option{converter.WithUnits(table), converter.WithStdout(stdout)}
	if opts.output != "" {
		converterOpts = append(converterOpts, converter.WithOutputPath(opts.output))
	}
	if batch {
		converterOpts = append(converterOpts, converter.WithFileManager(fm))
	}

	results := make([]converter.Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrency)

	for i, file := range files {
		g.Go(func() error {
			results[i] = converter.New(file, cfg, converterOpts...).Run(gctx)
			if results[i].Error != nil && !cfg.ContinueOnError {
				return results[i].Error
			}
			return nil
		})
	}
	_ = g.Wait()

	// =========================================================================
	// STEP 4: COLLECT RESULTS
	// =========================================================================

	summary := utils.ProcessingSummary{
		RunID:      runID,
		StartTime:  startTime,
		TotalFiles: len(files),
	}
	var errorEntries []utils.ErrorLogEntry

	for _, result := range results {
		summary.LintErrors += result.Stats.LintErrors
		summary.LintWarnings += result.Stats.LintWarnings
		errorEntries = append(errorEntries, result.ErrorLogEntries(time.Now())...)

		if result.Success {
			summary.SuccessfulFiles++
			summary.TotalBlocks += result.Stats.Blocks
			summary.TotalRows += result.Stats.Rows
			summary.SkippedBlocks += len(result.Skipped)
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:     result.FilePath,
				OutputFile:    result.OutputFile,
				ArchivePath:   result.ArchivePath,
				Blocks:        result.Stats.Blocks,
				Rows:          result.Stats.Rows,
				SkippedBlocks: len(result.Skipped),
				ProcessTime:   result.Stats.ProcessingTime,
			})
			fmt.Fprintf(report, "  ✓ %s -> %s (%d rows, %d skipped blocks)\n",
				filepath.Base(result.FilePath), result.OutputFile, result.Stats.Rows, len(result.Skipped))
			continue
		}

		summary.FailedFiles++
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    result.FilePath,
			ErrorMessage: result.Error.Error(),
			ErrorType:    converter.ErrorType(result.Error),
		})
		fmt.Fprintf(report, "  ✗ %s: %v\n", filepath.Base(result.FilePath), result.Error)
		logging.WithFields(ctx, "file", result.FilePath).Error("conversion failed", "error", result.Error)
	}
	summary.EndTime = time.Now()

	// =========================================================================
	// STEP 5: RUN LOGS AND HOUSEKEEPING
	// =========================================================================

	if batch {
		writeRunLogs(ctx, report, cfg, summary, errorEntries)
		pruneArchives(ctx, cfg)
	}

	fmt.Fprintf(report, "\nConverted %d of %d file(s) in %s\n",
		summary.SuccessfulFiles, summary.TotalFiles, summary.EndTime.Sub(startTime).Round(time.Millisecond))

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// writeRunLogs writes the summary log, and the error log when there is
// anything to report. Failures are logged, not returned.
func writeRunLogs(ctx context.Context, report io.Writer, cfg *config.MainConfig, summary utils.ProcessingSummary, entries []utils.ErrorLogEntry) {
	logger := logging.FromContext(ctx)

	if path, err := utils.WriteSummaryLog(summary, cfg.OutputDir); err != nil {
		logger.Warn("failed to write summary log", "error", err)
	} else {
		logger.Debug("wrote summary log", "path", path)
	}

	path, err := utils.WriteErrorLog(entries, cfg.OutputDir)
	if err != nil {
		logger.Warn("failed to write error log", "error", err)
		return
	}
	if path != "" {
		fmt.Fprintf(report, "\nErrors have been logged to %s\n", path)
	}
}

// pruneArchives applies archive_retention to both archive directories.
func pruneArchives(ctx context.Context, cfg *config.MainConfig) {
	if cfg.ArchiveRetention <= 0 {
		return
	}
	logger := logging.FromContext(ctx)

	for _, dir := range []string{cfg.InputArchiveDir, cfg.OutputArchiveDir} {
		removed, err := utils.CleanOldArchives(dir, cfg.ArchiveRetention)
		if err != nil {
			logger.Warn("failed to prune archive", "dir", dir, "error", err)
			continue
		}
		if removed > 0 {
			logger.Info("pruned archive", "dir", dir, "removed", removed)
		}
	}
}
