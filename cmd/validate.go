// =============================================================================
// NEM12 Converter - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which parses NEM12 files and
// prints lint findings without writing any output.
//
// COMMAND USAGE:
//   nem12 validate [file...] [--strict]
//
// Without arguments, every file in input_dir matching input_patterns is
// validated.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/nem12-converter/internal/config"
	"github.com/ginjaninja78/nem12-converter/internal/converter"
	"github.com/ginjaninja78/nem12-converter/internal/nem12"
	"github.com/ginjaninja78/nem12-converter/internal/validation"
	"github.com/ginjaninja78/nem12-converter/pkg/utils"
)

// strict treats lint warnings as errors.
var strict bool

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Parse NEM12 files and report problems without converting",
	Long: `The validate command parses each file and lints the result.

A parse error makes the file invalid. Lint errors mark data that an export
would leave out (unknown units, gaps in quality events, overlapping events).
Lint warnings are informational (non-additive units, unusual interval
lengths, duplicate days, empty NMI blocks). With --strict, warnings also make
a file invalid.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(mainConfig, args, strict, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&strict, "strict", false, "Treat lint warnings as errors")
}

// runValidate validates files, or the input directory when files is empty.
func runValidate(cfg *config.MainConfig, files []string, strict bool, out io.Writer) error {
	if len(files) == 0 {
		fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
		discovered, err := fm.DiscoverInputFiles(cfg.InputPatterns)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		files = discovered
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No NEM12 files found in %s\n", cfg.InputDir)
		return nil
	}

	offset, err := cfg.UTCOffset()
	if err != nil {
		return err
	}
	table, err := converter.LoadUnits(cfg)
	if err != nil {
		return err
	}

	validator := validation.NewValidatorWithOptions(validation.ValidationOptions{
		TreatWarningsAsErrors:  strict,
		AllowOverlappingEvents: cfg.Quality.AllowOverlappingEvents,
		Units:                  table,
	})

	invalid := 0
	for _, file := range files {
		if !validateFile(out, file, offset, validator) {
			invalid++
		}
	}

	fmt.Fprintf(out, "\n%d of %d file(s) valid\n", len(files)-invalid, len(files))
	if invalid > 0 {
		return fmt.Errorf("%d file(s) failed validation", invalid)
	}
	return nil
}

// validateFile prints the findings for one file and reports whether it is
// valid.
func validateFile(out io.Writer, file string, offset time.Duration, validator *validation.Validator) bool {
	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(out, "✗ %s: %v\n", file, err)
		return false
	}

	doc, err := nem12.Parse(string(data), nem12.WithUTCOffset(offset))
	if err != nil {
		fmt.Fprintf(out, "✗ %s: %v\n", file, err)
		return false
	}

	result := validator.ValidateDocument(doc)
	mark := "✓"
	if !result.IsValid {
		mark = "✗"
	}
	fmt.Fprintf(out, "%s %s: %d NMI block(s), %d day(s), %d error(s), %d warning(s)\n",
		mark, file, result.BlocksValidated, result.DaysValidated, result.ErrorCount, result.WarningCount)
	for _, finding := range result.Findings {
		fmt.Fprintf(out, "    %s\n", finding)
	}
	return result.IsValid
}
