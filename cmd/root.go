// =============================================================================
// NEM12 Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (nem12)
//   ├── convertCmd  (nem12 convert)
//   ├── validateCmd (nem12 validate)
//   ├── unitsCmd    (nem12 units)
//   └── versionCmd  (nem12 version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads the main configuration (defaults, YAML file, NEM12_* variables)
//   2. Applies the global flags (--verbose, --log-format)
//   3. Sets up structured logging on stderr
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/nem12-converter/internal/config"
	"github.com/ginjaninja78/nem12-converter/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// defaultConfigFile is read when present and --config is not given.
const defaultConfigFile = "config.yaml"

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// logFormat overrides the configured log format.
var logFormat string

// mainConfig is the loaded configuration, set before any subcommand runs.
var mainConfig *config.MainConfig

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nem12",
	Short: "NEM12 Converter - Parse AEMO NEM12 meter data into CSV, JSON or XLSX",
	Long: `NEM12 Converter parses AEMO NEM12 interval meter data files and exports
them in structured formats.

Key Features:
  - Strict parsing with line, column and field positions on every error
  - Wide export: 48 half-hour buckets per day in canonical units
  - Long export: one row per sub-interval with its resolved quality
  - CSV, JSON and XLSX output
  - Concurrent batch conversion with archival and run logs

Example Usage:
  nem12 convert meter.csv -o meter_wide.csv   # Convert one file
  nem12 convert meter.csv -s long -o -        # Long shape to stdout
  nem12 convert                               # Convert everything in input_dir
  nem12 validate meter.csv                    # Parse and lint without writing
  nem12 units                                 # Print the unit table`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initConfig(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		defaultConfigFile,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	rootCmd.PersistentFlags().StringVar(
		&logFormat,
		"log-format",
		"",
		"Log format: text or json (overrides log_format)",
	)
}

// initConfig loads the configuration and sets up logging.
//
// A missing config.yaml is not an error unless --config names it explicitly.
func initConfig(cmd *cobra.Command) error {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	loaded, err := config.LoadMainConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	if verbose {
		loaded.LogLevel = "debug"
	}
	if logFormat != "" {
		loaded.LogFormat = logFormat
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logging.Setup(loaded.LogLevel, loaded.LogFormat, cmd.ErrOrStderr())
	mainConfig = loaded
	return nil
}
