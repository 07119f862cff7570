// =============================================================================
// NEM12 Converter - Configuration Module
// =============================================================================
//
// This module loads the main application configuration.
//
// SOURCES (later sources win):
//   1. Built-in defaults (see Default)
//   2. The YAML file given with --config, if any
//   3. Environment variables prefixed with NEM12_, for example
//        NEM12_LOG_LEVEL=debug
//        NEM12_OUTPUT_DIR=/data/out
//        NEM12_PARSE_UTC_OFFSET=+09:30
//        NEM12_EXPORT_SHAPE=long
//   4. Command-line flags, applied by the cmd package
//
// The merged configuration is validated with struct tags before use.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "NEM12"

// MaxUTCOffset bounds the configured parse offset.
const MaxUTCOffset = 14 * time.Hour

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for NEM12 files in batch mode.
	// Default: "./input"
	InputDir string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`

	// OutputDir receives converted files, the summary log and the error log.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`

	// InputArchiveDir receives input files after successful conversion.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir" envconfig:"INPUT_ARCHIVE_DIR" validate:"required"`

	// OutputArchiveDir is where old output files are moved by housekeeping.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir" envconfig:"OUTPUT_ARCHIVE_DIR" validate:"required"`

	// InputPatterns are glob patterns matched against file names in InputDir.
	// Default: ["*.csv", "*.CSV", "*.nem12", "*.NEM12"]
	InputPatterns []string `yaml:"input_patterns" envconfig:"INPUT_PATTERNS" validate:"min=1,dive,required"`

	// ArchiveInputs moves each successfully converted input into
	// InputArchiveDir.
	// Default: true
	ArchiveInputs bool `yaml:"archive_inputs" envconfig:"ARCHIVE_INPUTS"`

	// ArchiveRetention removes archived files older than this after a batch
	// run, for example "720h". Zero keeps archives forever.
	// Default: 0
	ArchiveRetention time.Duration `yaml:"archive_retention" envconfig:"ARCHIVE_RETENTION" validate:"min=0"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// LogFormat selects the log handler.
	// Valid values: "text", "json"
	// Default: "text"
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT" validate:"oneof=text json"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the format for output file names.
	// Placeholders:
	//   {stem}      - Input file name without extension
	//   {shape}     - Output shape (wide/long)
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {uuid}      - A random UUID
	//   {ext}       - Extension of the output format (csv/json/xlsx)
	// Default: "{stem}_{shape}_{timestamp}.{ext}"
	OutputNameFormat string `yaml:"output_name_format" envconfig:"OUTPUT_NAME_FORMAT" validate:"required"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of files converted at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"min=1,max=64"`

	// ContinueOnError keeps converting the remaining files after a failure.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error" envconfig:"CONTINUE_ON_ERROR"`

	// UnitsWorkbook is an optional XLSX workbook extending the unit table.
	UnitsWorkbook string `yaml:"units_workbook" envconfig:"UNITS_WORKBOOK"`

	Parse   ParseConfig   `yaml:"parse" envconfig:"PARSE"`
	Quality QualityConfig `yaml:"quality" envconfig:"QUALITY"`
	Export  ExportConfig  `yaml:"export" envconfig:"EXPORT"`
}

// ParseConfig holds parser settings.
type ParseConfig struct {
	// UTCOffset is the zone offset NEM12 dates are read in, as "+10:00".
	// Default: "+10:00"
	UTCOffset string `yaml:"utc_offset" envconfig:"UTC_OFFSET" validate:"utcoffset"`
}

// QualityConfig holds quality resolution settings.
type QualityConfig struct {
	// AllowOverlappingEvents lets the first of overlapping 400 records win
	// instead of skipping the block.
	// Default: false
	AllowOverlappingEvents bool `yaml:"allow_overlapping_events" envconfig:"ALLOW_OVERLAPPING_EVENTS"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	// Format is one of "csv", "json", "xlsx".
	// Default: "csv"
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=csv json xlsx"`

	// Shape is one of "wide", "long".
	// Default: "wide"
	Shape string `yaml:"shape" envconfig:"SHAPE" validate:"oneof=wide long"`

	// NMI and NMISuffix restrict export to matching blocks when set.
	NMI       string `yaml:"nmi" envconfig:"NMI"`
	NMISuffix string `yaml:"nmi_suffix" envconfig:"NMI_SUFFIX"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the configuration used when no file is given.
func Default() *MainConfig {
	config := &MainConfig{
		ArchiveInputs:   true,
		ContinueOnError: true,
	}
	applyMainConfigDefaults(config)
	return config
}

// applyMainConfigDefaults sets default values for any unset string or numeric
// option. Booleans are defaulted in Default, before the file is read.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = "./output_archive"
	}
	if len(config.InputPatterns) == 0 {
		config.InputPatterns = []string{"*.csv", "*.CSV", "*.nem12", "*.NEM12"}
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{stem}_{shape}_{timestamp}.{ext}"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.Parse.UTCOffset == "" {
		config.Parse.UTCOffset = "+10:00"
	}
	if config.Export.Format == "" {
		config.Export.Format = "csv"
	}
	if config.Export.Shape == "" {
		config.Export.Shape = "wide"
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration.
//
// PARAMETERS:
//   - configPath: The path to a YAML file, or "" for defaults only.
//
// RETURNS:
//   - A pointer to the merged and validated MainConfig.
//   - An error if the file cannot be read or parsed, an environment
//     override is malformed, or validation fails.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyMainConfigDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks every option against its struct tag rules.
func (c *MainConfig) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, formatFieldError(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

// newValidator builds a validator that reports YAML key paths.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("utcoffset", func(fl validator.FieldLevel) bool {
		_, err := ParseUTCOffset(fl.Field().String())
		return err == nil
	})

	return v
}

func formatFieldError(fe validator.FieldError) string {
	// Namespace is "MainConfig.export.format"; drop the struct name.
	key := fe.Namespace()
	if i := strings.Index(key, "."); i >= 0 {
		key = key[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "utcoffset":
		return fmt.Sprintf("%s must be an offset such as +10:00, got %q", key, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}

// =============================================================================
// UTC OFFSET
// =============================================================================

// offsetLayouts are the accepted spellings of a UTC offset.
var offsetLayouts = []string{"Z07:00", "Z0700", "Z07"}

// ParseUTCOffset parses "+10:00", "+1000", "+10", "-03:30" or "Z".
func ParseUTCOffset(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	for _, layout := range offsetLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		_, seconds := t.Zone()
		offset := time.Duration(seconds) * time.Second
		if offset > MaxUTCOffset || offset < -MaxUTCOffset {
			return 0, fmt.Errorf("UTC offset %q is out of range", value)
		}
		return offset, nil
	}
	return 0, fmt.Errorf("invalid UTC offset %q", value)
}

// UTCOffset returns the parsed parse.utc_offset.
func (c *MainConfig) UTCOffset() (time.Duration, error) {
	return ParseUTCOffset(c.Parse.UTCOffset)
}
