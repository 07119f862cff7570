// =============================================================================
// NEM12 Converter - Document Lint
// =============================================================================
//
// This module inspects a document that has already parsed successfully and
// reports conditions that will affect its export. It never rejects a document:
// structural errors are the parser's job and abort the parse long before this
// module runs.
//
// RULES:
//   empty_block            warning  a 200 record with no 300 records
//   interval_length        warning  interval length other than 5, 15 or 30
//   wide_interval_length   error    interval length that does not divide 30;
//                                   the block is left out of the wide shape
//   duplicate_day          warning  the same interval date twice in a block
//   unknown_unit           error    unit missing from the unit table; the
//                                   block is left out of the wide shape
//   non_additive_unit      warning  instantaneous unit; the block is left out
//                                   of the wide shape
//   quality_gap            error    400 records leave a sub-interval uncovered
//   quality_overlap        error    two 400 records cover one sub-interval
//                                   (warning when overlaps are allowed)
//
// Findings are collected, not returned as errors. Each finding carries the
// NMI, suffix and, where relevant, the interval date and sub-interval.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/nem12-converter/internal/export"
	"github.com/ginjaninja78/nem12-converter/internal/nem12"
	"github.com/ginjaninja78/nem12-converter/internal/units"
)

// =============================================================================
// FINDINGS
// =============================================================================

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleEmptyBlock         = "empty_block"
	RuleIntervalLength     = "interval_length"
	RuleWideIntervalLength = "wide_interval_length"
	RuleDuplicateDay       = "duplicate_day"
	RuleUnknownUnit        = "unknown_unit"
	RuleNonAdditiveUnit    = "non_additive_unit"
	RuleQualityGap         = "quality_gap"
	RuleQualityOverlap     = "quality_overlap"
)

// Finding is a single lint result.
type Finding struct {
	// Severity is SeverityError or SeverityWarning. Errors mean some of the
	// document will be left out of an export; warnings are informational.
	Severity string

	// Rule is the rule that produced the finding.
	Rule string

	NMI       string
	NMISuffix string

	// IntervalDate is zero for block-level findings.
	IntervalDate time.Time

	// Interval is the 1-based sub-interval, or 0.
	Interval int

	Message string
}

// String renders the finding on one line.
func (f *Finding) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s NMI %s/%s", strings.ToUpper(f.Severity), f.Rule, f.NMI, f.NMISuffix)
	if !f.IntervalDate.IsZero() {
		fmt.Fprintf(&b, " %s", f.IntervalDate.Format("2006-01-02"))
	}
	if f.Interval > 0 {
		fmt.Fprintf(&b, " interval %d", f.Interval)
	}
	fmt.Fprintf(&b, ": %s", f.Message)
	return b.String()
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of a lint pass.
type ValidationResult struct {
	// IsValid is true if there are no error findings.
	IsValid bool

	Findings []*Finding

	ErrorCount   int
	WarningCount int

	BlocksValidated int
	DaysValidated   int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// TreatWarningsAsErrors makes any warning clear IsValid.
	TreatWarningsAsErrors bool

	// AllowOverlappingEvents downgrades quality_overlap to a warning.
	AllowOverlappingEvents bool

	// Units is the unit table; the built-in table is used when nil.
	Units *units.Table
}

// Validator lints parsed documents.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with default options.
func NewValidator() *Validator {
	return NewValidatorWithOptions(ValidationOptions{})
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	if options.Units == nil {
		options.Units = units.Default()
	}
	return &Validator{options: options}
}

// Validate lints doc with default options.
func Validate(doc *nem12.Document) *ValidationResult {
	return NewValidator().ValidateDocument(doc)
}

// ValidateDocument lints every block of doc.
func (v *Validator) ValidateDocument(doc *nem12.Document) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	for _, block := range doc.NMIBlocks {
		result.BlocksValidated++
		result.DaysValidated += len(block.IntervalDays)

		for _, finding := range v.ValidateBlock(block) {
			result.Findings = append(result.Findings, finding)
			if finding.Severity == SeverityError {
				result.ErrorCount++
				result.IsValid = false
			} else {
				result.WarningCount++
				if v.options.TreatWarningsAsErrors {
					result.IsValid = false
				}
			}
		}
	}

	return result
}

// ValidateBlock lints a single NMI block.
func (v *Validator) ValidateBlock(block *nem12.NMIBlock) []*Finding {
	var findings []*Finding
	add := func(severity, rule string, date time.Time, interval int, format string, args ...interface{}) {
		findings = append(findings, &Finding{
			Severity:     severity,
			Rule:         rule,
			NMI:          block.NMI,
			NMISuffix:    block.NMISuffix,
			IntervalDate: date,
			Interval:     interval,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	// =========================================================================
	// BLOCK-LEVEL RULES
	// =========================================================================

	if len(block.IntervalDays) == 0 {
		add(SeverityWarning, RuleEmptyBlock, time.Time{}, 0, "NMI block has no interval data")
	}

	switch block.IntervalLength {
	case 5, 15, 30:
	default:
		add(SeverityWarning, RuleIntervalLength, time.Time{}, 0,
			"non-standard interval length of %d minutes", block.IntervalLength)
	}
	if block.IntervalLength <= 0 || export.BucketMinutes%block.IntervalLength != 0 {
		add(SeverityError, RuleWideIntervalLength, time.Time{}, 0,
			"%d-minute intervals cannot be bucketed into half hours; block excluded from wide output", block.IntervalLength)
	}

	unit, err := v.options.Units.Lookup(block.UOM)
	switch {
	case errors.Is(err, units.ErrUnknownUnit):
		add(SeverityError, RuleUnknownUnit, time.Time{}, 0,
			"unit %q is not in the unit table; block excluded from wide output", block.UOM)
	case err == nil && !unit.Additive:
		add(SeverityWarning, RuleNonAdditiveUnit, time.Time{}, 0,
			"unit %s is not additive; block excluded from wide output", unit.Name)
	}

	// =========================================================================
	// DAY-LEVEL RULES
	// =========================================================================

	seen := make(map[string]bool, len(block.IntervalDays))
	for _, day := range block.IntervalDays {
		key := day.IntervalDate.Format("20060102")
		if seen[key] {
			add(SeverityWarning, RuleDuplicateDay, day.IntervalDate, 0, "interval date appears more than once in the block")
		}
		seen[key] = true

		if f := v.checkQuality(day); f != nil {
			add(f.Severity, f.Rule, day.IntervalDate, f.Interval, "%s", f.Message)
		}
	}

	return findings
}

// checkQuality reports the first quality resolution problem of day.
func (v *Validator) checkQuality(day *nem12.IntervalDay) *Finding {
	_, err := export.ResolveQuality(day, export.ResolveOptions{})

	var qErr *export.QualityResolutionError
	if !errors.As(err, &qErr) {
		return nil
	}
	if !qErr.Overlap {
		return &Finding{Severity: SeverityError, Rule: RuleQualityGap, Interval: qErr.Interval, Message: qErr.Error()}
	}
	if !v.options.AllowOverlappingEvents {
		return &Finding{Severity: SeverityError, Rule: RuleQualityOverlap, Interval: qErr.Interval, Message: qErr.Error()}
	}

	// Overlaps are tolerated; a gap elsewhere in the day still matters.
	if _, err := export.ResolveQuality(day, export.ResolveOptions{AllowOverlappingEvents: true}); errors.As(err, &qErr) {
		return &Finding{Severity: SeverityError, Rule: RuleQualityGap, Interval: qErr.Interval, Message: qErr.Error()}
	}
	return &Finding{Severity: SeverityWarning, Rule: RuleQualityOverlap, Interval: qErr.Interval, Message: qErr.Error()}
}
