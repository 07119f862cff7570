// =============================================================================
// NEM12 Converter - Quality Resolver
// =============================================================================
//
// A 300 record carries one quality triple (method, reason code, reason
// description) for the whole day. When the day is followed by 400 records the
// day-level triple is overridden sub-interval by sub-interval:
//
//   300,20240101,...,V,,,...       day quality "V" (variable)
//   400,1,20,A,,                   sub-intervals 1..20  -> A
//   400,21,48,S14,32,Estimated     sub-intervals 21..48 -> S14 / 32
//
// RESOLUTION RULES:
//   - No events: every sub-interval inherits the day-level triple.
//   - Events present: sub-interval i takes the triple of the first event (in
//     file order) whose inclusive range contains i.
//   - A sub-interval no event covers is a QualityResolutionError.
//   - A sub-interval covered by two events is a QualityResolutionError
//     unless overlaps are allowed, in which case the first event wins.
//
// =============================================================================

package export

import (
	"fmt"
	"time"

	"github.com/ginjaninja78/nem12-converter/internal/nem12"
)

// VariableQuality is the method reported for a wide-shape bucket whose
// sub-intervals do not share one quality triple.
const VariableQuality = "V"

// Quality is the resolved quality triple of one sub-interval.
type Quality struct {
	Method            string `json:"qualityMethod"`
	ReasonCode        *int   `json:"reasonCode"`
	ReasonDescription string `json:"reasonDescription"`
}

// Equal reports whether two triples are identical.
func (q Quality) Equal(other Quality) bool {
	if q.Method != other.Method || q.ReasonDescription != other.ReasonDescription {
		return false
	}
	if q.ReasonCode == nil || other.ReasonCode == nil {
		return q.ReasonCode == nil && other.ReasonCode == nil
	}
	return *q.ReasonCode == *other.ReasonCode
}

// QualityResolutionError reports an inconsistent 400 record list.
type QualityResolutionError struct {
	IntervalDate time.Time

	// Interval is the 1-based sub-interval that could not be resolved.
	Interval int

	// Overlap is true when two events cover Interval, false when none does.
	Overlap bool
}

// Error implements the error interface.
func (e *QualityResolutionError) Error() string {
	date := e.IntervalDate.Format("2006-01-02")
	if e.Overlap {
		return fmt.Sprintf("quality events overlap at interval %d on %s", e.Interval, date)
	}
	return fmt.Sprintf("no quality event covers interval %d on %s", e.Interval, date)
}

// ResolveOptions controls quality resolution.
type ResolveOptions struct {
	// AllowOverlappingEvents lets the first of several covering events win
	// instead of failing.
	AllowOverlappingEvents bool
}

// ResolveQuality returns one quality triple per sub-interval of day, in
// sub-interval order.
//
// PARAMETERS:
//   - day: the interval day whose readings define the number of sub-intervals
//   - opts: overlap handling
//
// RETURNS:
//   - []Quality: len(day.Readings) triples
//   - error: *QualityResolutionError for a gap or disallowed overlap
func ResolveQuality(day *nem12.IntervalDay, opts ResolveOptions) ([]Quality, error) {
	n := len(day.Readings)
	out := make([]Quality, n)

	if len(day.IntervalEvents) == 0 {
		dayQuality := Quality{
			Method:            day.QualityMethod,
			ReasonCode:        day.ReasonCode,
			ReasonDescription: day.ReasonDescription,
		}
		for i := range out {
			out[i] = dayQuality
		}
		return out, nil
	}

	for i := 1; i <= n; i++ {
		var match *nem12.IntervalEvent
		for _, event := range day.IntervalEvents {
			if !event.Covers(i) {
				continue
			}
			if match == nil {
				match = event
				continue
			}
			if !opts.AllowOverlappingEvents {
				return nil, &QualityResolutionError{IntervalDate: day.IntervalDate, Interval: i, Overlap: true}
			}
			break
		}

		if match == nil {
			return nil, &QualityResolutionError{IntervalDate: day.IntervalDate, Interval: i}
		}
		out[i-1] = Quality{
			Method:            match.QualityMethod,
			ReasonCode:        match.ReasonCode,
			ReasonDescription: match.ReasonDescription,
		}
	}

	return out, nil
}

// mergeQualities collapses the triples of one bucket into one. Identical
// triples are kept; mixed triples become VariableQuality.
func mergeQualities(qualities []Quality) Quality {
	if len(qualities) == 0 {
		return Quality{}
	}
	first := qualities[0]
	for _, q := range qualities[1:] {
		if !q.Equal(first) {
			return Quality{Method: VariableQuality}
		}
	}
	return first
}
