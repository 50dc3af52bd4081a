// Package cadence computes next-due timestamps from cron-style expressions.
package cadence

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
)

// ErrInvalidExpression marks a cadence expression that failed to parse.
// This is fatal for the affected connector's scheduling and must be
// surfaced, never silently defaulted.
var ErrInvalidExpression = eris.New("cadence: invalid expression")

// Next returns the first occurrence of expr strictly after the anchor time.
// Expressions are standard 5-field cron (minute granularity) or descriptors
// like @hourly. The result is UTC-normalized.
func Next(expr string, after time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, eris.Wrapf(ErrInvalidExpression, "parse %q: %v", expr, err)
	}
	return sched.Next(after.UTC()), nil
}

// Validate reports whether expr parses as a cadence expression.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return eris.Wrapf(ErrInvalidExpression, "parse %q: %v", expr, err)
	}
	return nil
}
