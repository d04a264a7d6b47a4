/*
errors.go - Centralized error types for the goal engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The api package maps them to HTTP status codes; stores wrap them with
  additional context.

ERROR CATEGORIES:
  1. Validation errors - Goal definitions rejected at creation/edit time
  2. Lookup errors     - Missing goals
  3. Cycle errors      - Overlapping evaluation cycles
  4. Schema errors     - Persisted goal records that cannot be migrated

Data-unavailable and persistence failures during an evaluation cycle are
NOT returned as errors: they are logged and degrade to zero progress or
best-effort dedup (see progress.go, notification.go, analytics.go).

SEE ALSO:
  - api/handlers.go: HTTP status mapping
  - factory/goal.go: ErrUnsupportedSchema
*/
package goal

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidGoal is returned when a goal definition breaks an invariant
	// (target <= 0, malformed interval, bad milestones).
	ErrInvalidGoal = errors.New("invalid goal definition")

	// ErrGoalNotFound is returned when no goal exists for a metric kind.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrUnknownMetric is returned when input names an unknown metric kind.
	ErrUnknownMetric = errors.New("unknown metric kind")

	// ErrUnknownPeriod is returned when input names an unknown period kind.
	ErrUnknownPeriod = errors.New("unknown period kind")

	// ErrUnknownLevel is returned when input names an unknown organizational level.
	ErrUnknownLevel = errors.New("unknown goal level")

	// ErrCycleInProgress is returned when an evaluation cycle is requested
	// while another one is still running.
	ErrCycleInProgress = errors.New("evaluation cycle already in progress")

	// ErrUnsupportedSchema is returned when a stored goal record cannot be
	// migrated to the current schema.
	ErrUnsupportedSchema = errors.New("unsupported goal schema")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid goal definition: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidGoal
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidGoal) ||
		errors.Is(err, ErrUnknownMetric) ||
		errors.Is(err, ErrUnknownPeriod) ||
		errors.Is(err, ErrUnknownLevel)
}

// IsNotFound returns true if the error indicates a missing goal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGoalNotFound)
}
