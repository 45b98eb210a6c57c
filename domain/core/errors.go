package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Loader errors. Fatal for the whole run.
	ErrSchema     = errors.New("schema error")
	ErrType       = errors.New("type error")
	ErrConstraint = errors.New("constraint violated")

	// Transform errors. Fatal for the enclosing pipeline.
	ErrDomain            = errors.New("value outside function domain")
	ErrUnknownLevel      = errors.New("unknown factor level")
	ErrEmptyResult       = errors.New("empty result")
	ErrContrastImbalance = errors.New("contrast coding does not sum to zero")

	// Fitting errors. ErrSingularFit and ErrConvergence are only ever attached
	// to a fitted model as flags; ErrRankDeficient marks a model that could not
	// be fitted at all.
	ErrConvergence   = errors.New("model failed to converge")
	ErrSingularFit   = errors.New("singular fit")
	ErrRankDeficient = errors.New("fixed-effects design is rank deficient")

	// Comparison errors. Fatal for the enclosing pipeline.
	ErrDegenerateComparison = errors.New("degenerate model comparison")

	ErrNotFound = errors.New("resource not found")
)

// Error constructors with context
func NewSchemaError(column string) error {
	return fmt.Errorf("%w: missing column %q", ErrSchema, column)
}

func NewTypeError(row int, column, value string) error {
	return fmt.Errorf("%w: row %d column %q: %q is not numeric", ErrType, row, column, value)
}

func NewConstraintError(row int, reason string) error {
	return fmt.Errorf("%w: row %d: %s", ErrConstraint, row, reason)
}

func NewUnknownLevelError(field, label string) error {
	return fmt.Errorf("%w: %s=%q", ErrUnknownLevel, field, label)
}

// IsLoadError reports whether err aborts the whole analysis run.
func IsLoadError(err error) bool {
	return errors.Is(err, ErrSchema) ||
		errors.Is(err, ErrType) ||
		errors.Is(err, ErrConstraint)
}

// IsTransformError reports whether err came from a transform step.
func IsTransformError(err error) bool {
	return errors.Is(err, ErrDomain) ||
		errors.Is(err, ErrUnknownLevel) ||
		errors.Is(err, ErrEmptyResult) ||
		errors.Is(err, ErrContrastImbalance)
}
