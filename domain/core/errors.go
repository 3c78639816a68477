package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// Precondition errors. Every one of these aborts an estimation before any
	// posterior sample is processed.
	ErrInvalidIntensity    = errors.New("invalid selection intensity")
	ErrDimensionMismatch   = errors.New("posterior dimension mismatch")
	ErrInconsistentMapping = errors.New("inconsistent environment to region mapping")
	ErrEmptyDesign         = errors.New("empty trial design")
)

// InvalidIntensityError reports a selection intensity outside (0, 1].
type InvalidIntensityError struct {
	Intensity float64
}

func (e *InvalidIntensityError) Error() string {
	return fmt.Sprintf("%v: %v is outside (0, 1]", ErrInvalidIntensity, e.Intensity)
}

func (e *InvalidIntensityError) Unwrap() error { return ErrInvalidIntensity }

// DimensionMismatchError reports posterior draws that do not line up with the
// identity index: wrong draw count, missing column, or duplicated draw.
type DimensionMismatchError struct {
	Effect string // "g", "gl" or "gm"
	Detail string
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%v: effect %s: %s", ErrDimensionMismatch, e.Effect, e.Detail)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// InconsistentMappingError reports an environment that resolves to more than
// one region, or to none when a region analysis was requested.
type InconsistentMappingError struct {
	Environment string
	Regions     []string
}

func (e *InconsistentMappingError) Error() string {
	if len(e.Regions) == 0 {
		return fmt.Sprintf("%v: environment %q has no region", ErrInconsistentMapping, e.Environment)
	}
	return fmt.Sprintf("%v: environment %q maps to regions %v", ErrInconsistentMapping, e.Environment, e.Regions)
}

func (e *InconsistentMappingError) Unwrap() error { return ErrInconsistentMapping }

// EmptyDesignError reports a trial with no observed genotype/environment cell.
type EmptyDesignError struct {
	Reason string
}

func (e *EmptyDesignError) Error() string {
	if e.Reason == "" {
		return ErrEmptyDesign.Error()
	}
	return fmt.Sprintf("%v: %s", ErrEmptyDesign, e.Reason)
}

func (e *EmptyDesignError) Unwrap() error { return ErrEmptyDesign }

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewDimensionMismatch(effect, format string, args ...interface{}) error {
	return &DimensionMismatchError{Effect: effect, Detail: fmt.Sprintf(format, args...)}
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPreconditionError reports whether err is one of the fail-fast input errors.
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrInvalidIntensity) ||
		errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrInconsistentMapping) ||
		errors.Is(err, ErrEmptyDesign)
}
