// Package apperr defines the error taxonomy shared by the dispatch core.
//
// Every error returned by the core belongs to one class: NotFound, Conflict,
// Validation or UpstreamUnavailable. Specific errors are plain sentinels; Class
// and Is resolve them to their class.
package apperr

import (
	"github.com/cockroachdb/errors"
)

// Classes.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation failed")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// NotFound. Entities outside the caller's company are reported exactly like
// absent ones.
var (
	ErrJobNotFound        = errors.New("job not found")
	ErrTechnicianNotFound = errors.New("technician not found")
)

// Conflict.
var (
	ErrDuplicateAssignment = errors.New("already assigned")
	ErrIllegalTransition   = errors.New("illegal status transition")
)

// Validation.
var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

var classes = []struct {
	class   error
	members []error
}{
	{ErrNotFound, []error{ErrNotFound, ErrJobNotFound, ErrTechnicianNotFound}},
	{ErrConflict, []error{ErrConflict, ErrDuplicateAssignment, ErrIllegalTransition}},
	{ErrValidation, []error{ErrValidation, ErrInvalidStatus, ErrInvalidPriority, ErrInvalidCoordinate}},
	{ErrUpstreamUnavailable, []error{ErrUpstreamUnavailable}},
}

// Validationf returns an ad-hoc validation error.
func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// Upstream wraps a collaborator failure.
func Upstream(err error, collaborator string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "%s unavailable", collaborator), ErrUpstreamUnavailable)
}

// Class returns the class sentinel err belongs to, or nil for unclassified errors.
func Class(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range classes {
		if errors.IsAny(err, c.members...) {
			return c.class
		}
	}
	return nil
}

// Is reports whether err belongs to class (one of the class sentinels) or
// matches it directly.
func Is(err, class error) bool {
	if errors.Is(err, class) {
		return true
	}
	return err != nil && Class(err) == class
}
