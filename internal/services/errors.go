package services

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrEntityNotFound is returned when an operation references an unknown student or teacher id
	ErrEntityNotFound = errors.New("entity not found")
	// ErrLocationNotFound is returned when a target location id does not exist
	ErrLocationNotFound = errors.New("location not found")
	// ErrGroupNotFound is returned when a profile references an unknown group id
	ErrGroupNotFound = errors.New("group not found")
	// ErrNoDefaultLocation is returned by MarkPresent when no location is flagged as default
	ErrNoDefaultLocation = errors.New("no default location")
	// ErrNotPresent is returned when moving someone who is not at any location
	ErrNotPresent = errors.New("not present")
	// ErrPendingMoveNotFound is returned for unknown or already settled pending moves
	ErrPendingMoveNotFound = errors.New("pending move not found")
	// ErrNothingToMove is returned when a move names nobody
	ErrNothingToMove = errors.New("nothing to move")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError collects field errors of a rejected update
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	if len(err.Fields) == 0 {
		return err.Err.Error()
	}
	parts := make([]string, 0, len(err.Fields))
	for _, f := range err.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return err.Err.Error() + ": " + strings.Join(parts, "; ")
}

func (err ValidationError) Unwrap() error { return err.Err }

func studentNotFound(id string) error { return errors.Wrapf(ErrEntityNotFound, "student %s", id) }
func teacherNotFound(id string) error { return errors.Wrapf(ErrEntityNotFound, "teacher %s", id) }
