package things

import (
	"errors"
	"fmt"
)

// ThingError represents errors related to thing operations
type ThingError struct {
	Type    string
	ThingID int64
	Message string
	Fields  ValidationErrors
	Cause   error
}

func (e *ThingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("thing error [%s]: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("thing error [%s]: %s", e.Type, e.Message)
}

func (e *ThingError) Unwrap() error {
	return e.Cause
}

// Thing error types
const (
	ThingErrorTypeNotFound         = "not_found"
	ThingErrorTypeValidationFailed = "validation_failed"
	ThingErrorTypeBadRequest       = "bad_request"
)

// NewThingNotFoundError creates an error for when a thing does not exist
func NewThingNotFoundError(id int64) *ThingError {
	return &ThingError{
		Type:    ThingErrorTypeNotFound,
		ThingID: id,
		Message: fmt.Sprintf("Couldn't find Thing with 'id'=%d", id),
	}
}

// NewThingValidationError creates an error carrying per-field messages
func NewThingValidationError(id int64, fields ValidationErrors) *ThingError {
	return &ThingError{
		Type:    ThingErrorTypeValidationFailed,
		ThingID: id,
		Message: "Validation failed",
		Fields:  fields,
	}
}

// NewNameTakenError creates the validation error raised on a duplicate name
func NewNameTakenError(id int64, cause error) *ThingError {
	e := NewThingValidationError(id, ValidationErrors{"name": {"has already been taken"}})
	e.Cause = cause
	return e
}

// NewBadRequestError creates an error for malformed or incomplete requests
func NewBadRequestError(message string) *ThingError {
	return &ThingError{
		Type:    ThingErrorTypeBadRequest,
		Message: message,
	}
}

// NewMissingParamsError is returned when the "thing" group is absent from a request
func NewMissingParamsError() *ThingError {
	return NewBadRequestError("param is missing or the value is empty: thing")
}

func hasType(err error, typ string) bool {
	var te *ThingError
	return errors.As(err, &te) && te.Type == typ
}

// IsNotFound reports whether err is a not_found ThingError
func IsNotFound(err error) bool {
	return hasType(err, ThingErrorTypeNotFound)
}

// IsValidation reports whether err is a validation_failed ThingError
func IsValidation(err error) bool {
	return hasType(err, ThingErrorTypeValidationFailed)
}

// IsBadRequest reports whether err is a bad_request ThingError
func IsBadRequest(err error) bool {
	return hasType(err, ThingErrorTypeBadRequest)
}
