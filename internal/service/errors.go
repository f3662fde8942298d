package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound indicates the referenced record does not exist or is outside the caller's scope.
	ErrNotFound = errors.New("the requested record was not found")
	// ErrForbidden indicates the caller lacks the permission for the operation.
	ErrForbidden = errors.New("you do not have permission to perform this action")
	// ErrUnknownAction indicates an unsupported action value in a form submission.
	ErrUnknownAction = errors.New("unknown action")
)

// genericFailureMessage is shown for infrastructure failures; details go to the log only.
const genericFailureMessage = "An unexpected error occurred, please try again"

// ValidationError reports a missing, malformed or out-of-range input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError reports a domain conflict such as a duplicate natural key or a blocked deactivation.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err is an expected, user-facing failure.
func IsDomainError(err error) bool {
	var validationErr *ValidationError
	var conflictErr *ConflictError
	return errors.As(err, &validationErr) ||
		errors.As(err, &conflictErr) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnknownAction)
}

// UserMessage converts err into the text shown in the flash area.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsDomainError(err) {
		return err.Error()
	}
	return genericFailureMessage
}

// fromValidator turns the first validator failure into a ValidationError.
func fromValidator(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return invalid(field, "%s is required", humanize(field))
	case "oneof":
		return invalid(field, "%s must be one of: %s", humanize(field), fe.Param())
	case "min", "gte", "gt":
		return invalid(field, "%s is too small (minimum %s)", humanize(field), fe.Param())
	case "max", "lte", "lt":
		return invalid(field, "%s is too large (maximum %s)", humanize(field), fe.Param())
	default:
		return invalid(field, "%s is invalid", humanize(field))
	}
}

func humanize(field string) string {
	text := strings.ReplaceAll(field, "_", " ")
	if text == "" {
		return "value"
	}
	return strings.ToUpper(text[:1]) + text[1:]
}
