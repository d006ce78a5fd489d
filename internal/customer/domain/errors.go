package domain

import "errors"

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidTaxNumber = errors.New("invalid_tax_number")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
	ErrConflict         = errors.New("conflict")
	ErrDuplicateKey     = errors.New("duplicate_key")
	ErrIDExhausted      = errors.New("id_exhausted")
	ErrUnsupported      = errors.New("not_implemented")
)

// ValidationError describes a rejected field value. It unwraps to one of the
// Err* sentinels above.
type ValidationError struct {
	Field   string
	Message string
	err     error
}

func newValidationError(field string, sentinel error, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, err: sentinel}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// Code returns the machine readable code of the wrapped sentinel.
func (e *ValidationError) Code() string {
	if e.err == nil {
		return "invalid_request"
	}
	return e.err.Error()
}

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
