// Package apperror defines the typed failures the chat core can surface.
// The REST layer maps them to coded responses; the realtime gateway
// flattens them to a plain error event message.
package apperror

import "errors"

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeStateConflict  = "STATE_CONFLICT"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeConfiguration  = "CONFIGURATION_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
)

type AppError struct {
	Code    string
	Message string
	Status  int
}

func (e *AppError) Error() string {
	return e.Message
}

func NewValidation(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Status: 400}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, Status: 404}
}

func NewStateConflict(message string) *AppError {
	return &AppError{Code: CodeStateConflict, Message: message, Status: 409}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message, Status: 403}
}

func NewAuthentication(message string) *AppError {
	return &AppError{Code: CodeAuthentication, Message: message, Status: 401}
}

func NewConfiguration(message string) *AppError {
	return &AppError{Code: CodeConfiguration, Message: message, Status: 500}
}

// From unwraps err into an AppError when possible.
func From(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func is(err error, code string) bool {
	appErr, ok := From(err)
	return ok && appErr.Code == code
}

func IsValidation(err error) bool     { return is(err, CodeValidation) }
func IsNotFound(err error) bool       { return is(err, CodeNotFound) }
func IsStateConflict(err error) bool  { return is(err, CodeStateConflict) }
func IsUnauthorized(err error) bool   { return is(err, CodeUnauthorized) }
func IsConfiguration(err error) bool  { return is(err, CodeConfiguration) }
func IsAuthentication(err error) bool { return is(err, CodeAuthentication) }
