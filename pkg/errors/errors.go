package errors

import (
	stderrors "errors"
	"fmt"
)

const (
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeInvalidReq    = "INVALID_REQUEST"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeSessionBusy   = "SESSION_BUSY"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeGeneration    = "GENERATION_ERROR"
	ErrCodeCredential    = "CREDENTIAL_ERROR"
	ErrCodeInvalidData   = "INVALID_CONTENT"
	ErrCodeUnavailable   = "SERVICE_UNAVAILABLE"
	ErrCodeSchema        = "SCHEMA_VALIDATION_ERROR"
	ErrCodeGeminiAPI     = "GEMINI_API_ERROR"
	ErrCodeImageGenAPI   = "IMAGE_GEN_API_ERROR"
	ErrCodeExport        = "EXPORT_ERROR"
	ErrCodeStorage       = "STORAGE_ERROR"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code string) bool {
	_, ok := Find(err, code)
	return ok
}

// Code returns the code of the outermost AppError in err's chain, or
// ErrCodeInternal when there is none.
func Code(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Find returns the first AppError in err's chain carrying code.
func Find(err error, code string) (*AppError, bool) {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return appErr, true
		}
		err = stderrors.Unwrap(err)
	}
	return nil, false
}
