// Package errors defines application errors with user-facing messages and severities.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation = "E100"
	CodeStorage    = "E200"
	CodeBackend    = "E300"
	CodeInternal   = "E900"
)

// DefaultUserMessage is shown whenever an error carries no message of its own.
const DefaultUserMessage = "Произошла ошибка. Попробуйте заново."

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Неверный формат данных. %s", msg),
		Severity:    SeverityLow,
	}
}

// NewStorageError wraps failures of the session or verification stores.
func NewStorageError(op string, cause error) *AppError {
	return &AppError{
		Code:        CodeStorage,
		Message:     fmt.Sprintf("storage error: %s", op),
		UserMessage: "Временная проблема, попробуйте позже",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewBackendError wraps failures of the studio backend API.
func NewBackendError(endpoint string, cause error) *AppError {
	return &AppError{
		Code:        CodeBackend,
		Message:     fmt.Sprintf("backend error: %s", endpoint),
		UserMessage: "Сервис временно недоступен",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewInternalError wraps unexpected failures such as recovered panics.
func NewInternalError(cause error) *AppError {
	return &AppError{
		Code:        CodeInternal,
		Message:     "internal error",
		UserMessage: DefaultUserMessage,
		Severity:    SeverityCritical,
		cause:       cause,
	}
}
