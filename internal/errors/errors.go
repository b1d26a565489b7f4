// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrAlertNotFound    = errors.New("alert not found")
	ErrFavoriteNotFound = errors.New("favorite not found")
	ErrCoinNotFound     = errors.New("coin not found")
	ErrInvalidTarget    = errors.New("invalid target price")
	ErrInvalidDirection = errors.New("invalid alert direction")
	ErrRateLimited      = errors.New("rate limited")
	ErrUpstream         = errors.New("upstream error")
	ErrConnectionFailed = errors.New("connection failed")
	ErrCircuitOpen      = errors.New("quote source circuit open")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDatabaseError    = errors.New("database error")
	ErrInputValidation  = errors.New("input validation failed")
	ErrMonitorRunning   = errors.New("monitor already running")

	// ErrUpstreamUnavailable is the retryable kind of ErrUpstream (5xx).
	ErrUpstreamUnavailable = fmt.Errorf("%w: service unavailable", ErrUpstream)
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match any validation failure with ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	CoinID   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.CoinID, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.CoinID, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, coinID, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		CoinID:   coinID,
		Message:  message,
		Err:      err,
	}
}

// SourceError represents a failure talking to the quote provider.
type SourceError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source error [%s] status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("source error [%s]: %v", e.Endpoint, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a new SourceError.
func NewSourceError(endpoint string, statusCode int, err error) *SourceError {
	return &SourceError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Severity classifies how the alert loop reacts to a cycle failure.
type Severity int

const (
	// Recoverable failures abort the current cycle only.
	Recoverable Severity = iota
	// Fatal failures stop the loop.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CycleError represents a failed evaluation cycle.
type CycleError struct {
	Stage    string
	Severity Severity
	Err      error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle error [%s] %s: %v", e.Severity, e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// NewCycleError creates a new CycleError.
func NewCycleError(stage string, severity Severity, err error) *CycleError {
	return &CycleError{
		Stage:    stage,
		Severity: severity,
		Err:      err,
	}
}

// IsFatal reports whether err carries a fatal CycleError.
func IsFatal(err error) bool {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Severity == Fatal
	}
	return false
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
