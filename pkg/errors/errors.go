package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the machine readable name of the error code.
func (e *AppError) Kind() string {
	return e.Code.String()
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrConflict
	ErrConstraint
	ErrUnsupportedFormat
	ErrRead
	ErrEmptyBatch
	ErrNoRecordsPersisted
	ErrNoRecords
	ErrDispatch
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:           "not_found",
	ErrBadRequest:         "bad_request",
	ErrUnauthorized:       "unauthorized",
	ErrForbidden:          "forbidden",
	ErrInternal:           "internal",
	ErrValidation:         "validation_error",
	ErrConflict:           "conflict",
	ErrConstraint:         "constraint_violation",
	ErrUnsupportedFormat:  "unsupported_format",
	ErrRead:               "read_error",
	ErrEmptyBatch:         "empty_batch",
	ErrNoRecordsPersisted: "no_records_persisted",
	ErrNoRecords:          "no_records",
	ErrDispatch:           "dispatch_error",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: ErrForbidden, Message: message}
}

func Validation(message string) *AppError {
	return &AppError{Code: ErrValidation, Message: message}
}

func Conflict(message string, err error) *AppError {
	return &AppError{Code: ErrConflict, Message: message, Err: err}
}

func Constraint(err error) *AppError {
	return &AppError{Code: ErrConstraint, Message: "constraint violation", Err: err}
}

func UnsupportedFormat(ext string) *AppError {
	return &AppError{
		Code:    ErrUnsupportedFormat,
		Message: fmt.Sprintf("unsupported file format %q, use .csv, .xlsx or .xls", ext),
	}
}

func Read(path string, err error) *AppError {
	return &AppError{
		Code:    ErrRead,
		Message: fmt.Sprintf("failed to read %s", path),
		Err:     err,
	}
}

func EmptyBatch() *AppError {
	return &AppError{Code: ErrEmptyBatch, Message: "no valid patient found in file"}
}

func NoRecordsPersisted(attempted int) *AppError {
	return &AppError{
		Code:    ErrNoRecordsPersisted,
		Message: fmt.Sprintf("none of the %d parsed patients could be saved", attempted),
	}
}

func NoRecords() *AppError {
	return &AppError{Code: ErrNoRecords, Message: "no patient to export"}
}

func Dispatch(err error) *AppError {
	return &AppError{Code: ErrDispatch, Message: "failed to dispatch message", Err: err}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// HasCode reports whether err's chain contains an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
