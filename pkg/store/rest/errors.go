package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes reported by the store.
const (
	CodePathNotFound            = "PathNotFound"
	CodeFilesystemNotFound      = "FilesystemNotFound"
	CodePathAlreadyExists       = "PathAlreadyExists"
	CodePathConflict            = "PathConflict"
	CodeFilesystemAlreadyExists = "FilesystemAlreadyExists"
	CodeDirectoryNotEmpty       = "DirectoryNotEmpty"
	CodeSourcePathNotFound      = "SourcePathNotFound"
	CodeConditionNotMet         = "ConditionNotMet"
	CodeInvalidRange            = "InvalidRange"
	CodeInvalidInput            = "InvalidInput"
	CodeInvalidFlushPosition    = "InvalidFlushPosition"
)

// ServiceError is a structured failure reported by the store.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("store error %d %s", e.StatusCode, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// NewServiceError creates a ServiceError.
func NewServiceError(status int, code, message string) *ServiceError {
	return &ServiceError{StatusCode: status, Code: code, Message: message}
}

// PathNotFound returns the error raised when a path is missing or is of the
// wrong node type for the operation.
func PathNotFound(message string) *ServiceError {
	return NewServiceError(http.StatusNotFound, CodePathNotFound, message)
}

// AsServiceError extracts the ServiceError from err's chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether err carries a ServiceError with the given code.
func HasCode(err error, code string) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

// IsPathNotFound reports whether err is a PathNotFound-class failure.
func IsPathNotFound(err error) bool {
	return HasCode(err, CodePathNotFound)
}

// IsNotFound reports whether err is any 404 from the store.
func IsNotFound(err error) bool {
	se, ok := AsServiceError(err)
	return ok && se.StatusCode == http.StatusNotFound
}
