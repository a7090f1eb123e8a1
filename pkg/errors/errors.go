package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    int    // HTTP status code or custom error code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

const (
	ErrBadRequest          = 1001
	ErrAuctionNotFound     = 1002
	ErrInvalidSnapshotName = 1003
	ErrSnapshotNotFound    = 1004
	ErrUnknownJob          = 1005
	ErrRateLimited         = 1006
	ErrBadMessageFormat    = 1007
	ErrUnknownMessageType  = 1008

	ErrInternalServer = 500
)

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to the status an HTTP handler should answer with.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrBadRequest, ErrInvalidSnapshotName, ErrBadMessageFormat, ErrUnknownMessageType:
		return http.StatusBadRequest
	case ErrAuctionNotFound, ErrSnapshotNotFound, ErrUnknownJob:
		return http.StatusNotFound
	case ErrRateLimited:
		return http.StatusTooManyRequests
	}
	if e.Code >= 400 && e.Code < 600 {
		return e.Code
	}
	return http.StatusInternalServerError
}

// ToJSON renders the error as a feed/API error payload.
func (e *AppError) ToJSON() string {
	b, err := json.Marshal(map[string]any{
		"type":    "error",
		"code":    e.Code,
		"message": e.Message,
	})
	if err != nil {
		return `{"type":"error","message":"internal error"}`
	}
	return string(b)
}

// Wrapping utility
func Wrap(err error, message string) *AppError {
	return &AppError{Code: CodeOf(err), Message: message, Err: err}
}

// Error creation utility
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// CodeOf returns the code of the first AppError in err's chain carrying one,
// or ErrInternalServer.
func CodeOf(err error) int {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			break
		}
		if appErr.Code != 0 {
			return appErr.Code
		}
		err = appErr.Err
	}
	return ErrInternalServer
}

// Is reports whether err carries the given code.
func Is(err error, code int) bool {
	return err != nil && CodeOf(err) == code
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
