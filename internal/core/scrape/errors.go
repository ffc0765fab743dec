package scrape

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	CodeNoPriorURL     ErrorCode = "NO_PRIOR_URL"
	CodeNoMoreResults  ErrorCode = "NO_MORE_RESULTS"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeFetchFailed    ErrorCode = "FETCH_FAILED"
	CodeServiceError   ErrorCode = "SERVICE_ERROR"

	// CodeUpstreamUnavailable marks a conversational responder failure.
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
)

// HTTPStatus maps a code to the status the API answers with.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest, CodeNoPriorURL:
		return http.StatusBadRequest
	case CodeNotFound, CodeNoMoreResults:
		return http.StatusNotFound
	case CodeFetchFailed:
		return http.StatusBadGateway
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the only error type Service.Scrape returns.
type Error struct {
	Code    ErrorCode
	Message string
	URL     string
	Page    int
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("scrape: %s (%s)", e.Code, e.Message)
	}
	return fmt.Sprintf("scrape: %s (%s): %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the code from err, or SERVICE_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeServiceError
}
