// Package apierr defines the gateway's single error type and the heuristics
// used to translate upstream failures into it.
package apierr

import (
	"fmt"
	"strings"
)

// ClientAPIError is the one error shape that crosses every upstream/composite
// boundary in the gateway. Status is the HTTP status to propagate to the
// caller; Detail carries a heuristic hint derived from known substrings in
// the upstream's own error message (see DetailFor).
type ClientAPIError struct {
	Status int
	Err    string
	Detail string
}

func (e *ClientAPIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s)", e.Err, e.Detail)
	}
	return e.Err
}

// New builds a ClientAPIError, deriving Detail from Err via DetailFor.
func New(status int, err string) *ClientAPIError {
	return &ClientAPIError{Status: status, Err: err, Detail: DetailFor(err)}
}

// Wrap builds a ClientAPIError from a Go error, defaulting to 500.
func Wrap(status int, err error) *ClientAPIError {
	if err == nil {
		return nil
	}
	if status == 0 {
		status = 500
	}
	return New(status, err.Error())
}

// DetailFor maps a known substring in an upstream error message to the
// operator-facing hint spec.md §4.2 mandates. Returns "" when nothing
// matches.
func DetailFor(errMsg string) string {
	switch {
	case strings.Contains(errMsg, "Input length"):
		return "context too long: input exceeds the model's maximum processing length; shorten or chunk the request"
	case strings.Contains(errMsg, "InvalidParameter"):
		return "invalid parameter: check the request body against the upstream's accepted fields"
	case strings.Contains(errMsg, "BadRequest"):
		return "malformed request: check the request body shape"
	default:
		return ""
	}
}
