// Package yaerrors provides the error type shared by every YaTgPoster package.
// An Error carries an HTTP status code, the original cause and a human readable
// traceback that grows each time the error is wrapped on its way up the stack.
package yaerrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/YaCodeDev/YaTgPoster/yalogger"
)

// Error is an error with a status code and a wrap traceback.
type Error interface {
	error
	Wrap(msg string) Error
	WrapWithLog(msg string, log yalogger.Logger) Error
	Code() int
	Unwrap() error
	UnwrapLastError() string
}

const (
	codeSeparate  = " | "
	errorSeparate = " -> "
)

type yaError struct {
	code      int
	cause     error
	traceback string
}

// FromError builds an Error around cause. The wrap message becomes the innermost
// traceback entry.
//
// Example usage:
//
//	return yaerrors.FromError(http.StatusInternalServerError, err, "failed to load post")
func FromError(code int, cause error, wrap string) Error {
	return &yaError{
		code:      code,
		cause:     cause,
		traceback: fmt.Sprintf("%s: %v", wrap, cause),
	}
}

// FromErrorWithLog is FromError that also writes the message to log at error level.
func FromErrorWithLog(code int, cause error, wrap string, log yalogger.Logger) Error {
	err := FromError(code, cause, wrap)

	log.Error(err.(*yaError).traceback)

	return err
}

// FromString builds an Error from a bare message.
func FromString(code int, msg string) Error {
	return &yaError{
		code:      code,
		cause:     errors.New(msg), //nolint:err113
		traceback: msg,
	}
}

// FromStringWithLog is FromString that also writes the message to log at error level.
func FromStringWithLog(code int, msg string, log yalogger.Logger) Error {
	log.Error(msg)

	return FromString(code, msg)
}

// CodeOf returns the status code carried by err, or 500 for foreign errors.
// A nil err yields 200.
func CodeOf(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var yaErr Error
	if errors.As(err, &yaErr) {
		return yaErr.Code()
	}

	return http.StatusInternalServerError
}

func (e *yaError) Error() string {
	safetyCheck(&e)

	return fmt.Sprintf("%d%s%s", e.code, codeSeparate, e.traceback)
}

func (e *yaError) Unwrap() error {
	safetyCheck(&e)

	return e.cause
}

// UnwrapLastError returns the outermost traceback entry.
func (e *yaError) UnwrapLastError() string {
	safetyCheck(&e)

	last, _, found := strings.Cut(e.traceback, errorSeparate)
	if !found {
		return e.traceback
	}

	return last
}

// Wrap prepends msg to the traceback. Call it every time the error crosses a
// function boundary.
func (e *yaError) Wrap(msg string) Error {
	safetyCheck(&e)

	e.traceback = msg + errorSeparate + e.traceback

	return e
}

func (e *yaError) WrapWithLog(msg string, log yalogger.Logger) Error {
	log.Error(msg)

	return e.Wrap(msg)
}

func (e *yaError) Code() int {
	safetyCheck(&e)

	return e.code
}

func safetyCheck(err **yaError) {
	if *err == nil {
		*err = &yaError{
			code:      http.StatusTeapot,
			cause:     ErrTeapot,
			traceback: ErrTeapot.Error(),
		}
	}
}
