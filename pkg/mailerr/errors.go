// Package mailerr defines the stable error codes shared by the JSON output
// mode, the exit-code mapping, and the workflow engine's action results.
package mailerr

import (
	"errors"
	"fmt"
)

// Code identifies an error class. Codes are part of the CLI's machine
// interface and must not be renamed.
type Code string

const (
	CodeUsage            Code = "UsageError"
	CodeNotAuthorized    Code = "NotAuthorized"
	CodeNotFound         Code = "NotFound"
	CodeTokenExpired     Code = "TokenExpired"
	CodeValidation       Code = "ValidationError"
	CodeQueryTooLarge    Code = "QueryTooLarge"
	CodeTransientGmail   Code = "TransientGmailError"
	CodeGmailClient      Code = "GmailClientError"
	CodeLabelApplyFailed Code = "LabelApplyFailed"
	CodePartialReply     Code = "PartialReplyFailure"
	CodeFilesystem       Code = "FilesystemError"
	CodeUnknownGroup     Code = "UnknownGroup"
	CodeUnknownWorkflow  Code = "UnknownWorkflow"
	CodeMalformedAddress Code = "MalformedAddress"
	CodeDuplicateMember  Code = "DuplicateMember"
	CodeInvalidStyleName Code = "InvalidStyleName"
)

// Error is an error carrying a stable code and an optional user hint.
type Error struct {
	Code    Code
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error with a code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithHint returns a copy of the error carrying a next-action hint for the
// human-readable output mode.
func (e *Error) WithHint(format string, args ...any) *Error {
	clone := *e
	clone.Hint = fmt.Sprintf(format, args...)

	return &clone
}

// CodeOf extracts the code from an error chain, defaulting to a generic
// failure when none is present.
func CodeOf(err error) Code {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}

	return ""
}

// Is lets errors.Is match on bare codes via As on *Error.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Exit codes per the CLI contract.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitUsage        = 2
	ExitNotAuth      = 3
	ExitNotFound     = 4
	ExitTokenExpired = 5
	ExitValidation   = 6
	ExitTransient    = 7
)

// ExitCode maps an error to the CLI exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch CodeOf(err) {
	case CodeUsage:
		return ExitUsage
	case CodeNotAuthorized:
		return ExitNotAuth
	case CodeNotFound, CodeUnknownGroup, CodeUnknownWorkflow:
		return ExitNotFound
	case CodeTokenExpired:
		return ExitTokenExpired
	case CodeValidation, CodeMalformedAddress, CodeDuplicateMember, CodeInvalidStyleName:
		return ExitValidation
	case CodeTransientGmail:
		return ExitTransient
	default:
		return ExitFailure
	}
}
