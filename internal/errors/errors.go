// Package errors provides typed errors with exit codes for spotty.
//
// Every failure of the configuration pipeline or of a provider operation is
// an [*Error] carrying a [Kind]. Kinds can be matched with the standard
// library through the exported sentinels:
//
//	if errors.Is(err, spottyerrors.ErrInstanceNotFound) {
//	    ...
//	}
//
// The process exit code is derived from the kind with [GetExitCode].
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for spotty
const (
	ExitSuccess             = 0
	ExitGeneralError        = 1
	ExitConfigNotFound      = 2
	ExitConfigParse         = 3
	ExitConfigInvalid       = 4
	ExitMissingField        = 5
	ExitInstanceNotFound    = 6
	ExitUnsupportedProvider = 7
	ExitUnsupportedOp       = 8
	ExitProviderError       = 9
	ExitSSHError            = 10
)

// Kind identifies the category of an Error.
type Kind string

const (
	KindGeneral              Kind = "General"
	KindConfigNotFound       Kind = "ConfigNotFound"
	KindConfigParse          Kind = "ConfigParseError"
	KindUnknownField         Kind = "UnknownFieldError"
	KindInvalidField         Kind = "InvalidFieldError"
	KindDuplicateInstance    Kind = "DuplicateInstanceError"
	KindMissingRequiredField Kind = "MissingRequiredField"
	KindInstanceNotFound     Kind = "InstanceNotFound"
	KindUnsupportedProvider  Kind = "UnsupportedProviderError"
	KindUnsupportedOperation Kind = "UnsupportedOperationError"
	KindProvider             Kind = "ProviderError"
	KindSSH                  Kind = "SSHError"
)

var exitCodes = map[Kind]int{
	KindGeneral:              ExitGeneralError,
	KindConfigNotFound:       ExitConfigNotFound,
	KindConfigParse:          ExitConfigParse,
	KindUnknownField:         ExitConfigInvalid,
	KindInvalidField:         ExitConfigInvalid,
	KindDuplicateInstance:    ExitConfigInvalid,
	KindMissingRequiredField: ExitMissingField,
	KindInstanceNotFound:     ExitInstanceNotFound,
	KindUnsupportedProvider:  ExitUnsupportedProvider,
	KindUnsupportedOperation: ExitUnsupportedOp,
	KindProvider:             ExitProviderError,
	KindSSH:                  ExitSSHError,
}

// Sentinels for errors.Is matching by kind.
var (
	ErrConfigNotFound       = &Error{Kind: KindConfigNotFound}
	ErrConfigParse          = &Error{Kind: KindConfigParse}
	ErrUnknownField         = &Error{Kind: KindUnknownField}
	ErrInvalidField         = &Error{Kind: KindInvalidField}
	ErrDuplicateInstance    = &Error{Kind: KindDuplicateInstance}
	ErrMissingRequiredField = &Error{Kind: KindMissingRequiredField}
	ErrInstanceNotFound     = &Error{Kind: KindInstanceNotFound}
	ErrUnsupportedProvider  = &Error{Kind: KindUnsupportedProvider}
	ErrUnsupportedOperation = &Error{Kind: KindUnsupportedOperation}
	ErrProvider             = &Error{Kind: KindProvider}
	ErrSSH                  = &Error{Kind: KindSSH}
)

// Error is the base error type for spotty
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending configuration key, when there is one.
	Field string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ExitCode returns the exit code for this error
func (e *Error) ExitCode() int {
	if code, ok := exitCodes[e.Kind]; ok {
		return code
	}
	return ExitGeneralError
}

// New creates a new Error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap wraps an existing error with an Error
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ConfigNotFound returns an error for a missing configuration file. path is
// reported exactly as the user supplied it.
func ConfigNotFound(path string) *Error {
	return New(KindConfigNotFound, fmt.Sprintf("configuration file %q not found", path))
}

// ConfigParseError returns an error for a file that is not valid YAML.
func ConfigParseError(path string, cause error) *Error {
	return Wrap(KindConfigParse, fmt.Sprintf("failed to parse configuration file %q", path), cause)
}

// UnknownField returns an error for a key that is not part of the schema.
func UnknownField(key string) *Error {
	return &Error{
		Kind:    KindUnknownField,
		Message: fmt.Sprintf("unknown configuration field %q", key),
		Field:   key,
	}
}

// InvalidField returns an error for a field whose value fails validation.
func InvalidField(field, reason string) *Error {
	return &Error{
		Kind:    KindInvalidField,
		Message: fmt.Sprintf("invalid value for %q: %s", field, reason),
		Field:   field,
	}
}

// MissingRequiredField returns an error for a required field with no value
// and no default.
func MissingRequiredField(field string) *Error {
	return &Error{
		Kind:    KindMissingRequiredField,
		Message: fmt.Sprintf("required field %q is not set", field),
		Field:   field,
	}
}

// DuplicateInstance returns an error for two instances sharing a name.
func DuplicateInstance(name string) *Error {
	return New(KindDuplicateInstance, fmt.Sprintf("instance name %q is declared more than once", name))
}

// InstanceNotFound returns an error for an instance name missing from the
// project configuration.
func InstanceNotFound(name string, declared []string) *Error {
	msg := fmt.Sprintf("instance %q not found", name)
	if len(declared) > 0 {
		msg += fmt.Sprintf(" (declared instances: %s)", strings.Join(declared, ", "))
	}
	return New(KindInstanceNotFound, msg)
}

// UnsupportedProvider returns an error for a provider with no manager,
// listing the supported ones when given.
func UnsupportedProvider(provider string, supported ...string) *Error {
	msg := fmt.Sprintf("provider %q is not supported", provider)
	if len(supported) > 0 {
		msg += fmt.Sprintf(" (supported providers: %s)", strings.Join(supported, ", "))
	}
	return New(KindUnsupportedProvider, msg)
}

// UnsupportedOperation returns an error for an operation a provider cannot
// perform.
func UnsupportedOperation(provider, operation string) *Error {
	return New(KindUnsupportedOperation,
		fmt.Sprintf("operation %q is not supported by provider %q", operation, provider))
}

// ProviderError returns an error for a failed cloud provider call.
func ProviderError(op string, cause error) *Error {
	return Wrap(KindProvider, fmt.Sprintf("%s failed", op), cause)
}

// SSHError returns an error for SSH operations
func SSHError(message string, cause error) *Error {
	return Wrap(KindSSH, message, cause)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var spottyErr *Error
	if errors.As(err, &spottyErr) {
		return spottyErr.ExitCode()
	}
	return ExitGeneralError
}

// KindOf returns the kind of the first *Error in err's chain, or KindGeneral.
func KindOf(err error) Kind {
	var spottyErr *Error
	if errors.As(err, &spottyErr) {
		return spottyErr.Kind
	}
	return KindGeneral
}
