package domainerrors

import "errors"

// Code represents an error category independent of the surface (CLI, HTTP, library caller).
// Codes are attached where the failure happens so callers never have to guess the
// category from message text.
type Code string

const (
	CodeValidation      Code = "validation_failed"    // credential is malformed or inconsistent
	CodeInvalidInput    Code = "invalid_input"        // proof parameters violate a circuit constraint
	CodeStage           Code = "stage_failed"         // circuit execution or proving failed
	CodeNetworkMismatch Code = "network_mismatch"     // wallet is connected to another chain
	CodeResource        Code = "resource_unavailable" // asset fetch failed, retry may succeed
	CodeChainQuery      Code = "chain_query_failed"   // RPC failure during a registry read
	CodeDecoding        Code = "decode_failed"        // RPC response had an unrecognized shape
	CodeInvalidState    Code = "invalid_state"        // lifecycle operation called from the wrong step
	CodeStaleRun        Code = "stale_run"            // result belongs to a run discarded by reset
	CodeNotFound        Code = "not_found"
	CodeBadRequest      Code = "bad_request"
	CodeInternal        Code = "internal_error"
)

// Error wraps domain or infrastructure failures with a stable code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in the chain,
// or CodeInternal when the chain carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
