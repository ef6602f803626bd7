package lti

import "fmt"

type ErrorCode string

const (
	// ErrCodeSignatureInvalid - the OAuth body signature did not verify
	// against any of the candidate shared secrets.
	ErrCodeSignatureInvalid ErrorCode = "signature_invalid"

	// ErrCodeMalformedSourcedID - the sourcedId token could not be decoded
	// or is missing required fields.
	ErrCodeMalformedSourcedID ErrorCode = "malformed_sourcedid"

	// ErrCodeHashMismatch - the sourcedId digest did not match the value
	// recomputed from the parsed fields and the instance salt.
	// This is a hard authentication failure, not a validation warning.
	ErrCodeHashMismatch ErrorCode = "hash_mismatch"

	// ErrCodeInvalidScore - the score in a replaceResult message is not numeric.
	ErrCodeInvalidScore ErrorCode = "invalid_score"

	// ErrCodeScoreOutOfRange - the score is numeric but outside [0.0, 1.0].
	ErrCodeScoreOutOfRange ErrorCode = "score_out_of_range"

	// ErrCodeStore - the grade store or submission ledger reported a failure.
	ErrCodeStore ErrorCode = "store_error"

	// ErrCodeConfiguration - more than one extension handler is registered
	// for a message type. Not recoverable at request time.
	ErrCodeConfiguration ErrorCode = "configuration"

	// ErrCodeUnsupportedMessageType - no core or extension handler exists
	// for the message type.
	ErrCodeUnsupportedMessageType ErrorCode = "unsupported_message_type"

	// ErrCodeValidation - structural problems with the request envelope.
	ErrCodeValidation ErrorCode = "validation"

	ErrCodeInternal ErrorCode = "internal"
)

// LTIError represents a structured error from the lti package
type LTIError struct {

	// code identifies the failure class
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *LTIError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *LTIError) Code() ErrorCode { return e.code }
func (e *LTIError) Unwrap() error   { return e.wrapped }

// NewSignatureError creates a signature verification error.
// Use this when a signed request cannot be verified against any candidate secret.
//
// The returned error will have code ErrCodeSignatureInvalid.
func NewSignatureError(msg string) error {
	return &LTIError{code: ErrCodeSignatureInvalid, message: msg}
}

// WrapSignatureError wraps an existing error as a signature verification error.
//
// The returned error will have code ErrCodeSignatureInvalid.
func WrapSignatureError(err error, msg string) error {
	return &LTIError{code: ErrCodeSignatureInvalid, message: msg, wrapped: err}
}

// NewMalformedSourcedIDError creates an error for sourcedId tokens that cannot
// be decoded or are missing required fields.
//
// The returned error will have code ErrCodeMalformedSourcedID.
func NewMalformedSourcedIDError(msg string) error {
	return &LTIError{code: ErrCodeMalformedSourcedID, message: msg}
}

// WrapMalformedSourcedIDError wraps an existing error as a malformed sourcedId error.
//
// The returned error will have code ErrCodeMalformedSourcedID.
func WrapMalformedSourcedIDError(err error, msg string) error {
	return &LTIError{code: ErrCodeMalformedSourcedID, message: msg, wrapped: err}
}

// NewHashMismatchError creates a sourcedId integrity error.
//
// The returned error will have code ErrCodeHashMismatch.
func NewHashMismatchError(msg string) error {
	return &LTIError{code: ErrCodeHashMismatch, message: msg}
}

// NewInvalidScoreError creates an error for non-numeric scores.
//
// The returned error will have code ErrCodeInvalidScore.
func NewInvalidScoreError(msg string) error {
	return &LTIError{code: ErrCodeInvalidScore, message: msg}
}

// NewScoreOutOfRangeError creates an error for scores outside [0.0, 1.0].
//
// The returned error will have code ErrCodeScoreOutOfRange.
func NewScoreOutOfRangeError(msg string) error {
	return &LTIError{code: ErrCodeScoreOutOfRange, message: msg}
}

// NewStoreError creates a grade store / ledger failure error.
//
// The returned error will have code ErrCodeStore.
func NewStoreError(msg string) error {
	return &LTIError{code: ErrCodeStore, message: msg}
}

// WrapStoreError wraps an existing error as a store failure, preserving the
// underlying cause rather than collapsing it to a boolean.
//
// The returned error will have code ErrCodeStore.
func WrapStoreError(err error, msg string) error {
	return &LTIError{code: ErrCodeStore, message: msg, wrapped: err}
}

// NewConfigurationError creates a fatal configuration error.
//
// The returned error will have code ErrCodeConfiguration.
func NewConfigurationError(msg string) error {
	return &LTIError{code: ErrCodeConfiguration, message: msg}
}

// NewUnsupportedMessageTypeError creates an error for message types with no
// registered handler.
//
// The returned error will have code ErrCodeUnsupportedMessageType.
func NewUnsupportedMessageTypeError(msg string) error {
	return &LTIError{code: ErrCodeUnsupportedMessageType, message: msg}
}

// NewValidationError creates an error for structurally invalid envelopes.
//
// The returned error will have code ErrCodeValidation.
func NewValidationError(msg string) error {
	return &LTIError{code: ErrCodeValidation, message: msg}
}

// WrapValidationError wraps an existing error as a validation error.
//
// The returned error will have code ErrCodeValidation.
func WrapValidationError(err error, msg string) error {
	return &LTIError{code: ErrCodeValidation, message: msg, wrapped: err}
}

// NewInternalError creates an internal error for unexpected failures.
//
// The returned error will have code ErrCodeInternal.
func NewInternalError(msg string) error {
	return &LTIError{code: ErrCodeInternal, message: msg}
}

// WrapInternalError wraps an existing error as an internal error.
//
// The returned error will have code ErrCodeInternal.
func WrapInternalError(err error, msg string) error {
	return &LTIError{code: ErrCodeInternal, message: msg, wrapped: err}
}
