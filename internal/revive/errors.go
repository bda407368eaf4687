package revive

import (
	"errors"
	"fmt"
)

// Error is a deserialization failure.
//
// Errors carry the label being revived when one is known. Collaborator
// failures (module loads, binding appliers, unit handlers) are kept in Err
// and reachable through errors.Is / errors.As.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Label is the document label being revived, if any.
	Label string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes deserialization errors.
type ErrorCode string

const (
	// ErrCodeInvalidDescriptor indicates a descriptor with an unusable shape.
	ErrCodeInvalidDescriptor ErrorCode = "INVALID_DESCRIPTOR"

	// ErrCodeInvalidLabel indicates a label that does not match its
	// descriptor (template labels start with ':' and hold aliases only).
	ErrCodeInvalidLabel ErrorCode = "INVALID_LABEL"

	// ErrCodeMissingLocation indicates an object with neither "prototype"
	// nor "object".
	ErrCodeMissingLocation ErrorCode = "MISSING_LOCATION"

	// ErrCodeObjectNotFound indicates a module without the named export.
	ErrCodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"

	// ErrCodeElementNotFound indicates an element id missing from the scope.
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"

	// ErrCodeUnresolvedReference indicates a reference to an unknown label.
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeCircularReference indicates labels that only reference each
	// other through plain values.
	ErrCodeCircularReference ErrorCode = "CIRCULAR_REFERENCE"

	// ErrCodeExternalObjectMissing indicates an empty descriptor without a
	// user object.
	ErrCodeExternalObjectMissing ErrorCode = "EXTERNAL_OBJECT_MISSING"

	// ErrCodeModuleLoadFailed indicates a module that could not be loaded.
	ErrCodeModuleLoadFailed ErrorCode = "MODULE_LOAD_FAILED"

	// ErrCodeInvalidValue indicates a tagged value with a bad payload, or a
	// value that cannot be applied to its object.
	ErrCodeInvalidValue ErrorCode = "INVALID_VALUE"

	// ErrCodeBindingFailed indicates the binding applier failed.
	ErrCodeBindingFailed ErrorCode = "BINDING_FAILED"

	// ErrCodeUnitFailed indicates a unit handler failed.
	ErrCodeUnitFailed ErrorCode = "UNIT_FAILED"

	// ErrCodeUnknownType indicates a custom kind without a reviver.
	ErrCodeUnknownType ErrorCode = "UNKNOWN_TYPE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, label string, format string, args ...any) *Error {
	return &Error{Code: code, Label: label, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, label string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Label: label, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCircularReference reports whether err is a circular reference error.
func IsCircularReference(err error) bool {
	return CodeOf(err) == ErrCodeCircularReference
}

// IsUnresolvedReference reports whether err is a dangling reference error.
func IsUnresolvedReference(err error) bool {
	return CodeOf(err) == ErrCodeUnresolvedReference
}

// IsExternalObjectMissing reports whether err is a missing user object.
func IsExternalObjectMissing(err error) bool {
	return CodeOf(err) == ErrCodeExternalObjectMissing
}
