package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Codes follow the format SN-<AREA>-<nnnn>.
type DomainError struct {
	Code    string // Error code (e.g., "SN-COMP-4090")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Composition Errors (COMP)
// ============================================================================

var (
	// ErrCompositionConflict indicates two capabilities declare the same attribute.
	ErrCompositionConflict = NewDomainError("SN-COMP-4090", "capability attribute conflict")

	// ErrTypeConflict indicates a type name is already registered with a different shape.
	ErrTypeConflict = NewDomainError("SN-COMP-4091", "snapshot type already registered")

	// ErrMissingCapability indicates a capability requires an attribute nobody declares.
	ErrMissingCapability = NewDomainError("SN-COMP-4220", "required attribute not provided by composition")

	// ErrTypeNotFound indicates no composed type is registered under the name.
	ErrTypeNotFound = NewDomainError("SN-COMP-4040", "snapshot type not found")
)

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrAbstractInstantiation indicates an attempt to use the abstract core
	// without a composed concrete type.
	ErrAbstractInstantiation = NewDomainError("SN-SNAP-4000", "abstract snapshot cannot be instantiated")

	// ErrUnknownAttribute indicates the attribute is not declared by the snapshot type.
	ErrUnknownAttribute = NewDomainError("SN-SNAP-4001", "unknown attribute")

	// ErrAttributeType indicates an attribute value has the wrong Go type.
	ErrAttributeType = NewDomainError("SN-SNAP-4002", "attribute value has wrong type")

	// ErrDerivedAttribute indicates an attempt to store a derived attribute.
	ErrDerivedAttribute = NewDomainError("SN-SNAP-4003", "derived attribute has no storage")

	// ErrIdentityAssigned indicates the snapshot already carries an identity token.
	ErrIdentityAssigned = NewDomainError("SN-SNAP-4090", "identity already assigned")
)

// ============================================================================
// Proxy Errors (PROX)
// ============================================================================

var (
	// ErrUnresolvableProxy indicates a placeholder could not be materialized.
	ErrUnresolvableProxy = NewDomainError("SN-PROX-5020", "unresolvable proxy")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrSnapshotNotFound indicates no record exists for the identity token.
	ErrSnapshotNotFound = NewDomainError("SN-STOR-4040", "snapshot not found")

	// ErrTopologyNotFound indicates no topology is stored under the name.
	ErrTopologyNotFound = NewDomainError("SN-STOR-4041", "topology not found")

	// ErrSchemaMismatch indicates a stored record no longer matches its registered type.
	ErrSchemaMismatch = NewDomainError("SN-STOR-4220", "stored record does not match type shape")

	// ErrCorruptedRecord indicates a stored record failed its integrity check.
	ErrCorruptedRecord = NewDomainError("SN-STOR-5001", "corrupted record")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("SN-STOR-5000", "storage error")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("SN-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("SN-ARG-1002", "missing required argument")
)
