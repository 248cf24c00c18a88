package shared

import "fmt"

// DomainError represents a domain-level error.
// Every DomainError belongs to one of the taxonomy kinds below; errors.Is
// against a kind sentinel matches any error of that kind.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	kind    *DomainError
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Kind returns the taxonomy sentinel this error belongs to
func (e *DomainError) Kind() *DomainError {
	if e.kind == nil {
		return e
	}
	return e.kind
}

// Is reports whether target is this error, its kind sentinel, or a
// specific error with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e == t || e.Kind() == t {
		return true
	}
	return t.kind != nil && e.Code == t.Code
}

// WithMessage returns a copy of the error with a more specific message,
// keeping the code and the kind.
func (e *DomainError) WithMessage(format string, args ...any) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: fmt.Sprintf(format, args...),
		kind:    e.Kind(),
	}
}

// NewDomainError creates a new domain error of kind ErrValidation
func NewDomainError(code, message string) *DomainError {
	return NewKindError(ErrValidation, code, message)
}

// NewKindError creates a domain error with its own code under the given kind
func NewKindError(kind *DomainError, code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		kind:    kind.Kind(),
	}
}

// Error taxonomy. These are the only kinds the HTTP boundary knows about.
var (
	ErrUnauthorized  = &DomainError{Code: "UNAUTHORIZED", Message: "Authentication required"}
	ErrForbidden     = &DomainError{Code: "FORBIDDEN", Message: "Access to this resource is forbidden"}
	ErrNotFound      = &DomainError{Code: "NOT_FOUND", Message: "Resource not found"}
	ErrInvalidState  = &DomainError{Code: "INVALID_STATE", Message: "Operation not allowed in current state"}
	ErrValidation    = &DomainError{Code: "VALIDATION_ERROR", Message: "Invalid input provided"}
	ErrSignature     = &DomainError{Code: "SIGNATURE_ERROR", Message: "Webhook signature verification failed"}
	ErrAlreadyExists = &DomainError{Code: "ALREADY_EXISTS", Message: "Resource already exists"}
)

// ErrConcurrentModification is returned when an optimistic save loses a race.
var ErrConcurrentModification = NewKindError(ErrInvalidState, "CONCURRENT_MODIFICATION", "Resource was modified concurrently, retry the operation")
