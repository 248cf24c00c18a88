package dto

import (
	"errors"
	"net/http"

	"github.com/clubledger/backend/internal/domain/shared"
)

// Wire codes for failures raised outside the domain
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeTooLarge     = "PAYLOAD_TOO_LARGE"
)

// kindStatus is the only translation from domain error kinds to HTTP status
var kindStatus = []struct {
	kind   *shared.DomainError
	status int
}{
	{shared.ErrUnauthorized, http.StatusUnauthorized},
	{shared.ErrSignature, http.StatusUnauthorized},
	{shared.ErrForbidden, http.StatusForbidden},
	{shared.ErrNotFound, http.StatusNotFound},
	{shared.ErrAlreadyExists, http.StatusConflict},
	{shared.ErrInvalidState, http.StatusBadRequest},
	{shared.ErrValidation, http.StatusBadRequest},
}

// HTTPStatusForError maps err to its status code. Errors that are not
// domain errors are internal failures.
func HTTPStatusForError(err error) int {
	for _, ks := range kindStatus {
		if errors.Is(err, ks.kind) {
			return ks.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorResponseFor builds the error body for err. Internal failures get a
// generic message so storage details never reach the client.
func ErrorResponseFor(err error, requestID string) (int, Response) {
	status := HTTPStatusForError(err)
	var domainErr *shared.DomainError
	if status == http.StatusInternalServerError || !errors.As(err, &domainErr) {
		return http.StatusInternalServerError,
			NewErrorResponse(ErrCodeInternal, "An unexpected error occurred", requestID)
	}
	return status, NewErrorResponse(domainErr.Code, domainErr.Message, requestID)
}
