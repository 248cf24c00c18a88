package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_KindMatching(t *testing.T) {
	refundTooLarge := NewDomainError("REFUND_EXCEEDS_PAID", "refund exceeds paid amount")

	assert.True(t, errors.Is(refundTooLarge, ErrValidation))
	assert.False(t, errors.Is(refundTooLarge, ErrInvalidState))
	assert.Equal(t, ErrValidation, refundTooLarge.Kind())

	wrapped := fmt.Errorf("record refund: %w", refundTooLarge)
	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.True(t, errors.Is(wrapped, refundTooLarge))
}

func TestDomainError_WithMessage(t *testing.T) {
	err := ErrNotFound.WithMessage("invoice %s not found", "abc")

	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Equal(t, "invoice abc not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "Resource not found", ErrNotFound.Message)
}

func TestNewKindError(t *testing.T) {
	err := NewKindError(ErrInvalidState, "MEMBERSHIP_NOT_FROZEN", "membership is not frozen")
	nested := NewKindError(err, "OTHER", "other")

	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, ErrInvalidState, nested.Kind())
}

func TestPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 41, 1, 20)
	assert.Equal(t, 3, p.TotalPages)

	f := Filter{Page: 0, PageSize: 1000, OrderDir: "sideways"}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxPageSize, f.PageSize)
	assert.Equal(t, "desc", f.OrderDir)
	assert.Equal(t, 0, f.Offset())
}

func TestDomainError_SpecificErrorMatchesByCode(t *testing.T) {
	specific := NewKindError(ErrInvalidState, "INVOICE_NOT_PAYABLE", "not payable")
	detailed := specific.WithMessage("invoice %s is REFUNDED", "INV-1")

	assert.True(t, errors.Is(detailed, specific))
	assert.True(t, errors.Is(detailed, ErrInvalidState))
	assert.False(t, errors.Is(ErrInvalidState.WithMessage("x"), specific))
}
