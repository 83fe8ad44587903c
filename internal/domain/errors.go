package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidCoupon   = errors.New("invalid coupon code")
	ErrLineNotFound    = fmt.Errorf("cart line %w", ErrNotFound)
)

// ValidationError reports the first shipping field that failed validation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}

// InvalidTransitionError is returned when the order state machine rejects a change.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal transition of order status from %s to %s", e.From, e.To)
}

// StoreError wraps an I/O failure of the document store. It is never retried by the core.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
