package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCapNotSet is returned when drafting is attempted while the reorder cap
// is zero (the initial and post-snapshot state).
var ErrCapNotSet = errors.New("reorder cap not set")

// NotFoundError reports an unknown product/reservation/sale/snapshot id.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InsufficientStockError is returned when an operation would drive a
// product's quantity below zero. The operation has no effect.
type InsufficientStockError struct {
	ProductID uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidStateError is returned when an operation is not valid for the
// entity's current state, e.g. converting an already-released reservation.
type InvalidStateError struct {
	Entity   string
	ID       uint
	Current  string
	Expected string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %d is %s, expected %s", e.Entity, e.ID, e.Current, e.Expected)
}

// BudgetExceededError is returned when an insertion or edit would push the
// reorder total over the cap. The draft is left unchanged.
type BudgetExceededError struct {
	Cap       decimal.Decimal
	Attempted decimal.Decimal
	Overage   decimal.Decimal
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("reorder budget exceeded: total %s over cap %s by %s",
		e.Attempted.StringFixed(2), e.Cap.StringFixed(2), e.Overage.StringFixed(2))
}

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
