package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// InvalidQuantityError rejects the whole cart when a line carries a zero or
// negative quantity.
type InvalidQuantityError struct {
	ProductID int64
	Quantity  int32
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %d", e.Quantity, e.ProductID)
}

type ErrorCode string

const (
	CodeProductNotFound   ErrorCode = "PRODUCT_NOT_FOUND"
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
)

// CheckoutError is one structured validation failure for a single cart line.
type CheckoutError struct {
	Code      ErrorCode `json:"code"`
	ProductID int64     `json:"product_id"`
	Requested int32     `json:"requested,omitempty"`
	Available int32     `json:"available,omitempty"`
}

func (e CheckoutError) Error() string {
	switch e.Code {
	case CodeInsufficientStock:
		return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
			e.ProductID, e.Requested, e.Available)
	default:
		return fmt.Sprintf("product %d not found", e.ProductID)
	}
}

// ValidationError carries every validation failure of an attempt, in cart
// line order, so the caller sees the whole picture at once.
type ValidationError struct {
	Errors []CheckoutError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ce := range e.Errors {
		msgs[i] = ce.Error()
	}
	return "checkout validation failed: " + strings.Join(msgs, "; ")
}
