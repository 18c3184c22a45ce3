package service

import (
	"errors"
	"fmt"
)

var (
	// ErrRetriesExhausted is returned after the configured number of
	// attempts all lost the stamp race. The cart itself is fine; the caller
	// should retry the whole checkout later.
	ErrRetriesExhausted = errors.New("checkout failed: concurrent stock updates exhausted retry budget")

	// ErrStorageUnavailable is returned when storage round-trips keep
	// failing for infrastructure reasons. Capped separately from stamp
	// conflicts so outages don't show up as contention.
	ErrStorageUnavailable = errors.New("checkout failed: storage unavailable")
)

// ConflictError signals that another transaction modified a product between
// this attempt's snapshot read and its conditional decrement. The attempt
// was rolled back in full; the coordinator decides whether to retry.
type ConflictError struct {
	ProductID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of product %d", e.ProductID)
}
