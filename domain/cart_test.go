package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCart_MergesDuplicates(t *testing.T) {
	cart, err := NormalizeCart([]LineItemRequest{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 3},
	})

	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, AggregatedCartLine{ProductID: 1, Quantity: 5}, cart.Lines[0])
	assert.Equal(t, AggregatedCartLine{ProductID: 2, Quantity: 1}, cart.Lines[1])
}

func TestNormalizeCart_PreservesFirstSeenOrder(t *testing.T) {
	cart, err := NormalizeCart([]LineItemRequest{
		{ProductID: 7, Quantity: 1},
		{ProductID: 3, Quantity: 1},
		{ProductID: 7, Quantity: 1},
		{ProductID: 5, Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, []int64{7, 3, 5}, cart.ProductIDs())
}

func TestNormalizeCart_EmptyCart(t *testing.T) {
	cart, err := NormalizeCart(nil)

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, cart)
}

func TestNormalizeCart_NonPositiveQuantity(t *testing.T) {
	for _, qty := range []int32{0, -1} {
		cart, err := NormalizeCart([]LineItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: qty},
		})

		var invalid *InvalidQuantityError
		require.True(t, errors.As(err, &invalid), "expected InvalidQuantityError for qty %d", qty)
		assert.Equal(t, int64(2), invalid.ProductID)
		assert.Equal(t, qty, invalid.Quantity)
		assert.Nil(t, cart)
	}
}
