package domain

// LineItemRequest is a single raw line of a checkout request as supplied
// by the caller. Duplicate product ids are allowed here and merged during
// normalization.
type LineItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

// AggregatedCartLine holds the summed quantity for one distinct product.
type AggregatedCartLine struct {
	ProductID int64
	Quantity  int32
}

// AggregatedCart is the deduplicated cart: one line per product, in the
// order each product was first seen. Validation reports follow this order.
type AggregatedCart struct {
	Lines []AggregatedCartLine
}

// ProductIDs returns the distinct product ids in first-seen order.
func (c *AggregatedCart) ProductIDs() []int64 {
	ids := make([]int64, len(c.Lines))
	for i, line := range c.Lines {
		ids[i] = line.ProductID
	}
	return ids
}

// NormalizeCart collapses raw line items into an aggregated cart.
// The whole cart is rejected if it is empty or any quantity is non-positive;
// no partial normalization happens.
func NormalizeCart(items []LineItemRequest) (*AggregatedCart, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	index := make(map[int64]int, len(items))
	cart := &AggregatedCart{Lines: make([]AggregatedCartLine, 0, len(items))}

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		if i, seen := index[item.ProductID]; seen {
			cart.Lines[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(cart.Lines)
		cart.Lines = append(cart.Lines, AggregatedCartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return cart, nil
}
