package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProductSnapshot is a point-in-time read of one product row taken inside a
// checkout attempt's transaction. It is never mutated; a retry produces a
// fresh snapshot.
type ProductSnapshot struct {
	ProductID        int64
	Name             string
	UnitPrice        float64
	StockOnHand      int32
	ConcurrencyStamp string
}

// PlanLine is one priced and stock-checked line of a validated plan.
type PlanLine struct {
	ProductID int64
	Quantity  int32
	UnitPrice float64
	LineTotal float64
}

// ValidatedOrderPlan lives only between validation and commit of a single
// attempt. Snapshots carry the concurrency stamps the commit must re-confirm.
type ValidatedOrderPlan struct {
	BuyerID     int64
	Lines       []PlanLine
	TotalAmount float64
	Snapshots   map[int64]ProductSnapshot
}

// OrderLine is a persisted line of a committed order. UnitPriceAtSale is the
// price captured by the snapshot the order was validated against.
type OrderLine struct {
	ProductID       int64   `json:"product_id"`
	Quantity        int32   `json:"quantity"`
	UnitPriceAtSale float64 `json:"unit_price_at_sale"`
	LineTotal       float64 `json:"line_total"`
}

// OrderRecord is the financial record of a committed checkout. Immutable
// after commit.
type OrderRecord struct {
	ID          uuid.UUID
	BuyerID     int64
	TotalAmount float64
	Lines       []OrderLine
	CreatedAt   time.Time
}

// PlacedOrder is what a successful checkout hands back to the caller.
type PlacedOrder struct {
	OrderID     uuid.UUID
	TotalAmount float64
}
