package service

import (
	"github.com/orderflow/checkout-service/domain"
)

// BuildOrderPlan prices every cart line against its snapshot and checks the
// requested quantity against stock on hand. Validation is total: every line
// is checked and every failure collected before returning, in cart line
// order, so the caller gets one complete report instead of one error at a
// time. No storage access happens here.
func BuildOrderPlan(buyerID int64, cart *domain.AggregatedCart, snapshots map[int64]domain.ProductSnapshot) (*domain.ValidatedOrderPlan, *domain.ValidationError) {
	var failures []domain.CheckoutError
	lines := make([]domain.PlanLine, 0, len(cart.Lines))
	total := 0.0

	for _, line := range cart.Lines {
		snapshot, found := snapshots[line.ProductID]
		if !found {
			failures = append(failures, domain.CheckoutError{
				Code:      domain.CodeProductNotFound,
				ProductID: line.ProductID,
				Requested: line.Quantity,
			})
			continue
		}
		if snapshot.StockOnHand < line.Quantity {
			failures = append(failures, domain.CheckoutError{
				Code:      domain.CodeInsufficientStock,
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: snapshot.StockOnHand,
			})
			continue
		}

		lineTotal := float64(line.Quantity) * snapshot.UnitPrice
		lines = append(lines, domain.PlanLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: snapshot.UnitPrice,
			LineTotal: lineTotal,
		})
		total += lineTotal
	}

	if len(failures) > 0 {
		return nil, &domain.ValidationError{Errors: failures}
	}

	return &domain.ValidatedOrderPlan{
		BuyerID:     buyerID,
		Lines:       lines,
		TotalAmount: total,
		Snapshots:   snapshots,
	}, nil
}
