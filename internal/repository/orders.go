package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/orderflow/checkout-service/domain"
)

var ErrOrderNotFound = errors.New("order not found")

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.OrderRecord, error) {
	query := `SELECT id, user_id, total_amount, created_at FROM orders WHERE id = $1`

	var order domain.OrderRecord
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.BuyerID,
		&order.TotalAmount,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	linesQuery := `SELECT product_id, quantity, unit_price, line_total
	               FROM order_lines WHERE order_id = $1 ORDER BY product_id`

	rows, err := r.db.QueryContext(ctx, linesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitPriceAtSale, &line.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return &order, nil
}

// NormalizeProductName folds case and collapses whitespace so name-based
// lookups tolerate the formatting drift legacy callers produce.
func NormalizeProductName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// ResolveProductNames maps normalized product names to numeric ids in one
// batched lookup. Names without a match are absent from the result. This is
// a compatibility fallback for callers that still identify products by
// name; the numeric id is the only key the checkout transaction uses.
func (r *Repository) ResolveProductNames(ctx context.Context, names []string) (map[string]int64, error) {
	if len(names) == 0 {
		return map[string]int64{}, nil
	}

	normalized := make([]string, len(names))
	for i, name := range names {
		normalized[i] = NormalizeProductName(name)
	}

	query := `SELECT id, LOWER(name) FROM products WHERE LOWER(name) = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(normalized))
	if err != nil {
		return nil, fmt.Errorf("resolve product names: %w", err)
	}
	defer rows.Close()

	resolved := make(map[string]int64, len(names))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan resolved product: %w", err)
		}
		resolved[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolved products: %w", err)
	}
	return resolved, nil
}
