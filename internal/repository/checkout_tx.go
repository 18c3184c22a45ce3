package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/orderflow/checkout-service/domain"
)

var ErrDuplicateOrder = errors.New("order with this id already exists")

// CheckoutTx is the storage scope of one checkout attempt. All reads and
// writes issued through it commit or roll back together.
type CheckoutTx interface {
	FetchSnapshots(ctx context.Context, productIDs []int64) (map[int64]domain.ProductSnapshot, error)
	ConditionalDecrement(ctx context.Context, productID int64, quantity int32, expectedStamp string) (bool, error)
	InsertOrder(ctx context.Context, order *domain.OrderRecord) error
	InsertOrderLines(ctx context.Context, orderID uuid.UUID, lines []domain.OrderLine) error
	InsertOutboxEvent(ctx context.Context, event *OutboxEvent) error
	Commit() error
	Rollback() error
}

type checkoutTx struct {
	tx        *sql.Tx
	batchSize int
}

// FetchSnapshots reads price, stock and the concurrency stamp for every
// requested product in one batched query. Ids with no matching row are
// simply absent from the result; the validator detects the gap. Carts
// larger than the batch ceiling are read in ceiling-sized chunks.
func (c *checkoutTx) FetchSnapshots(ctx context.Context, productIDs []int64) (map[int64]domain.ProductSnapshot, error) {
	snapshots := make(map[int64]domain.ProductSnapshot, len(productIDs))

	for start := 0; start < len(productIDs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(productIDs) {
			end = len(productIDs)
		}
		if err := c.fetchSnapshotBatch(ctx, productIDs[start:end], snapshots); err != nil {
			return nil, err
		}
	}
	return snapshots, nil
}

func (c *checkoutTx) fetchSnapshotBatch(ctx context.Context, productIDs []int64, out map[int64]domain.ProductSnapshot) error {
	query := `SELECT id, name, price, stock, concurrency_stamp FROM products WHERE id = ANY($1)`

	rows, err := c.tx.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		return fmt.Errorf("fetch product snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.ProductSnapshot
		if err := rows.Scan(&s.ProductID, &s.Name, &s.UnitPrice, &s.StockOnHand, &s.ConcurrencyStamp); err != nil {
			return fmt.Errorf("scan product snapshot: %w", err)
		}
		out[s.ProductID] = s
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate product snapshots: %w", err)
	}
	return nil
}

// ConditionalDecrement applies the stock decrement only if the row still
// carries the stamp captured in the snapshot. Zero rows affected means
// another transaction got there first and the caller must abort the whole
// attempt. The stock guard keeps stock from ever going negative even if a
// stale snapshot slipped past the stamp check.
func (c *checkoutTx) ConditionalDecrement(ctx context.Context, productID int64, quantity int32, expectedStamp string) (bool, error) {
	query := `UPDATE products
	          SET stock = stock - $2, concurrency_stamp = $3
	          WHERE id = $1 AND concurrency_stamp = $4 AND stock >= $2`

	res, err := c.tx.ExecContext(ctx, query, productID, quantity, uuid.NewString(), expectedStamp)
	if err != nil {
		return false, fmt.Errorf("decrement stock for product %d: %w", productID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement rows affected: %w", err)
	}
	return affected == 1, nil
}

func (c *checkoutTx) InsertOrder(ctx context.Context, order *domain.OrderRecord) error {
	query := `INSERT INTO orders (id, user_id, total_amount, created_at) VALUES ($1, $2, $3, $4)`

	_, err := c.tx.ExecContext(ctx, query, order.ID, order.BuyerID, order.TotalAmount, order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (c *checkoutTx) InsertOrderLines(ctx context.Context, orderID uuid.UUID, lines []domain.OrderLine) error {
	query := `INSERT INTO order_lines (order_id, product_id, quantity, unit_price, line_total)
	          VALUES ($1, $2, $3, $4, $5)`

	for _, line := range lines {
		_, err := c.tx.ExecContext(ctx, query, orderID, line.ProductID, line.Quantity, line.UnitPriceAtSale, line.LineTotal)
		if err != nil {
			return fmt.Errorf("insert order line for product %d: %w", line.ProductID, err)
		}
	}
	return nil
}

func (c *checkoutTx) InsertOutboxEvent(ctx context.Context, event *OutboxEvent) error {
	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`

	_, err := c.tx.ExecContext(ctx, query, event.AggregateID, event.EventType, event.Payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (c *checkoutTx) Commit() error {
	return c.tx.Commit()
}

func (c *checkoutTx) Rollback() error {
	return c.tx.Rollback()
}
