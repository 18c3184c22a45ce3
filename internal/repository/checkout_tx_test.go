package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/checkout-service/domain"
)

func setupMockTx(t *testing.T, batchSize int) (*checkoutTx, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	cleanup := func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
	return &checkoutTx{tx: tx, batchSize: batchSize}, mock, cleanup
}

func TestFetchSnapshots_SingleBatch(t *testing.T) {
	tx, mock, cleanup := setupMockTx(t, 10)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "name", "price", "stock", "concurrency_stamp"}).
		AddRow(int64(1), "keyboard", 49.90, int32(10), "stamp-1").
		AddRow(int64(2), "mouse", 19.90, int32(4), "stamp-2")
	mock.ExpectQuery("SELECT id, name, price, stock, concurrency_stamp FROM products").
		WithArgs(pq.Array([]int64{1, 2, 99})).
		WillReturnRows(rows)

	snapshots, err := tx.FetchSnapshots(context.Background(), []int64{1, 2, 99})

	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, domain.ProductSnapshot{
		ProductID: 1, Name: "keyboard", UnitPrice: 49.90, StockOnHand: 10, ConcurrencyStamp: "stamp-1",
	}, snapshots[1])
	// id 99 has no row and is simply absent
	_, found := snapshots[99]
	assert.False(t, found)
}

func TestFetchSnapshots_ChunksOverBatchCeiling(t *testing.T) {
	tx, mock, cleanup := setupMockTx(t, 2)
	defer cleanup()

	mock.ExpectQuery("SELECT id, name, price, stock, concurrency_stamp FROM products").
		WithArgs(pq.Array([]int64{1, 2})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "stock", "concurrency_stamp"}).
			AddRow(int64(1), "a", 1.0, int32(1), "s1").
			AddRow(int64(2), "b", 1.0, int32(1), "s2"))
	mock.ExpectQuery("SELECT id, name, price, stock, concurrency_stamp FROM products").
		WithArgs(pq.Array([]int64{3})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "stock", "concurrency_stamp"}).
			AddRow(int64(3), "c", 1.0, int32(1), "s3"))

	snapshots, err := tx.FetchSnapshots(context.Background(), []int64{1, 2, 3})

	require.NoError(t, err)
	assert.Len(t, snapshots, 3)
}

func TestConditionalDecrement_Applied(t *testing.T) {
	tx, mock, cleanup := setupMockTx(t, 10)
	defer cleanup()

	mock.ExpectExec("UPDATE products").
		WithArgs(int64(7), int32(3), sqlmock.AnyArg(), "expected-stamp").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := tx.ConditionalDecrement(context.Background(), 7, 3, "expected-stamp")

	require.NoError(t, err)
	assert.True(t, applied)
}

func TestConditionalDecrement_StampMismatch(t *testing.T) {
	tx, mock, cleanup := setupMockTx(t, 10)
	defer cleanup()

	mock.ExpectExec("UPDATE products").
		WithArgs(int64(7), int32(3), sqlmock.AnyArg(), "stale-stamp").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := tx.ConditionalDecrement(context.Background(), 7, 3, "stale-stamp")

	require.NoError(t, err)
	assert.False(t, applied)
}

func TestInsertOrder_Duplicate(t *testing.T) {
	tx, mock, cleanup := setupMockTx(t, 10)
	defer cleanup()

	order := &domain.OrderRecord{
		ID:          uuid.New(),
		BuyerID:     42,
		TotalAmount: 12.5,
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.BuyerID, order.TotalAmount, order.CreatedAt).
		WillReturnError(&pq.Error{Code: "23505"})

	err := tx.InsertOrder(context.Background(), order)

	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestInsertOrderLines_OneInsertPerLine(t *testing.T) {
	tx, mock, cleanup := setupMockTx(t, 10)
	defer cleanup()

	orderID := uuid.New()
	lines := []domain.OrderLine{
		{ProductID: 1, Quantity: 2, UnitPriceAtSale: 5, LineTotal: 10},
		{ProductID: 2, Quantity: 1, UnitPriceAtSale: 3, LineTotal: 3},
	}

	for _, line := range lines {
		mock.ExpectExec("INSERT INTO order_lines").
			WithArgs(orderID, line.ProductID, line.Quantity, line.UnitPriceAtSale, line.LineTotal).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	err := tx.InsertOrderLines(context.Background(), orderID, lines)

	assert.NoError(t, err)
}

func TestInsertOutboxEvent(t *testing.T) {
	tx, mock, cleanup := setupMockTx(t, 10)
	defer cleanup()

	event := &OutboxEvent{
		AggregateID: "order-1",
		EventType:   EventTypeOrderPlaced,
		Payload:     []byte(`{"order_id":"order-1"}`),
	}

	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(event.AggregateID, event.EventType, event.Payload).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := tx.InsertOutboxEvent(context.Background(), event)

	assert.NoError(t, err)
}
