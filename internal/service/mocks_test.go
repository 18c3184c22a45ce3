package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/orderflow/checkout-service/domain"
	r "github.com/orderflow/checkout-service/internal/repository"
)

// MockCheckoutTx implements r.CheckoutTx for testing
type MockCheckoutTx struct {
	Snapshots        map[int64]domain.ProductSnapshot
	FetchErr         error
	FetchCalls       [][]int64
	ConflictProducts map[int64]bool // products whose decrement reports a stamp mismatch
	DecrementErr     error
	DecrementedIDs   []int64 // order in which decrements were issued
	InsertedOrder    *domain.OrderRecord
	InsertOrderErr   error
	InsertedLines    []domain.OrderLine
	InsertedEvents   []*r.OutboxEvent
	Committed        bool
	RolledBack       bool
}

func (m *MockCheckoutTx) FetchSnapshots(_ context.Context, productIDs []int64) (map[int64]domain.ProductSnapshot, error) {
	m.FetchCalls = append(m.FetchCalls, productIDs)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	result := make(map[int64]domain.ProductSnapshot, len(productIDs))
	for _, id := range productIDs {
		if s, found := m.Snapshots[id]; found {
			result[id] = s
		}
	}
	return result, nil
}

func (m *MockCheckoutTx) ConditionalDecrement(_ context.Context, productID int64, _ int32, _ string) (bool, error) {
	if m.DecrementErr != nil {
		return false, m.DecrementErr
	}
	m.DecrementedIDs = append(m.DecrementedIDs, productID)
	if m.ConflictProducts[productID] {
		return false, nil
	}
	return true, nil
}

func (m *MockCheckoutTx) InsertOrder(_ context.Context, order *domain.OrderRecord) error {
	if m.InsertOrderErr != nil {
		return m.InsertOrderErr
	}
	m.InsertedOrder = order
	return nil
}

func (m *MockCheckoutTx) InsertOrderLines(_ context.Context, _ uuid.UUID, lines []domain.OrderLine) error {
	m.InsertedLines = append(m.InsertedLines, lines...)
	return nil
}

func (m *MockCheckoutTx) InsertOutboxEvent(_ context.Context, event *r.OutboxEvent) error {
	m.InsertedEvents = append(m.InsertedEvents, event)
	return nil
}

func (m *MockCheckoutTx) Commit() error {
	m.Committed = true
	return nil
}

func (m *MockCheckoutTx) Rollback() error {
	m.RolledBack = true
	return nil
}

// MockRepository implements r.RepoInterface for testing. Begin hands out
// the configured transactions in order, one per attempt.
type MockRepository struct {
	Txs        []*MockCheckoutTx
	BeginErr   error
	BeginCalls int
}

func (m *MockRepository) Begin(_ context.Context) (r.CheckoutTx, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	idx := m.BeginCalls
	m.BeginCalls++
	if idx >= len(m.Txs) {
		idx = len(m.Txs) - 1
	}
	return m.Txs[idx], nil
}

func (m *MockRepository) GetOrderByID(_ context.Context, _ uuid.UUID) (*domain.OrderRecord, error) {
	return nil, r.ErrOrderNotFound
}

func (m *MockRepository) ResolveProductNames(_ context.Context, _ []string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (m *MockRepository) GetUnprocessedEvents(_ context.Context, _ int) ([]*r.OutboxEvent, error) {
	return nil, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, _ int64) error {
	return nil
}

func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) RunMigrations(*r.Credentials) error {
	return nil
}
