package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderflow/checkout-service/domain"
	r "github.com/orderflow/checkout-service/internal/repository"
)

type CheckoutService interface {
	PlaceOrder(ctx context.Context, buyerID int64, items []domain.LineItemRequest) (*domain.PlacedOrder, error)
}

type Config struct {
	// MaxAttempts bounds how many times a checkout is tried when attempts
	// keep losing the concurrency-stamp race.
	MaxAttempts int

	// BackoffBase is the first retry delay; later retries double it and
	// add jitter.
	BackoffBase time.Duration

	// StorageRetries bounds retries of infrastructure failures, counted
	// separately from stamp conflicts.
	StorageRetries int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BackoffBase:    50 * time.Millisecond,
		StorageRetries: 2,
	}
}

type CheckoutServiceImpl struct {
	repo   r.RepoInterface
	cfg    Config
	logger *zap.Logger
}

func NewCheckoutService(repo r.RepoInterface, cfg Config, logger *zap.Logger) *CheckoutServiceImpl {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.StorageRetries < 0 {
		cfg.StorageRetries = def.StorageRetries
	}
	return &CheckoutServiceImpl{repo: repo, cfg: cfg, logger: logger}
}

// PlaceOrder runs the whole checkout: normalize the cart, then attempt
// read-validate-commit until it succeeds, fails validation, or exhausts the
// retry budget. Each attempt is one transaction issuing exactly one batched
// read and one write pass; nothing persists unless the attempt commits.
func (s *CheckoutServiceImpl) PlaceOrder(ctx context.Context, buyerID int64, items []domain.LineItemRequest) (*domain.PlacedOrder, error) {
	cart, err := domain.NormalizeCart(items)
	if err != nil {
		return nil, err
	}

	conflicts := 0
	storageFailures := 0
	for {
		placed, err := s.attempt(ctx, buyerID, cart)
		if err == nil {
			s.logger.Info("order placed",
				zap.String("order_id", placed.OrderID.String()),
				zap.Int64("buyer_id", buyerID),
				zap.Float64("total_amount", placed.TotalAmount),
				zap.Int("conflicts", conflicts))
			return placed, nil
		}

		// Validation failures are terminal: re-reading stock will not fix
		// a cart that references a missing product.
		var validation *domain.ValidationError
		if errors.As(err, &validation) {
			return nil, err
		}

		var conflict *ConflictError
		if errors.As(err, &conflict) {
			conflicts++
			if conflicts >= s.cfg.MaxAttempts {
				return nil, fmt.Errorf("%w: product %d still contended after %d attempts",
					ErrRetriesExhausted, conflict.ProductID, conflicts)
			}
			s.logger.Warn("checkout conflict, retrying",
				zap.Int64("buyer_id", buyerID),
				zap.Int64("product_id", conflict.ProductID),
				zap.Int("attempt", conflicts))
			if werr := sleepWithContext(ctx, backoffDelay(s.cfg.BackoffBase, conflicts)); werr != nil {
				return nil, werr
			}
			continue
		}

		storageFailures++
		if storageFailures > s.cfg.StorageRetries {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		s.logger.Warn("checkout storage failure, retrying",
			zap.Int64("buyer_id", buyerID),
			zap.Int("attempt", storageFailures),
			zap.Error(err))
		if werr := sleepWithContext(ctx, backoffDelay(s.cfg.BackoffBase, storageFailures)); werr != nil {
			return nil, werr
		}
	}
}

func (s *CheckoutServiceImpl) attempt(ctx context.Context, buyerID int64, cart *domain.AggregatedCart) (*domain.PlacedOrder, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}

	placed, err := s.runAttempt(ctx, tx, buyerID, cart)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit checkout: %w", err)
	}
	return placed, nil
}

func (s *CheckoutServiceImpl) runAttempt(ctx context.Context, tx r.CheckoutTx, buyerID int64, cart *domain.AggregatedCart) (*domain.PlacedOrder, error) {
	snapshots, err := tx.FetchSnapshots(ctx, cart.ProductIDs())
	if err != nil {
		return nil, err
	}

	plan, validation := BuildOrderPlan(buyerID, cart, snapshots)
	if validation != nil {
		return nil, validation
	}

	order := orderFromPlan(plan)
	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	// Decrements always run in ascending product id order so two carts
	// sharing products never take row locks in opposite order.
	for _, line := range sortedByProductID(plan.Lines) {
		stamp := plan.Snapshots[line.ProductID].ConcurrencyStamp
		applied, err := tx.ConditionalDecrement(ctx, line.ProductID, line.Quantity, stamp)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, &ConflictError{ProductID: line.ProductID}
		}
	}

	if err := tx.InsertOrderLines(ctx, order.ID, order.Lines); err != nil {
		return nil, err
	}

	event, err := orderPlacedEvent(order)
	if err != nil {
		return nil, err
	}
	if err := tx.InsertOutboxEvent(ctx, event); err != nil {
		return nil, err
	}

	return &domain.PlacedOrder{OrderID: order.ID, TotalAmount: order.TotalAmount}, nil
}

func orderFromPlan(plan *domain.ValidatedOrderPlan) *domain.OrderRecord {
	lines := make([]domain.OrderLine, len(plan.Lines))
	for i, line := range plan.Lines {
		lines[i] = domain.OrderLine{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			UnitPriceAtSale: line.UnitPrice,
			LineTotal:       line.LineTotal,
		}
	}
	return &domain.OrderRecord{
		ID:          uuid.New(),
		BuyerID:     plan.BuyerID,
		TotalAmount: plan.TotalAmount,
		Lines:       lines,
		CreatedAt:   time.Now().UTC(),
	}
}

func sortedByProductID(lines []domain.PlanLine) []domain.PlanLine {
	sorted := make([]domain.PlanLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}

func orderPlacedEvent(order *domain.OrderRecord) (*r.OutboxEvent, error) {
	payload := map[string]interface{}{
		"order_id":     order.ID,
		"user_id":      order.BuyerID,
		"total_amount": order.TotalAmount,
		"lines":        order.Lines,
		"placed_at":    order.CreatedAt,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order placed payload: %w", err)
	}

	return &r.OutboxEvent{
		AggregateID: order.ID.String(),
		EventType:   r.EventTypeOrderPlaced,
		Payload:     payloadJSON,
	}, nil
}
