package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderflow/checkout-service/domain"
	r "github.com/orderflow/checkout-service/internal/repository"
	s "github.com/orderflow/checkout-service/internal/service"
)

// ProductResolver is the slice of the repository the handler needs to
// translate legacy name-based line items into numeric ids.
type ProductResolver interface {
	ResolveProductNames(ctx context.Context, names []string) (map[string]int64, error)
}

// OrderGetter backs the order read endpoint.
type OrderGetter interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.OrderRecord, error)
}

type CheckoutHandler struct {
	checkout s.CheckoutService
	products ProductResolver
	orders   OrderGetter
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCheckoutHandler(checkout s.CheckoutService, products ProductResolver, orders OrderGetter, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		products: products,
		orders:   orders,
		timeout:  timeout,
		logger:   logger,
	}
}

type CheckoutItemDTO struct {
	ProductID int64 `json:"product_id,omitempty"`
	// ProductName is a compatibility fallback for callers that still
	// identify products by name. It is resolved to a numeric id before
	// the checkout core runs.
	ProductName string `json:"product_name,omitempty"`
	Quantity    int32  `json:"quantity"`
}

type PlaceOrderRequestDTO struct {
	Items []CheckoutItemDTO `json:"items"`
}

type PlaceOrderResponseDTO struct {
	OrderID     string  `json:"order_id"`
	TotalAmount float64 `json:"total_amount"`
}

type CheckoutErrorDTO struct {
	Code        string `json:"code"`
	ProductID   int64  `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Requested   int32  `json:"requested,omitempty"`
	Available   int32  `json:"available,omitempty"`
}

type ValidationResponseDTO struct {
	Errors []CheckoutErrorDTO `json:"errors"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	userID, err := strconv.ParseInt(req.Header.Get("X-User-ID"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var dto PlaceOrderRequestDTO
	if err := json.NewDecoder(req.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	items, nameErrors, err := h.resolveItems(ctx, dto.Items)
	if err != nil {
		h.logger.Error("failed to resolve product names", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "could not resolve product names")
		return
	}
	if len(nameErrors) > 0 {
		respondJSON(w, http.StatusUnprocessableEntity, ValidationResponseDTO{Errors: nameErrors})
		return
	}

	placed, err := h.checkout.PlaceOrder(ctx, userID, items)
	if err != nil {
		h.respondCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, PlaceOrderResponseDTO{
		OrderID:     placed.OrderID.String(),
		TotalAmount: placed.TotalAmount,
	})
}

// resolveItems maps name-identified items to ids with one batched lookup.
// Unresolved names come back as structured errors so the caller gets the
// complete report in one response.
func (h *CheckoutHandler) resolveItems(ctx context.Context, dtos []CheckoutItemDTO) ([]domain.LineItemRequest, []CheckoutErrorDTO, error) {
	var names []string
	for _, item := range dtos {
		if item.ProductID == 0 && item.ProductName != "" {
			names = append(names, item.ProductName)
		}
	}

	resolved := map[string]int64{}
	if len(names) > 0 {
		var err error
		resolved, err = h.products.ResolveProductNames(ctx, names)
		if err != nil {
			return nil, nil, err
		}
	}

	items := make([]domain.LineItemRequest, 0, len(dtos))
	var nameErrors []CheckoutErrorDTO
	for _, item := range dtos {
		productID := item.ProductID
		if productID == 0 && item.ProductName != "" {
			id, found := resolved[r.NormalizeProductName(item.ProductName)]
			if !found {
				nameErrors = append(nameErrors, CheckoutErrorDTO{
					Code:        string(domain.CodeProductNotFound),
					ProductName: item.ProductName,
					Requested:   item.Quantity,
				})
				continue
			}
			productID = id
		}
		items = append(items, domain.LineItemRequest{ProductID: productID, Quantity: item.Quantity})
	}
	return items, nameErrors, nil
}

func (h *CheckoutHandler) respondCheckoutError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		dtos := make([]CheckoutErrorDTO, len(validation.Errors))
		for i, ce := range validation.Errors {
			dtos[i] = CheckoutErrorDTO{
				Code:      string(ce.Code),
				ProductID: ce.ProductID,
				Requested: ce.Requested,
				Available: ce.Available,
			}
		}
		respondJSON(w, http.StatusUnprocessableEntity, ValidationResponseDTO{Errors: dtos})
		return
	}

	var invalidQty *domain.InvalidQuantityError
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.As(err, &invalidQty):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, s.ErrRetriesExhausted):
		respondError(w, http.StatusConflict, "concurrency_conflict", err.Error())
	case errors.Is(err, s.ErrStorageUnavailable):
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
	default:
		h.logger.Error("checkout failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// GET /api/v1/orders/{order_id}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(req, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, r.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load order", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, OrderResponseDTO{
		OrderID:     order.ID.String(),
		UserID:      order.BuyerID,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
		Lines:       order.Lines,
	})
}

type OrderResponseDTO struct {
	OrderID     string             `json:"order_id"`
	UserID      int64              `json:"user_id"`
	TotalAmount float64            `json:"total_amount"`
	CreatedAt   time.Time          `json:"created_at"`
	Lines       []domain.OrderLine `json:"lines"`
}
