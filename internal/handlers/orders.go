package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/auth"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/httpx"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

type createOrderItemRequest struct {
	Product   string `json:"product"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type createOrderRequest struct {
	FullName       string                   `json:"fullName"`
	Email          string                   `json:"email"`
	Phone          string                   `json:"phone"`
	Address        string                   `json:"address"`
	ShippingMethod string                   `json:"shippingMethod"`
	OrderItems     []createOrderItemRequest `json:"orderItems"`

	// Totals and the order number are always computed server-side; client values are discarded.
	TotalAmount  json.RawMessage `json:"totalAmount,omitempty"`
	ShippingCost json.RawMessage `json:"shippingCost,omitempty"`
	OrderNo      json.RawMessage `json:"orderNo,omitempty"`
}

func (req createOrderRequest) toCommand() services.CreateOrderCommand {
	items := make([]domain.OrderItem, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		items = append(items, domain.OrderItem{
			ProductID: item.Product,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return services.CreateOrderCommand{
		Customer: domain.Customer{
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    req.Phone,
			Address:  req.Address,
		},
		ShippingMethod: req.ShippingMethod,
		Items:          items,
	}
}

// OrderHandlers exposes checkout, order lookup and customer cancellation.
type OrderHandlers struct {
	authn   *auth.Authenticator
	orders  services.OrderService
	limiter rateLimiter
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithCheckoutRateLimit caps order submissions per client address. A zero limit disables it.
func WithCheckoutRateLimit(limit int, window time.Duration, clock func() time.Time) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.limiter = newWindowRateLimiter(limit, window, clock)
	}
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{authn: authn, orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints. Checkout and lookup are public; cancelling requires a
// signed-in user.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Group(func(authed chi.Router) {
		if h.authn != nil {
			authed.Use(h.authn.RequireFirebaseAuth())
		}
		authed.Post("/{orderID}/cancel", h.cancelOrder)
	})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	if h.limiter != nil {
		if ok, retryAfter := h.limiter.Allow(clientAddress(r)); !ok {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
			httpx.WriteError(ctx, w, httpx.NewError("rate_limited", fmt.Sprintf("too many orders, retry in %ds", max(seconds, 1)), http.StatusTooManyRequests))
			return
		}
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	order, err := h.orders.Create(ctx, req.toCommand())
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/orders/%s", defaultAPIPrefix, order.ID))
	writeJSON(w, http.StatusCreated, newOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	view, err := h.orders.Get(ctx, pathParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSON(w, http.StatusOK, newOrderViewPayload(view))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	order, err := h.orders.Cancel(ctx, pathParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSON(w, http.StatusOK, newOrderPayload(order))
}
