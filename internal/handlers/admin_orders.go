package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Roohan-gm/shopblizz-backend/internal/platform/auth"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type updateOrderRequest struct {
	TrackingCode *string `json:"trackingCode"`
	TotalAmount  *int64  `json:"totalAmount"`
	ShippingCost *int64  `json:"shippingCost"`
	OrderNo      *string `json:"orderNo"`
}

// AdminOrderHandlers exposes order queries and lifecycle changes for operators.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	role   string
}

// NewAdminOrderHandlers constructs admin order handlers guarded by role.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, role string) *AdminOrderHandlers {
	if strings.TrimSpace(role) == "" {
		role = auth.RoleAdmin
	}
	return &AdminOrderHandlers{authn: authn, orders: orders, role: role}
}

// Routes registers the /admin/orders endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(h.role))
	}
	r.Get("/", h.listOrders)
	r.Get("/customer", h.findByCustomer)
	r.Get("/status", h.findByStatus)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}", h.updateOrder)
	r.Patch("/{orderID}/status", h.updateStatus)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	page, err := parsePageRequest(r.URL.Query())
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	result, err := h.orders.List(ctx, page)
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSON(w, http.StatusOK, newOrderPagePayload(result))
}

func (h *AdminOrderHandlers) findByCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	query := r.URL.Query()
	page, err := parsePageRequest(query)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	result, err := h.orders.FindByCustomer(ctx, services.CustomerQuery{
		FullName: query.Get("fullName"),
		Email:    query.Get("email"),
	}, page)
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSON(w, http.StatusOK, newOrderPagePayload(result))
}

func (h *AdminOrderHandlers) findByStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	query := r.URL.Query()
	page, err := parsePageRequest(query)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	result, err := h.orders.FindByStatus(ctx, query.Get("status"), page)
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSON(w, http.StatusOK, newOrderPagePayload(result))
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	var req updateOrderStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	order, err := h.orders.UpdateStatus(ctx, pathParam(r, "orderID"), req.Status)
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSON(w, http.StatusOK, newOrderPayload(order))
}

func (h *AdminOrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	var req updateOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	order, err := h.orders.Update(ctx, pathParam(r, "orderID"), services.OrderPatch{
		TrackingCode: req.TrackingCode,
		TotalAmount:  req.TotalAmount,
		ShippingCost: req.ShippingCost,
		OrderNo:      req.OrderNo,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "order")
		return
	}
	writeJSON(w, http.StatusOK, newOrderPayload(order))
}

func (h *AdminOrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
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
