package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/perkhub/coffee-shop-backend/internal/api/middleware"
	"github.com/perkhub/coffee-shop-backend/internal/models"
	"github.com/perkhub/coffee-shop-backend/internal/service"
)

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderRequest struct {
	Items []service.NewOrderItem `json:"items"`
}

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	details, err := h.orders.Create(r.Context(), identity.UserID, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, details)
}

// List handles GET /api/orders?status= for the caller's own orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	orders, err := h.orders.ListMine(r.Context(), identity.UserID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// Get handles GET /api/orders/{id}; the owner or an admin may read an
// order.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	details, err := h.orders.Get(r.Context(), id, identity.UserID, identity.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/orders/{id}/status (admin).
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type updatePaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// UpdatePayment handles PATCH /api/orders/{id}/payment (admin).
func (h *OrderHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req updatePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := models.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.orders.UpdatePayment(r.Context(), id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "order id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
