package api

import (
	"net/http"
	"time"

	"github.com/example/ec-wallet-shop/internal/api/middleware"
	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/domain/order"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

type OrderHandlers struct {
	responder
	orderService *order.Service
}

func NewOrderHandlers(orderService *order.Service, logger *zap.Logger) *OrderHandlers {
	return &OrderHandlers{responder: newResponder(logger), orderService: orderService}
}

type createOrderRequest struct {
	Items           []order.ItemRequest `json:"items"`
	ShippingAddress string              `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	Notes           string              `json:"notes"`
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

type paymentStatusRequest struct {
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
}

// CreateOrder places an order for the caller, paid from their wallet.
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	o, err := h.orderService.Create(r.Context(), order.CreateInput{
		UserID:          middleware.GetUserID(r.Context()),
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *OrderHandlers) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// CancelOrder lets the owner or an admin cancel an order.
func (h *OrderHandlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	cancelled, err := h.orderService.Cancel(r.Context(), o.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cancelled)
}

// ListOrders supports userId, status, paymentStatus, startDate and endDate
// (RFC 3339) query filters.
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.OrderFilter{
		UserID:        q.Get("userId"),
		Status:        model.OrderStatus(q.Get("status")),
		PaymentStatus: model.PaymentStatus(q.Get("paymentStatus")),
	}
	for name, dst := range map[string]**time.Time{"startDate": &filter.StartDate, "endDate": &filter.EndDate} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.respondError(w, r, apperror.Newf(apperror.ErrValidation, "%s must be an RFC 3339 timestamp", name))
			return
		}
		*dst = &t
	}

	orders, err := h.orderService.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandlers) ListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListByStatus(r.Context(), model.OrderStatus(chi.URLParam(r, "status")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	o, err := h.orderService.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrderHandlers) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	o, err := h.orderService.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "id"), req.PaymentStatus)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrderHandlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orderService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Order deleted")
}

// loadOwned fetches the order in the path and checks the caller may see it.
func (h *OrderHandlers) loadOwned(w http.ResponseWriter, r *http.Request) (*model.Order, bool) {
	o, err := h.orderService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return nil, false
	}
	if o.UserID != middleware.GetUserID(r.Context()) && !middleware.IsAdmin(r.Context()) {
		respondJSONError(w, "Access denied", http.StatusForbidden)
		return nil, false
	}
	return o, true
}
