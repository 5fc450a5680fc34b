package api

import (
	"net/http"

	"github.com/example/ec-wallet-shop/internal/api/middleware"
	"github.com/example/ec-wallet-shop/internal/domain/cart"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

type CartHandlers struct {
	responder
	cartService *cart.Service
}

func NewCartHandlers(cartService *cart.Service, logger *zap.Logger) *CartHandlers {
	return &CartHandlers{responder: newResponder(logger), cartService: cartService}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cartService.View(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.cartService.AddItem(r.Context(), middleware.GetUserID(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	quantity, err := req.value()
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.cartService.UpdateItem(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "productId"), quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.cartService.RemoveItem(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "productId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cartService.Clear(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Cart cleared")
}

// Checkout turns the cart into a wallet-paid order.
func (h *CartHandlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req cart.CheckoutInput
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	o, err := h.cartService.Checkout(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}
