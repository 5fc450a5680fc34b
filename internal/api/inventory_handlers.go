package api

import (
	"context"
	"net/http"

	"github.com/example/ec-wallet-shop/internal/domain/inventory"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

type InventoryHandlers struct {
	responder
	inventoryService *inventory.Service
}

func NewInventoryHandlers(inventoryService *inventory.Service, logger *zap.Logger) *InventoryHandlers {
	return &InventoryHandlers{responder: newResponder(logger), inventoryService: inventoryService}
}

func (h *InventoryHandlers) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.inventoryService.Report(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// LowStock accepts an optional threshold query parameter.
func (h *InventoryHandlers) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	products, err := h.inventoryService.LowStock(r.Context(), threshold)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *InventoryHandlers) OutOfStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.inventoryService.OutOfStock(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *InventoryHandlers) TotalValue(w http.ResponseWriter, r *http.Request) {
	value, err := h.inventoryService.TotalValue(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"totalValue": value})
}

func (h *InventoryHandlers) StockCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.inventoryService.StockCount(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"totalStock": count})
}

func (h *InventoryHandlers) AddStock(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.inventoryService.AddStock)
}

func (h *InventoryHandlers) RemoveStock(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.inventoryService.RemoveStock)
}

func (h *InventoryHandlers) SetStock(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.inventoryService.SetStock)
}

type stockOp func(ctx context.Context, productID string, quantity int) (*model.Product, error)

func (h *InventoryHandlers) adjust(w http.ResponseWriter, r *http.Request, op stockOp) {
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

	p, err := op(r.Context(), chi.URLParam(r, "id"), quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
