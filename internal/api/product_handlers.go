package api

import (
	"net/http"
	"strconv"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/domain/product"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductHandlers struct {
	responder
	productService *product.Service
}

func NewProductHandlers(productService *product.Service, logger *zap.Logger) *ProductHandlers {
	return &ProductHandlers{responder: newResponder(logger), productService: productService}
}

// ListProducts supports categoryId, minPrice, maxPrice, isActive and search
// query filters.
func (h *ProductHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := productFilterFrom(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	products, err := h.productService.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func productFilterFrom(r *http.Request) (model.ProductFilter, error) {
	q := r.URL.Query()
	filter := model.ProductFilter{
		CategoryID: q.Get("categoryId"),
		Search:     q.Get("search"),
	}
	for name, dst := range map[string]**decimal.Decimal{"minPrice": &filter.MinPrice, "maxPrice": &filter.MaxPrice} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, apperror.Newf(apperror.ErrValidation, "%s must be a number", name)
		}
		*dst = &d
	}
	if raw := q.Get("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperror.New(apperror.ErrValidation, "isActive must be true or false")
		}
		filter.IsActive = &active
	}
	return filter, nil
}

func (h *ProductHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.productService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req product.CreateInput
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.productService.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *ProductHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req product.UpdateInput
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.productService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdateStock applies a signed stock delta.
func (h *ProductHandlers) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	delta, err := req.value()
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.productService.UpdateStock(r.Context(), chi.URLParam(r, "id"), delta)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.productService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Product deleted")
}
