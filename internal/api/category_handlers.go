package api

import (
	"net/http"

	"github.com/example/ec-wallet-shop/internal/domain/category"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// CategoryHandlers handles category-related HTTP requests
type CategoryHandlers struct {
	responder
	categoryService *category.Service
}

// NewCategoryHandlers creates a new CategoryHandlers instance
func NewCategoryHandlers(categoryService *category.Service, logger *zap.Logger) *CategoryHandlers {
	return &CategoryHandlers{responder: newResponder(logger), categoryService: categoryService}
}

// ListCategories returns all categories
func (h *CategoryHandlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// GetCategory returns a single category
func (h *CategoryHandlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.categoryService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// CreateCategory creates a new category (admin only)
func (h *CategoryHandlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req category.Input
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.categoryService.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// UpdateCategory updates an existing category (admin only)
func (h *CategoryHandlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req category.Input
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.categoryService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DeleteCategory deletes a category (admin only)
func (h *CategoryHandlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categoryService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Category deleted")
}
