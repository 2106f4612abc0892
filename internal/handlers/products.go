package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

// ProductHandlers exposes the public catalog.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs public catalog handlers.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listAvailable)
	r.Get("/all", h.search)
	r.Get("/categories", h.categories)
	r.Get("/category/{category}", h.listByCategory)
	r.Get("/{productID}", h.getProduct)
}

func (h *ProductHandlers) listAvailable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	page, err := parsePageRequest(r.URL.Query())
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	result, err := h.catalog.ListAvailable(ctx, page)
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPagePayload(result))
}

// search matches name and description and includes products that are temporarily unavailable.
func (h *ProductHandlers) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	query := r.URL.Query()
	page, err := parsePageRequest(query)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	result, err := h.catalog.Search(ctx, services.ProductFilter{
		Query:    strings.TrimSpace(query.Get("search")),
		Category: strings.TrimSpace(query.Get("category")),
		Page:     page,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPagePayload(result))
}

func (h *ProductHandlers) listByCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	page, err := parsePageRequest(r.URL.Query())
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	result, err := h.catalog.ListByCategory(ctx, pathParam(r, "category"), page)
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPagePayload(result))
}

func (h *ProductHandlers) categories(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeServiceUnavailable(r.Context(), w, "catalog")
		return
	}
	categories := h.catalog.Categories()
	names := make([]string, 0, len(categories))
	for _, category := range categories {
		names = append(names, string(category))
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": names})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.Get(ctx, pathParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPayload(product))
}
