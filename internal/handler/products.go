package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/vendhub/marketplace/internal/product"
)

type ProductHandler struct {
	products product.Repository
}

func NewProductHandler(products product.Repository) *ProductHandler {
	return &ProductHandler{products: products}
}

// List is the public catalog endpoint; only order-eligible products are
// returned.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := product.ListFilter{
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("category_id"); v != "" {
		if id, err := uuid.FromString(v); err == nil {
			filter.CategoryID = id
		}
	}
	if v := r.URL.Query().Get("vendor_id"); v != "" {
		if id, err := uuid.FromString(v); err == nil {
			filter.VendorID = id
		}
	}
	if v := r.URL.Query().Get("min_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinPrice = &f
		}
	}
	if v := r.URL.Query().Get("max_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MaxPrice = &f
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	products, total, err := h.products.List(r.Context(), filter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"total":    total,
	})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.products.GetEligibleByID(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"product": p})
}
