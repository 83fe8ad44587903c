package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CatalogHandler struct {
	store   *catalog.Store
	view    *catalog.View
	log     *slog.Logger
	timeout time.Duration
}

// NewCatalogHandler serves listings from view once it has a snapshot and reads
// the store directly until then. view may be nil.
func NewCatalogHandler(store *catalog.Store, view *catalog.View, log *slog.Logger, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		store:   store,
		view:    view,
		log:     log,
		timeout: timeout,
	}
}

type CategoryListResponse struct {
	Categories []domain.Category `json:"categories"`
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, field, err := parseFilter(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   err.Error(),
			Code:    "invalid_filter",
			Details: field,
		})
		return
	}

	products, err := h.products(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, catalog.Project(products, filter))
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.store.Get(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.store.Categories(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}

	respondJSON(w, http.StatusOK, CategoryListResponse{Categories: categories})
}

func (h *CatalogHandler) products(ctx context.Context) ([]domain.Product, error) {
	if h.view != nil && h.view.Loaded() {
		return h.view.Snapshot(), nil
	}
	return h.store.All(ctx)
}

// parseFilter reads listing criteria from the query string. It returns the
// name of the offending parameter alongside any error.
func parseFilter(r *http.Request) (catalog.Filter, string, error) {
	q := r.URL.Query()
	f := catalog.Filter{
		CategorySlug: strings.TrimSpace(q.Get("category")),
		SearchText:   q.Get("q"),
	}

	var err error
	if f.PriceRange, err = catalog.ParsePriceRange(q.Get("price")); err != nil {
		return f, "price", err
	}
	if f.DiscountTier, err = catalog.ParseDiscountTier(q.Get("discount")); err != nil {
		return f, "discount", err
	}
	if f.Sort, err = catalog.ParseSortKey(q.Get("sort")); err != nil {
		return f, "sort", err
	}
	if v := q.Get("minRating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, "minRating", err
		}
		f.MinRating = &rating
	}
	if f.Page, err = intParam(q.Get("page")); err != nil {
		return f, "page", err
	}
	if f.PageSize, err = intParam(q.Get("pageSize")); err != nil {
		return f, "pageSize", err
	}

	return f, "", nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
