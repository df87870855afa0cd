package rest

import (
	"fmt"
	"net/http"

	"github.com/abgdnv/bazaar/internal/catalog"
	"github.com/abgdnv/bazaar/internal/service"
	"github.com/abgdnv/bazaar/pkg/web"
)

// SearchProducts filters, sorts and paginates the catalog.
// Query parameters: q, category, vendor, minPrice, maxPrice, minRating, inStock, sort, limit, offset.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	query, ok := h.parseSearch(w, r)
	if !ok {
		return
	}
	h.logger.DebugContext(r.Context(), "Received product search", "sort", query.Sort,
		"limit", query.Limit, "offset", query.Offset)

	page, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		h.respondErr(w, r, err, "Failed to search products")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, page)
}

func (h *Handler) parseSearch(w http.ResponseWriter, r *http.Request) (service.SearchQuery, bool) {
	var (
		q  service.SearchQuery
		ok bool
	)
	if text := r.URL.Query().Get("q"); text != "" {
		q.Filter.Query = &text
	}
	if q.Filter.CategoryID, ok = web.OptionalUUID(r, w, h.logger, "category"); !ok {
		return q, false
	}
	if q.Filter.VendorID, ok = web.OptionalUUID(r, w, h.logger, "vendor"); !ok {
		return q, false
	}
	// price and rating ranges are checked by the catalog: a malformed range yields an empty page
	if q.Filter.MinPrice, ok = web.OptionalInt64(r, w, h.logger, "minPrice"); !ok {
		return q, false
	}
	if q.Filter.MaxPrice, ok = web.OptionalInt64(r, w, h.logger, "maxPrice"); !ok {
		return q, false
	}
	if q.Filter.MinRating, ok = web.OptionalFloat(r, w, h.logger, "minRating"); !ok {
		return q, false
	}
	if q.Filter.InStock, ok = web.OptionalBool(r, w, h.logger, "inStock"); !ok {
		return q, false
	}

	sort, err := catalog.ParseSortKind(r.URL.Query().Get("sort"))
	if err != nil {
		web.RespondError(w, h.logger, http.StatusBadRequest, err.Error())
		return q, false
	}
	q.Sort = sort

	if q.Limit, ok = web.OptionalIntGte(r, w, h.logger, "limit", 1, catalog.DefaultPageLimit); !ok {
		return q, false
	}
	if q.Offset, ok = web.OptionalIntGte(r, w, h.logger, "offset", 0, 0); !ok {
		return q, false
	}
	return q, true
}

// FindProduct retrieves a product by its ID.
func (h *Handler) FindProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	found, err := h.catalog.FindProduct(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err, fmt.Sprintf("Failed to retrieve product with ID %s", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// ListCategories returns the category tree flattened in pre-order.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.respondErr(w, r, err, "Failed to fetch categories")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

func (h *Handler) FindCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	found, err := h.catalog.FindCategory(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err, fmt.Sprintf("Failed to retrieve category with ID %s", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

func (h *Handler) FindCategoryBySlug(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	found, err := h.catalog.FindCategoryBySlug(r.Context(), slug)
	if err != nil {
		h.respondErr(w, r, err, fmt.Sprintf("Failed to retrieve category %q", slug))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}
