package rest

import (
	"net/http"

	"github.com/abgdnv/bazaar/internal/cart"
	"github.com/abgdnv/bazaar/pkg/web"
	"github.com/google/uuid"
)

// AddItemRequest adds a product to the cart.
type AddItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int32      `json:"quantity"   validate:"required,min=1,max=999"`
}

// UpdateItemRequest sets the quantity of a line; zero removes it.
type UpdateItemRequest struct {
	Quantity *int32 `json:"quantity" validate:"required,min=0,max=999"`
}

// CartLineDto is a cart line with the product details known to the catalog.
type CartLineDto struct {
	cart.LineItem
	Name      string `json:"name,omitempty"`
	UnitPrice *int64 `json:"unit_price,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

// CartDto represents the cart of a session.
type CartDto struct {
	State       string        `json:"state"`
	Owner       string        `json:"owner"`
	Lines       []CartLineDto `json:"lines"`
	Subtotal    int64         `json:"subtotal"`
	PendingSync int           `json:"pending_sync"`
}

// WishlistDto represents the saved products of a session.
type WishlistDto struct {
	Owner string               `json:"owner"`
	Items []cart.WishlistEntry `json:"items"`
}

// ToggleDto reports whether a product is saved after a toggle.
type ToggleDto struct {
	ProductID uuid.UUID `json:"product_id"`
	Saved     bool      `json:"saved"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, h.cartDto(s))
}

// AddItem puts a product into the cart. Unknown products are refused.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !web.DecodeValid(w, r, h.logger, h.validate, &req) {
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	if _, err := h.catalog.FindProduct(r.Context(), req.ProductID); err != nil {
		h.respondErr(w, r, err, "Failed to look up product")
		return
	}

	line, err := s.Add(r.Context(), req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		h.respondErr(w, r, err, "Failed to add item to cart")
		return
	}
	h.logger.InfoContext(r.Context(), "Item added to cart", "product_id", req.ProductID, "quantity", line.Quantity)
	web.RespondJSON(w, h.logger, http.StatusCreated, h.lineDto(line))
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdateItemRequest
	if !web.DecodeValid(w, r, h.logger, h.validate, &req) {
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	line, err := s.UpdateQuantity(r.Context(), id, *req.Quantity)
	if err != nil {
		h.respondErr(w, r, err, "Failed to update cart item")
		return
	}
	if *req.Quantity < 1 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, h.lineDto(line))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := s.Remove(r.Context(), id); err != nil {
		h.respondErr(w, r, err, "Failed to remove cart item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, WishlistDto{Owner: s.Owner(), Items: nonNil(s.Wishlist())})
}

// ToggleWishlist saves the product in the path, or removes it when already saved.
func (h *Handler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	if !s.IsInWishlist(id) {
		if _, err := h.catalog.FindProduct(r.Context(), id); err != nil {
			h.respondErr(w, r, err, "Failed to look up product")
			return
		}
	}

	saved, err := s.ToggleWishlist(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err, "Failed to update wishlist")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, ToggleDto{ProductID: id, Saved: saved})
}

func (h *Handler) cartDto(s *cart.Store) CartDto {
	lines := s.Lines()
	dto := CartDto{
		State:       s.State().String(),
		Owner:       s.Owner(),
		Lines:       make([]CartLineDto, 0, len(lines)),
		Subtotal:    s.Subtotal(),
		PendingSync: len(s.PendingSync()),
	}
	for _, line := range lines {
		dto.Lines = append(dto.Lines, h.lineDto(line))
	}
	return dto
}

func (h *Handler) lineDto(line cart.LineItem) CartLineDto {
	dto := CartLineDto{LineItem: line}
	if p, ok := h.catalog.ResolveProduct(line.ProductID); ok {
		price := p.Price
		dto.Name, dto.UnitPrice, dto.Currency = p.Name, &price, p.Currency
	}
	return dto
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
