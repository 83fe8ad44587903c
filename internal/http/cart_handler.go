package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	carts    *cart.Service
	products *catalog.Store
	log      *slog.Logger
	timeout  time.Duration
}

func NewCartHandler(carts *cart.Service, products *catalog.Store, log *slog.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		products: products,
		log:      log,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductRef string `json:"productRef"`
	Quantity   int    `json:"quantity"`
}

type ApplyCouponRequestDTO struct {
	Code string `json:"code"`
}

// CartResponse is the cart plus its derived totals.
type CartResponse struct {
	*domain.Cart
	ItemCount int         `json:"itemCount"`
	Totals    cart.Totals `json:"totals"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	return CartResponse{
		Cart:      c,
		ItemCount: c.ItemCount(),
		Totals:    cart.ComputeTotals(c),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.carts.Get(ctx, cartOwner(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.ProductRef = strings.TrimSpace(req.ProductRef)
	if req.ProductRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_ref", "productRef is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, err := h.products.Get(ctx, req.ProductRef)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	c, err := h.carts.Add(ctx, cartOwner(r.Context()), *product, req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(c))
}

func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.carts.Increment)
}

func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.carts.Decrement)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.carts.Remove)
}

func (h *CartHandler) lineOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, owner, ref string) (*domain.Cart, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := op(ctx, cartOwner(r.Context()), chi.URLParam(r, "ref"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ApplyCouponRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.carts.ApplyCoupon(ctx, cartOwner(r.Context()), req.Code)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.carts.RemoveCoupon(ctx, cartOwner(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.Clear(ctx, cartOwner(r.Context())); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Events streams the caller's cart as server-sent events: the current cart
// first, then every change until the client goes away.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	owner := cartOwner(r.Context())
	if owner == "" {
		handleError(w, r, h.log, cart.ErrNoOwner)
		return
	}

	rc := http.NewResponseController(w)
	// the server write timeout would cut the stream off
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.WarnContext(r.Context(), "clear write deadline failed", "error", err)
	}

	changes, cancel := h.carts.SubscribeOwner(owner)
	defer cancel()

	c, err := h.carts.Get(r.Context(), owner)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeCartEvent(w, c); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.log.WarnContext(r.Context(), "cart stream cannot flush", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := writeCartEvent(w, change.Cart); err != nil {
				h.log.DebugContext(r.Context(), "cart stream closed", "owner", owner, "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeCartEvent(w http.ResponseWriter, c *domain.Cart) error {
	payload, err := json.Marshal(newCartResponse(c))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: cart\ndata: %s\n\n", payload)
	return err
}
