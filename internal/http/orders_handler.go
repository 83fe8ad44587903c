package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/qr"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	lookup      *orders.Lookup
	log         *slog.Logger
	trackingURL string
	timeout     time.Duration
}

// NewOrdersHandler serves order history and tracking. trackingURL is a format
// string taking the order id, encoded into tracking QR codes.
func NewOrdersHandler(lookup *orders.Lookup, log *slog.Logger, trackingURL string, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		lookup:      lookup,
		log:         log,
		trackingURL: trackingURL,
		timeout:     timeout,
	}
}

type OrderListResponse struct {
	Orders     []*domain.Order `json:"orders"`
	TotalCount int             `json:"total_count"`
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := currentUser(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	list, err := h.lookup.ListByUser(ctx, user.UID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	orders.SortByOrderDate(list, true)

	respondJSON(w, http.StatusOK, newOrderList(list))
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.visibleOrder(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GetOrderQR renders the order's tracking link as a PNG.
func (h *OrdersHandler) GetOrderQR(w http.ResponseWriter, r *http.Request) {
	order, ok := h.visibleOrder(w, r)
	if !ok {
		return
	}

	size := qr.DefaultSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			respondError(w, http.StatusBadRequest, "invalid_size", "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := qr.PNG(h.trackingLink(order.ID), size)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.WarnContext(r.Context(), "write qr response failed", "order_id", order.ID, "error", err)
	}
}

// visibleOrder loads the order named in the path. Orders of signed-in users
// are only shown to their owner and to admins; others see a 404.
func (h *OrdersHandler) visibleOrder(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.lookup.GetByID(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return nil, false
	}

	user := currentUser(r.Context())
	if order.UserID != domain.GuestUserID && !user.IsAdmin() && user.UserID() != order.UserID {
		handleError(w, r, h.log, domain.ErrNotFound)
		return nil, false
	}
	return order, true
}

func (h *OrdersHandler) trackingLink(id string) string {
	if h.trackingURL == "" {
		return id
	}
	return fmt.Sprintf(h.trackingURL, id)
}

func newOrderList(list []*domain.Order) OrderListResponse {
	if list == nil {
		list = []*domain.Order{}
	}
	return OrderListResponse{Orders: list, TotalCount: len(list)}
}
