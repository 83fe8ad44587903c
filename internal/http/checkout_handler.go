package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/orders"
)

type CheckoutHandler struct {
	orders  *orders.Service
	carts   *cart.Service
	log     *slog.Logger
	timeout time.Duration
}

func NewCheckoutHandler(service *orders.Service, carts *cart.Service, log *slog.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		orders:  service,
		carts:   carts,
		log:     log,
		timeout: timeout,
	}
}

type CheckoutRequestDTO struct {
	Shipping      domain.ShippingInfo `json:"shipping"`
	PaymentMethod string              `json:"paymentMethod"`
}

type CheckoutResponse struct {
	Order *domain.Order `json:"order"`
}

type QuoteResponse struct {
	Totals        checkout.Totals `json:"totals"`
	FreeShipping  bool            `json:"freeShipping"`
	CouponApplied bool            `json:"couponApplied"`
}

// Quote reports what the current cart would cost at checkout.
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.carts.Get(ctx, cartOwner(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	totals := cart.ComputeTotals(c)

	respondJSON(w, http.StatusOK, QuoteResponse{
		Totals:        checkout.Quote(totals),
		FreeShipping:  totals.ShippingFee == 0,
		CouponApplied: totals.Discount > 0,
	})
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.CreateOrder(ctx, orders.CreateOrderRequest{
		Owner:         cartOwner(r.Context()),
		User:          currentUser(r.Context()),
		Shipping:      req.Shipping,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponse{Order: order})
}
