package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	orders  *orders.Service
	lookup  *orders.Lookup
	log     *slog.Logger
	timeout time.Duration
}

func NewAdminHandler(service *orders.Service, lookup *orders.Lookup, log *slog.Logger, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		orders:  service,
		lookup:  lookup,
		log:     log,
		timeout: timeout,
	}
}

type AdminOrderListResponse struct {
	OrderListResponse
	Revenue int64 `json:"revenue"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type UpdatePaymentRequestDTO struct {
	PaymentStatus string `json:"paymentStatus"`
}

// ListOrders filters all orders by the query string, newest first.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	criteria, field, err := parseCriteria(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   err.Error(),
			Code:    "invalid_filter",
			Details: field,
		})
		return
	}

	list, err := h.lookup.Query(ctx, criteria)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	orders.SortByOrderDate(list, true)

	respondJSON(w, http.StatusOK, AdminOrderListResponse{
		OrderListResponse: newOrderList(list),
		Revenue:           orders.Revenue(list),
	})
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		handleError(w, r, h.log, &domain.ValidationError{Field: "status"})
		return
	}

	order, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "order_id"), status)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdatePaymentRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.UpdatePaymentStatus(ctx, chi.URLParam(r, "order_id"), domain.PaymentStatus(req.PaymentStatus))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// parseCriteria reads admin filters. Dates are RFC 3339 or YYYY-MM-DD; a bare
// "to" date covers that whole day.
func parseCriteria(r *http.Request) (orders.Criteria, string, error) {
	q := r.URL.Query()
	var c orders.Criteria

	if v := q.Get("userId"); v != "" {
		c.UserID = &v
	}
	if v := q.Get("status"); v != "" {
		st, err := domain.ParseOrderStatus(v)
		if err != nil {
			return c, "status", err
		}
		c.Status = &st
	}
	if v := q.Get("paymentMethod"); v != "" {
		m, err := domain.ParsePaymentMethod(v)
		if err != nil {
			return c, "paymentMethod", err
		}
		c.PaymentMethod = &m
	}
	if v := q.Get("paymentStatus"); v != "" {
		ps, err := domain.ParsePaymentStatus(v)
		if err != nil {
			return c, "paymentStatus", err
		}
		c.PaymentStatus = &ps
	}
	if v := q.Get("from"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			return c, "from", err
		}
		c.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			return c, "to", err
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		c.To = &t
	}
	if v := q.Get("minTotal"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c, "minTotal", err
		}
		c.MinTotal = &n
	}
	if v := q.Get("maxTotal"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c, "maxTotal", err
		}
		c.MaxTotal = &n
	}

	return c, "", nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}
