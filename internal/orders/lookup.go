package orders

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/store"
)

const OrdersCollection = "orders"

// Lookup reads orders back for tracking and admin views. Results carry no
// implicit order; use SortByOrderDate when one is needed.
type Lookup struct {
	docs store.DocumentStore
	log  *slog.Logger
}

func NewLookup(docs store.DocumentStore, log *slog.Logger) *Lookup {
	return &Lookup{docs: docs, log: log}
}

func (l *Lookup) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return nil, domain.ErrNotFound
	}

	var o domain.Order
	err := l.docs.Read(ctx, store.Path(OrdersCollection, id), &o)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "read order", Err: err}
	}
	o.ID = id
	return &o, nil
}

func (l *Lookup) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return l.find(ctx, "userId", userID)
}

func (l *Lookup) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	return l.find(ctx, "status", string(status))
}

func (l *Lookup) ListByPaymentMethod(ctx context.Context, method domain.PaymentMethod) ([]*domain.Order, error) {
	return l.find(ctx, "paymentMethod", string(method))
}

// ListByDateRange scans every order: O(n) in the total order count.
// Zero bounds are open; set bounds are inclusive.
func (l *Lookup) ListByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Order, error) {
	c := Criteria{}
	if !from.IsZero() {
		c.From = &from
	}
	if !to.IsZero() {
		c.To = &to
	}
	return l.Query(ctx, c)
}

// ListByTotalRange scans every order: O(n) in the total order count.
// Both bounds are inclusive.
func (l *Lookup) ListByTotalRange(ctx context.Context, minTotal, maxTotal int64) ([]*domain.Order, error) {
	return l.Query(ctx, Criteria{MinTotal: &minTotal, MaxTotal: &maxTotal})
}

// Query scans every order and keeps those matching all set criteria.
// It is O(n) in the total order count; there is no range index.
func (l *Lookup) Query(ctx context.Context, c Criteria) ([]*domain.Order, error) {
	records, err := l.docs.List(ctx, OrdersCollection)
	if err != nil {
		return nil, &domain.StoreError{Op: "list orders", Err: err}
	}

	all := l.decode(records)
	out := make([]*domain.Order, 0, len(all))
	for _, o := range all {
		if c.Matches(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (l *Lookup) find(ctx context.Context, field, value string) ([]*domain.Order, error) {
	records, err := l.docs.Find(ctx, OrdersCollection, field, value)
	if err != nil {
		return nil, &domain.StoreError{Op: "find orders by " + field, Err: err}
	}
	return l.decode(records), nil
}

func (l *Lookup) decode(records []store.Record) []*domain.Order {
	out := make([]*domain.Order, 0, len(records))
	for _, r := range records {
		var o domain.Order
		if err := r.Decode(&o); err != nil {
			l.log.Warn("skipping malformed order", "key", r.Key, "error", err)
			continue
		}
		o.ID = r.Key
		out = append(out, &o)
	}
	return out
}

// SortByOrderDate sorts in place, newest first when desc is set. Ties keep their order.
func SortByOrderDate(orders []*domain.Order, desc bool) {
	sort.SliceStable(orders, func(i, j int) bool {
		if desc {
			return orders[i].OrderDate.After(orders[j].OrderDate)
		}
		return orders[i].OrderDate.Before(orders[j].OrderDate)
	})
}

// Revenue sums the totals of completed orders that were not refunded.
func Revenue(orders []*domain.Order) int64 {
	var sum int64
	for _, o := range orders {
		if o.Status == domain.OrderStatusCompleted && o.PaymentStatus != domain.PaymentRefunded {
			sum += o.Total
		}
	}
	return sum
}
