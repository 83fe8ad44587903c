package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/keylock"
	"github.com/fjod/go_storefront/internal/store"
	"github.com/jinzhu/copier"
)

const DefaultNotifyTimeout = 5 * time.Second

// CartSource is the part of the cart service checkout needs. Checkout runs
// place against the owner's cart with further changes held off, and clears the
// cart only when place succeeds.
type CartSource interface {
	Checkout(ctx context.Context, owner string, place func(*domain.Cart) error) error
}

// Notifier is told about every committed order. Its failures never undo the order.
type Notifier interface {
	Notify(ctx context.Context, userID, orderID string) error
}

type CreateOrderRequest struct {
	// Owner keys the cart being checked out.
	Owner         string
	User          *domain.CurrentUser
	Shipping      domain.ShippingInfo
	PaymentMethod domain.PaymentMethod
}

type Service struct {
	docs          store.DocumentStore
	lookup        *Lookup
	carts         CartSource
	validator     *checkout.Validator
	notifier      Notifier
	locks         *keylock.Map
	log           *slog.Logger
	notifyTimeout time.Duration
	now           func() time.Time
}

func NewService(docs store.DocumentStore, carts CartSource, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		docs:          docs,
		lookup:        NewLookup(docs, log),
		carts:         carts,
		validator:     checkout.NewValidator(),
		notifier:      notifier,
		locks:         keylock.New(),
		log:           log,
		notifyTimeout: DefaultNotifyTimeout,
		now:           time.Now,
	}
}

// SetNotifyTimeout bounds how long CreateOrder waits on the notifier.
func (s *Service) SetNotifyTimeout(d time.Duration) {
	if d > 0 {
		s.notifyTimeout = d
	}
}

// CreateOrder turns the owner's cart into an order. Validation failures and an
// empty cart are reported before anything is written. Once the store write is
// issued it runs to completion regardless of ctx. A failed write leaves the cart
// as it was; a failed cart clear or notification is only logged.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	shipping, err := s.validator.Validate(req.Shipping)
	if err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return nil, &domain.ValidationError{Field: "paymentMethod"}
	}

	writeCtx := context.WithoutCancel(ctx)
	var order *domain.Order
	err = s.carts.Checkout(ctx, req.Owner, func(c *domain.Cart) error {
		draft, err := s.validator.Prepare(c, shipping)
		if err != nil {
			return err
		}
		order, err = s.newOrder(req, method, draft)
		if err != nil {
			return err
		}

		id, err := s.docs.Create(writeCtx, OrdersCollection, order)
		if err != nil {
			return &domain.StoreError{Op: "create order", Err: err}
		}
		order.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order created",
		"order_id", order.ID, "user_id", order.UserID, "total", order.Total, "payment_method", order.PaymentMethod)

	s.notify(writeCtx, order)
	return order, nil
}

func (s *Service) newOrder(req CreateOrderRequest, method domain.PaymentMethod, draft *checkout.Draft) (*domain.Order, error) {
	var items []domain.OrderItem
	if err := copier.CopyWithOption(&items, draft.Lines, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy cart lines: %w", err)
	}

	return &domain.Order{
		UserID:        req.User.UserID(),
		CustomerName:  draft.Shipping.FullName,
		Phone:         draft.Shipping.Phone,
		Email:         draft.Shipping.Email,
		Address:       draft.Shipping.Address,
		Note:          draft.Shipping.Note,
		Items:         items,
		Subtotal:      draft.Totals.Subtotal,
		Shipping:      draft.Totals.Shipping,
		Discount:      draft.Totals.Discount,
		Total:         draft.Totals.Total,
		Coupon:        draft.Coupon,
		Status:        domain.OrderStatusPending,
		PaymentMethod: method,
		PaymentStatus: method.InitialPaymentStatus(),
		OrderDate:     s.now(),
	}, nil
}

func (s *Service) notify(ctx context.Context, order *domain.Order) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, order.UserID, order.ID); err != nil {
		s.log.WarnContext(ctx, "order notification failed", "order_id", order.ID, "error", err)
	}
}

// UpdateStatus moves an order along the state machine and stamps the matching
// timestamp the first time that state is reached. Updates to one order are
// serialized so each transition is checked against the committed status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	unlock := s.locks.Lock(strings.TrimSpace(id))
	defer unlock()

	order, err := s.lookup.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(order.Status, status) {
		return nil, &domain.InvalidTransitionError{From: order.Status, To: status}
	}

	fields := map[string]any{"status": status}
	now := s.now()
	if order.SetTimestamp(status, now) {
		fields[domain.TimestampField(status)] = now
	}

	if err := s.update(ctx, order.ID, fields); err != nil {
		return nil, err
	}
	order.Status = status
	s.log.InfoContext(ctx, "order status updated", "order_id", order.ID, "status", status)
	return order, nil
}

// UpdatePaymentStatus is independent of the order state machine.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Order, error) {
	parsed, err := domain.ParsePaymentStatus(string(status))
	if err != nil {
		return nil, &domain.ValidationError{Field: "paymentStatus"}
	}
	unlock := s.locks.Lock(strings.TrimSpace(id))
	defer unlock()

	order, err := s.lookup.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.update(ctx, order.ID, map[string]any{"paymentStatus": parsed}); err != nil {
		return nil, err
	}
	order.PaymentStatus = parsed
	s.log.InfoContext(ctx, "order payment status updated", "order_id", order.ID, "payment_status", parsed)
	return order, nil
}

func (s *Service) update(ctx context.Context, id string, fields map[string]any) error {
	err := s.docs.Update(ctx, store.Path(OrdersCollection, id), fields)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return &domain.StoreError{Op: "update order", Err: err}
	}
	return nil
}
