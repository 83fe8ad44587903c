package cart

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/keylock"
)

var ErrNoOwner = errors.New("cart owner is required")

// Service owns every cart mutation. Each one locks the owner, re-reads the
// persisted cart, applies the change, saves the whole cart and publishes it.
type Service struct {
	storage Storage
	log     *slog.Logger
	locks   *keylock.Map
	changes *broadcaster
	now     func() time.Time
}

func NewService(storage Storage, log *slog.Logger) *Service {
	return &Service{
		storage: storage,
		log:     log,
		locks:   keylock.New(),
		changes: newBroadcaster(),
		now:     time.Now,
	}
}

// Subscribe returns a channel of cart changes and a func that ends the subscription.
// A slow reader only ever sees the latest change.
func (s *Service) Subscribe() (<-chan Change, func()) {
	return s.changes.subscribe("")
}

// SubscribeOwner is Subscribe restricted to one owner's cart.
func (s *Service) SubscribeOwner(owner string) (<-chan Change, func()) {
	return s.changes.subscribe(owner)
}

// Get returns the owner's cart, or an empty one if nothing is stored.
func (s *Service) Get(ctx context.Context, owner string) (*domain.Cart, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.load(ctx, owner)
}

func (s *Service) Totals(ctx context.Context, owner string) (Totals, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return Totals{}, err
	}
	return ComputeTotals(c), nil
}

// Add puts qty units of p in the cart. An existing line keeps its price
// snapshot and only gains quantity.
func (s *Service) Add(ctx context.Context, owner string, p domain.Product, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	ref := p.ID
	if ref == "" {
		ref = p.Code
	}
	if ref == "" {
		return nil, domain.ErrNotFound
	}

	return s.mutate(ctx, owner, func(c *domain.Cart) (bool, error) {
		idx := c.ResolveRef(ref)
		if idx < 0 && p.Code != "" {
			idx = c.ResolveRef(p.Code)
		}
		if idx >= 0 {
			c.Lines[idx].Quantity += qty
			return true, nil
		}
		c.Lines = append(c.Lines, domain.CartLine{
			ProductRef:        ref,
			Code:              p.Code,
			Name:              p.Name,
			UnitPrice:         p.EffectivePrice(),
			OriginalUnitPrice: p.Price,
			ImageURL:          p.ImageURL,
			Quantity:          qty,
		})
		return true, nil
	})
}

func (s *Service) Increment(ctx context.Context, owner, ref string) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart) (bool, error) {
		idx := c.ResolveRef(ref)
		if idx < 0 {
			return false, domain.ErrLineNotFound
		}
		c.Lines[idx].Quantity++
		return true, nil
	})
}

// Decrement never drops a line: quantity stops at 1.
func (s *Service) Decrement(ctx context.Context, owner, ref string) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart) (bool, error) {
		idx := c.ResolveRef(ref)
		if idx < 0 {
			return false, domain.ErrLineNotFound
		}
		if c.Lines[idx].Quantity <= 1 {
			return false, nil
		}
		c.Lines[idx].Quantity--
		return true, nil
	})
}

func (s *Service) Remove(ctx context.Context, owner, ref string) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart) (bool, error) {
		idx := c.ResolveRef(ref)
		if idx < 0 {
			return false, domain.ErrLineNotFound
		}
		c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
		return true, nil
	})
}

// ApplyCoupon activates code. An invalid code leaves any active coupon in place,
// and applying while a coupon is active changes nothing.
func (s *Service) ApplyCoupon(ctx context.Context, owner, code string) (*domain.Cart, error) {
	if !isValidCoupon(code) {
		return nil, domain.ErrInvalidCoupon
	}
	return s.mutate(ctx, owner, func(c *domain.Cart) (bool, error) {
		if c.Coupon != "" {
			return false, nil
		}
		c.Coupon = CouponCode
		return true, nil
	})
}

func (s *Service) RemoveCoupon(ctx context.Context, owner string) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart) (bool, error) {
		if c.Coupon == "" {
			return false, nil
		}
		c.Coupon = ""
		return true, nil
	})
}

// Clear drops the stored cart entirely.
func (s *Service) Clear(ctx context.Context, owner string) error {
	if owner == "" {
		return ErrNoOwner
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	if err := s.storage.Delete(ctx, owner); err != nil {
		return &domain.StoreError{Op: "delete cart", Err: err}
	}
	s.changes.publish(Change{Owner: owner, Cart: s.empty(owner)})
	return nil
}

// Checkout hands the owner's cart to place while holding the owner's lock and
// deletes it once place succeeds, so no change can land between the two. An
// error from place leaves the cart untouched. The delete runs detached from ctx
// and a failure there is only logged, since place has already committed.
func (s *Service) Checkout(ctx context.Context, owner string, place func(*domain.Cart) error) error {
	if owner == "" {
		return ErrNoOwner
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	c, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	if err := place(c.Clone()); err != nil {
		return err
	}

	if err := s.storage.Delete(context.WithoutCancel(ctx), owner); err != nil {
		s.log.ErrorContext(ctx, "clear cart after checkout failed", "owner", owner, "error", err)
		return nil
	}
	s.changes.publish(Change{Owner: owner, Cart: s.empty(owner)})
	return nil
}

// mutate runs fn against a freshly loaded cart while holding the owner's lock.
// fn reports whether it changed anything; unchanged carts are neither saved nor published.
func (s *Service) mutate(ctx context.Context, owner string, fn func(*domain.Cart) (bool, error)) (*domain.Cart, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	c, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	changed, err := fn(c)
	if err != nil {
		return nil, err
	}
	if !changed {
		return c, nil
	}

	c.UpdatedAt = s.now()
	if err := s.storage.Save(ctx, c); err != nil {
		return nil, &domain.StoreError{Op: "save cart", Err: err}
	}
	s.log.DebugContext(ctx, "cart updated", "owner", owner, "lines", len(c.Lines), "items", c.ItemCount())

	s.changes.publish(Change{Owner: owner, Cart: c.Clone()})
	return c, nil
}

func (s *Service) load(ctx context.Context, owner string) (*domain.Cart, error) {
	c, err := s.storage.Load(ctx, owner)
	if errors.Is(err, ErrCartNotFound) {
		return s.empty(owner), nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "load cart", Err: err}
	}
	c.Owner = owner
	return c, nil
}

func (s *Service) empty(owner string) *domain.Cart {
	return &domain.Cart{Owner: owner, Lines: []domain.CartLine{}, UpdatedAt: s.now()}
}
