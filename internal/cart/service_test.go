package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

type mockStorage struct {
	m       sync.RWMutex
	carts   map[string]*domain.Cart
	loadErr   error
	saveErr   error
	deleteErr error
	saves     int
}

func newMockStorage() *mockStorage {
	return &mockStorage{carts: make(map[string]*domain.Cart)}
}

func (m *mockStorage) Load(_ context.Context, owner string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c, ok := m.carts[owner]
	if !ok {
		return nil, ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *mockStorage) Save(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.carts[c.Owner] = c.Clone()
	return nil
}

func (m *mockStorage) Delete(_ context.Context, owner string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.carts, owner)
	return nil
}

func newTestService(storage Storage) *Service {
	return NewService(storage, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var (
	rose = domain.Product{ID: "f1", Code: "HR-01", Name: "Hoa Hồng", Price: 400_000, SalePrice: ptr(int64(350_000))}
	lily = domain.Product{ID: "f2", Name: "Hoa Ly", Price: 150_000}
)

func TestAdd_SumsQuantityAndKeepsFirstSnapshot(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()

	_, err := s.Add(ctx, "u1", rose, 2)
	require.NoError(t, err)

	repriced := rose
	repriced.SalePrice = ptr(int64(200_000))
	c, err := s.Add(ctx, "u1", repriced, 3)
	require.NoError(t, err)

	require.Len(t, c.Lines, 1)
	assert.Equal(t, 5, c.Lines[0].Quantity)
	assert.Equal(t, int64(350_000), c.Lines[0].UnitPrice)
	assert.Equal(t, int64(400_000), c.Lines[0].OriginalUnitPrice)
}

func TestAdd_ResolvesCodeAlias(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()

	_, err := s.Add(ctx, "u1", rose, 1)
	require.NoError(t, err)

	// same product referenced only by its code
	c, err := s.Add(ctx, "u1", domain.Product{Code: "HR-01", Price: 1}, 1)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 2, c.Lines[0].Quantity)

	c, err = s.Increment(ctx, "u1", "HR-01")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Lines[0].Quantity)
}

func TestAdd_InvalidQuantity(t *testing.T) {
	storage := newMockStorage()
	s := newTestService(storage)

	for _, qty := range []int{0, -1} {
		_, err := s.Add(context.Background(), "u1", rose, qty)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	}
	assert.Equal(t, 0, storage.saves)
}

func TestAdd_NoOwner(t *testing.T) {
	s := newTestService(newMockStorage())
	_, err := s.Add(context.Background(), "", rose, 1)
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestDecrement_FloorsAtOne(t *testing.T) {
	storage := newMockStorage()
	s := newTestService(storage)
	ctx := context.Background()

	_, err := s.Add(ctx, "u1", lily, 2)
	require.NoError(t, err)

	c, err := s.Decrement(ctx, "u1", "f2")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Lines[0].Quantity)

	savesBefore := storage.saves
	c, err = s.Decrement(ctx, "u1", "f2")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 1, c.Lines[0].Quantity)
	assert.Equal(t, savesBefore, storage.saves, "no-op decrement is not saved")
}

func TestLineNotFound(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()

	_, err := s.Increment(ctx, "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Decrement(ctx, "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrLineNotFound)

	_, err = s.Remove(ctx, "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
}

func TestRemoveAndClear(t *testing.T) {
	storage := newMockStorage()
	s := newTestService(storage)
	ctx := context.Background()

	_, err := s.Add(ctx, "u1", rose, 1)
	require.NoError(t, err)
	_, err = s.Add(ctx, "u1", lily, 1)
	require.NoError(t, err)

	c, err := s.Remove(ctx, "u1", "f1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "f2", c.Lines[0].ProductRef)

	require.NoError(t, s.Clear(ctx, "u1"))
	c, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	// clearing a missing cart is fine
	require.NoError(t, s.Clear(ctx, "nobody"))
}

func TestCoupon(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()

	_, err := s.Add(ctx, "u1", lily, 2)
	require.NoError(t, err)

	c, err := s.ApplyCoupon(ctx, "u1", "giam10")
	require.NoError(t, err)
	assert.Equal(t, CouponCode, c.Coupon)

	_, err = s.ApplyCoupon(ctx, "u1", "FREESHIP")
	assert.ErrorIs(t, err, domain.ErrInvalidCoupon)

	totals, err := s.Totals(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), totals.Subtotal)
	assert.Equal(t, int64(30_000), totals.Discount, "valid coupon survives an invalid one")

	c, err = s.ApplyCoupon(ctx, "u1", " GIAM10 ")
	require.NoError(t, err)
	assert.Equal(t, CouponCode, c.Coupon)

	c, err = s.RemoveCoupon(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, c.Coupon)

	totals, err = s.Totals(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, totals.Discount)
}

func TestStorageErrors(t *testing.T) {
	storage := newMockStorage()
	s := newTestService(storage)
	ctx := context.Background()

	storage.loadErr = errors.New("connection reset")
	_, err := s.Get(ctx, "u1")
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "load cart", storeErr.Op)

	storage.loadErr = nil
	storage.saveErr = errors.New("disk full")
	_, err = s.Add(ctx, "u1", rose, 1)
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "save cart", storeErr.Op)
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(ctx, "u1", rose, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 40, c.Lines[0].Quantity)
}

func TestSubscribe(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()

	changes, cancel := s.Subscribe()
	defer cancel()

	_, err := s.Add(ctx, "u1", rose, 1)
	require.NoError(t, err)

	select {
	case ch := <-changes:
		assert.Equal(t, "u1", ch.Owner)
		assert.Equal(t, 1, ch.Cart.ItemCount())
	case <-time.After(time.Second):
		t.Fatal("no change published")
	}
}

func TestSubscribe_LatestWins(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()

	changes, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		_, err := s.Add(ctx, "u1", lily, 1)
		require.NoError(t, err)
	}

	ch := <-changes
	assert.Equal(t, 5, ch.Cart.ItemCount())

	select {
	case extra := <-changes:
		t.Fatalf("unexpected extra change %+v", extra)
	default:
	}
}

func TestSubscribe_Cancel(t *testing.T) {
	s := newTestService(newMockStorage())

	changes, cancel := s.Subscribe()
	cancel()
	cancel()

	_, ok := <-changes
	assert.False(t, ok)

	_, err := s.Add(context.Background(), "u1", rose, 1)
	require.NoError(t, err)
}

func TestSubscribe_PublishedCartIsDetached(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()

	changes, cancel := s.Subscribe()
	defer cancel()

	c, err := s.Add(ctx, "u1", rose, 1)
	require.NoError(t, err)
	c.Lines[0].Quantity = 99

	ch := <-changes
	assert.Equal(t, 1, ch.Cart.Lines[0].Quantity)
}

func TestSubscribeOwner_IgnoresOtherOwners(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()

	changes, cancel := s.SubscribeOwner("u1")
	defer cancel()

	_, err := s.Add(ctx, "u1", rose, 1)
	require.NoError(t, err)
	_, err = s.Add(ctx, "u2", lily, 3)
	require.NoError(t, err)

	ch := <-changes
	assert.Equal(t, "u1", ch.Owner)
	assert.Equal(t, 1, ch.Cart.ItemCount())

	select {
	case extra := <-changes:
		t.Fatalf("unexpected change for %s", extra.Owner)
	default:
	}
}

func TestCheckout_ClearsAfterPlace(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()
	_, err := s.Add(ctx, "u1", rose, 2)
	require.NoError(t, err)

	var placed *domain.Cart
	require.NoError(t, s.Checkout(ctx, "u1", func(c *domain.Cart) error {
		placed = c
		return nil
	}))

	require.Len(t, placed.Lines, 1)
	assert.Equal(t, 2, placed.Lines[0].Quantity)
	c, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestCheckout_PlaceErrorKeepsCart(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()
	_, err := s.Add(ctx, "u1", rose, 1)
	require.NoError(t, err)

	boom := errors.New("order store down")
	err = s.Checkout(ctx, "u1", func(*domain.Cart) error { return boom })
	assert.ErrorIs(t, err, boom)

	c, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1)
}

func TestCheckout_DeleteFailureIsNotReturned(t *testing.T) {
	storage := newMockStorage()
	s := newTestService(storage)
	ctx := context.Background()
	_, err := s.Add(ctx, "u1", rose, 1)
	require.NoError(t, err)
	storage.deleteErr = errors.New("mongo down")

	assert.NoError(t, s.Checkout(ctx, "u1", func(*domain.Cart) error { return nil }))
}

func TestCheckout_NoOwner(t *testing.T) {
	s := newTestService(newMockStorage())
	err := s.Checkout(context.Background(), "", func(*domain.Cart) error { return nil })
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestCheckout_AddDuringPlaceIsKept(t *testing.T) {
	s := newTestService(newMockStorage())
	ctx := context.Background()
	_, err := s.Add(ctx, "u1", rose, 1)
	require.NoError(t, err)

	placing := make(chan struct{})
	release := make(chan struct{})
	added := make(chan error, 1)

	done := make(chan error, 1)
	go func() {
		done <- s.Checkout(ctx, "u1", func(c *domain.Cart) error {
			close(placing)
			<-release
			assert.Len(t, c.Lines, 1)
			return nil
		})
	}()

	<-placing
	go func() {
		_, err := s.Add(ctx, "u1", lily, 1)
		added <- err
	}()

	select {
	case <-added:
		t.Fatal("add committed while checkout held the cart")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-added)

	c, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, lily.ID, c.Lines[0].ProductRef)
}
