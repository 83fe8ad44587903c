package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/store"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

// flakyStore wraps a real store and fails the selected operations.
type flakyStore struct {
	store.DocumentStore
	mu         sync.Mutex
	failCreate bool
	failUpdate bool
	failList   bool

	// onCreate and onRead run before the wrapped call when set.
	onCreate func()
	onRead   func()
}

func (f *flakyStore) Read(ctx context.Context, path string, out any) error {
	f.mu.Lock()
	hook := f.onRead
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.DocumentStore.Read(ctx, path, out)
}

func (f *flakyStore) Create(ctx context.Context, collection string, data any) (string, error) {
	f.mu.Lock()
	fail, hook := f.failCreate, f.onCreate
	f.mu.Unlock()
	if fail {
		return "", errStoreDown
	}
	if hook != nil {
		hook()
	}
	return f.DocumentStore.Create(ctx, collection, data)
}

func (f *flakyStore) Update(ctx context.Context, path string, fields map[string]any) error {
	f.mu.Lock()
	fail := f.failUpdate
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.DocumentStore.Update(ctx, path, fields)
}

func (f *flakyStore) List(ctx context.Context, collection string) ([]store.Record, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return f.DocumentStore.List(ctx, collection)
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *mockNotifier) Notify(_ context.Context, userID, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, userID+"/"+orderID)
	return m.err
}

// undeletableCarts keeps carts in memory but cannot delete them.
type undeletableCarts struct {
	*cart.MemoryStorage
}

func (undeletableCarts) Delete(context.Context, string) error {
	return errors.New("cart storage unavailable")
}

type fixture struct {
	service  *Service
	lookup   *Lookup
	docs     *flakyStore
	carts    *cart.Service
	notifier *mockNotifier
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupService(t *testing.T) *fixture {
	mem := store.NewMemoryStore()
	t.Cleanup(func() { mem.Close() })

	docs := &flakyStore{DocumentStore: mem}
	carts := cart.NewService(cart.NewMemoryStorage(), testLogger())
	notifier := &mockNotifier{}

	return &fixture{
		service:  NewService(docs, carts, notifier, testLogger()),
		lookup:   NewLookup(docs, testLogger()),
		docs:     docs,
		carts:    carts,
		notifier: notifier,
	}
}

func ptr[T any](v T) *T { return &v }

func validShipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		FullName: "Lê Thị Hoa",
		Phone:    "0987654321",
		Email:    "hoa.le@example.vn",
		Address:  "45 Trần Hưng Đạo, Hà Nội",
	}
}

func fillCart(t *testing.T, carts *cart.Service, owner string) {
	ctx := context.Background()
	_, err := carts.Add(ctx, owner, domain.Product{ID: "f1", Name: "Hoa Hồng", Price: 400_000, SalePrice: ptr(int64(320_000))}, 1)
	require.NoError(t, err)
	_, err = carts.Add(ctx, owner, domain.Product{ID: "f2", Name: "Hoa Cúc", Price: 90_000}, 2)
	require.NoError(t, err)
}
