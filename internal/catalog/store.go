package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/store"
	"golang.org/x/sync/singleflight"
)

const (
	ProductsCollection   = "flowers"
	CategoriesCollection = "categories"
)

// Store is the read side of the product catalog.
type Store struct {
	docs store.DocumentStore
	log  *slog.Logger
	sfg  singleflight.Group // collapses concurrent full loads
}

func NewStore(docs store.DocumentStore, log *slog.Logger) *Store {
	return &Store{docs: docs, log: log}
}

// Get resolves ref as a product id first and as a code alias second.
func (s *Store) Get(ctx context.Context, ref string) (*domain.Product, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "/") {
		return nil, domain.ErrNotFound
	}

	var p domain.Product
	err := s.docs.Read(ctx, store.Path(ProductsCollection, ref), &p)
	if err == nil {
		if p.ID == "" {
			p.ID = ref
		}
		return &p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, &domain.StoreError{Op: "read product", Err: err}
	}

	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Matches(ref) {
			return &all[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// All returns the whole catalog ordered by key. Concurrent callers share one
// load, which is not tied to any single caller's ctx.
func (s *Store) All(ctx context.Context) ([]domain.Product, error) {
	v, err, _ := s.sfg.Do(ProductsCollection, func() (interface{}, error) {
		records, err := s.docs.List(context.WithoutCancel(ctx), ProductsCollection)
		if err != nil {
			return nil, &domain.StoreError{Op: "list products", Err: err}
		}
		return s.decodeProducts(records), nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight shares the slice between callers
	shared := v.([]domain.Product)
	return append([]domain.Product(nil), shared...), nil
}

// Subscribe streams full catalog snapshots until the returned func is called.
func (s *Store) Subscribe(ctx context.Context, fn func([]domain.Product)) (func(), error) {
	unsubscribe, err := s.docs.Subscribe(ctx, ProductsCollection, func(records []store.Record) {
		fn(s.decodeProducts(records))
	})
	if err != nil {
		return nil, &domain.StoreError{Op: "subscribe products", Err: err}
	}
	return unsubscribe, nil
}

func (s *Store) Categories(ctx context.Context) ([]domain.Category, error) {
	records, err := s.docs.List(ctx, CategoriesCollection)
	if err != nil {
		return nil, &domain.StoreError{Op: "list categories", Err: err}
	}
	categories := make([]domain.Category, 0, len(records))
	for _, r := range records {
		var c domain.Category
		if err := r.Decode(&c); err != nil {
			s.log.Warn("skipping malformed category", "key", r.Key, "error", err)
			continue
		}
		if c.ID == "" {
			c.ID = r.Key
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// decodeProducts skips documents that do not decode as products.
func (s *Store) decodeProducts(records []store.Record) []domain.Product {
	products := make([]domain.Product, 0, len(records))
	for _, r := range records {
		var p domain.Product
		if err := r.Decode(&p); err != nil {
			s.log.Warn("skipping malformed product", "key", r.Key, "error", err)
			continue
		}
		if p.ID == "" {
			p.ID = r.Key
		}
		products = append(products, p)
	}
	return products
}
