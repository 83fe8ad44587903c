package catalog

import (
	"context"
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
)

// View keeps the latest catalog snapshot together with the shopper's filter.
// Every delivered snapshot replaces the previous one wholesale.
type View struct {
	mu       sync.RWMutex
	products []domain.Product
	filter   Filter
	loaded   bool
}

func NewView(f Filter) *View {
	return &View{filter: f.normalized()}
}

func (v *View) Replace(products []domain.Product) {
	snapshot := append([]domain.Product(nil), products...)

	v.mu.Lock()
	v.products = snapshot
	v.loaded = true
	v.mu.Unlock()
}

// SetFilter installs f. When any criterion differs from the current filter the
// page goes back to 1, whatever page f asked for.
func (v *View) SetFilter(f Filter) {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := !v.filter.sameCriteria(f)
	f = f.normalized()
	if changed {
		f.Page = 1
	}
	v.filter = f
}

func (v *View) SetPage(page int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	f := v.filter
	f.Page = page
	v.filter = f.normalized()
}

func (v *View) Filter() Filter {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.filter
}

// Loaded reports whether at least one snapshot has arrived.
func (v *View) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loaded
}

// Snapshot returns a copy of the latest delivered catalog.
func (v *View) Snapshot() []domain.Product {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]domain.Product(nil), v.products...)
}

func (v *View) Current() Page {
	v.mu.RLock()
	products, f := v.products, v.filter
	v.mu.RUnlock()

	return Project(products, f)
}

// Watch feeds v from the catalog subscription until ctx is cancelled or the
// returned func is called, whichever comes first.
func Watch(ctx context.Context, s *Store, v *View) (func(), error) {
	unsubscribe, err := s.Subscribe(ctx, v.Replace)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	stop := func() { once.Do(unsubscribe) }
	release := context.AfterFunc(ctx, stop)
	return func() {
		release()
		stop()
	}, nil
}
