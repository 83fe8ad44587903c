package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
)

// Storage persists one cart blob per owner. Implementations store the whole
// cart on every Save; there are no partial updates.
type Storage interface {
	Load(ctx context.Context, owner string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	// Delete succeeds when no cart exists.
	Delete(ctx context.Context, owner string) error
}

var ErrCartNotFound = errors.New("cart not found")

func storageKey(owner string) string {
	return fmt.Sprintf("cart:%s", owner)
}
