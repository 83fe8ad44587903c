package orders

import (
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

// Criteria are ANDed together. A nil field places no constraint.
type Criteria struct {
	UserID        *string
	Status        *domain.OrderStatus
	PaymentMethod *domain.PaymentMethod
	PaymentStatus *domain.PaymentStatus
	From          *time.Time
	To            *time.Time
	MinTotal      *int64
	MaxTotal      *int64
}

func (c Criteria) Matches(o *domain.Order) bool {
	switch {
	case c.UserID != nil && o.UserID != *c.UserID:
		return false
	case c.Status != nil && o.Status != *c.Status:
		return false
	case c.PaymentMethod != nil && o.PaymentMethod != *c.PaymentMethod:
		return false
	case c.PaymentStatus != nil && o.PaymentStatus != *c.PaymentStatus:
		return false
	case c.From != nil && o.OrderDate.Before(*c.From):
		return false
	case c.To != nil && o.OrderDate.After(*c.To):
		return false
	case c.MinTotal != nil && o.Total < *c.MinTotal:
		return false
	case c.MaxTotal != nil && o.Total > *c.MaxTotal:
		return false
	}
	return true
}
