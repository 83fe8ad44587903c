package checkout

import (
	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
)

// Totals are the figures written on an order. Total is always
// Subtotal + Shipping - Discount.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

func Quote(t cart.Totals) Totals {
	return Totals{
		Subtotal: t.Subtotal,
		Shipping: t.ShippingFee,
		Discount: t.Discount,
		Total:    t.Subtotal + t.ShippingFee - t.Discount,
	}
}

// Draft is a validated checkout ready to become an order.
type Draft struct {
	Shipping domain.ShippingInfo
	Lines    []domain.CartLine
	Coupon   string
	Totals   Totals
}

// Prepare validates shipping first, then refuses an empty cart.
// Nothing is written in either case.
func (v *Validator) Prepare(c *domain.Cart, info domain.ShippingInfo) (*Draft, error) {
	info, err := v.Validate(info)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	return &Draft{
		Shipping: info,
		Lines:    c.Lines,
		Coupon:   c.Coupon,
		Totals:   Quote(cart.ComputeTotals(c)),
	}, nil
}
