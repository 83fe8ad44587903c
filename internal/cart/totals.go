package cart

import (
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
)

const (
	// FreeShippingThreshold is the subtotal from which shipping is free.
	FreeShippingThreshold int64 = 500_000
	ShippingFee           int64 = 30_000

	CouponCode    = "GIAM10"
	CouponPercent = 10
)

type Totals struct {
	Subtotal    int64 `json:"subtotal"`
	ShippingFee int64 `json:"shippingFee"`
	Discount    int64 `json:"discount"`
}

// ComputeTotals prices a cart. The coupon discount is taken from the subtotal
// and never from values that already include another reduction.
func ComputeTotals(c *domain.Cart) Totals {
	var t Totals
	if c == nil {
		t.ShippingFee = ShippingFee
		return t
	}
	for _, l := range c.Lines {
		t.Subtotal += l.LineTotal()
	}
	if t.Subtotal < FreeShippingThreshold {
		t.ShippingFee = ShippingFee
	}
	if isValidCoupon(c.Coupon) {
		t.Discount = t.Subtotal * CouponPercent / 100
	}
	return t
}

func isValidCoupon(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), CouponCode)
}
