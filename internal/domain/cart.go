package domain

import "time"

// CartLine is one product in the cart. Prices are snapshots taken when the
// product was first added and are never refreshed afterwards.
type CartLine struct {
	ProductRef        string `json:"productRef" bson:"product_ref"`
	Code              string `json:"code,omitempty" bson:"code,omitempty"`
	Name              string `json:"name" bson:"name"`
	UnitPrice         int64  `json:"unitPrice" bson:"unit_price"`
	OriginalUnitPrice int64  `json:"originalUnitPrice" bson:"original_unit_price"`
	ImageURL          string `json:"imageUrl,omitempty" bson:"image_url,omitempty"`
	Quantity          int    `json:"quantity" bson:"quantity"`
}

// LineTotal is UnitPrice * Quantity.
func (l CartLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Cart is persisted as a single blob per owner.
type Cart struct {
	Owner     string     `json:"owner" bson:"owner"`
	Lines     []CartLine `json:"lines" bson:"lines"`
	Coupon    string     `json:"coupon,omitempty" bson:"coupon,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updated_at"`
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// ItemCount is the sum of quantities, used for badge counts.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// ResolveRef returns the index of the line referenced by ref, matching either the
// canonical product id or its code alias, or -1.
func (c *Cart) ResolveRef(ref string) int {
	if c == nil || ref == "" {
		return -1
	}
	for i, l := range c.Lines {
		if l.ProductRef == ref || (l.Code != "" && l.Code == ref) {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no slices with c.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Lines = append([]CartLine(nil), c.Lines...)
	return &out
}
