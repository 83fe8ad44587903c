package domain

import "strings"

// Product is a catalog entry as stored under flowers/{id}. Prices are whole VND.
type Product struct {
	ID           string   `json:"id"`
	Code         string   `json:"code,omitempty"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Price        int64    `json:"price"`
	SalePrice    *int64   `json:"salePrice,omitempty"`
	Category     string   `json:"category"`
	CategoryName string   `json:"categoryName,omitempty"`
	CategorySlug string   `json:"categorySlug,omitempty"`
	InStock      *bool    `json:"inStock,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	ReviewCount  *int     `json:"reviewCount,omitempty"`
	Tags         []string `json:"tags"`
	ImageURL     string   `json:"imageUrl,omitempty"`
}

// Category is a catalog category as stored under categories/{id}.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// IsDiscounted reports whether the sale price is a real markdown.
// A sale price at or above the list price does not count.
func (p Product) IsDiscounted() bool {
	return p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price
}

// EffectivePrice is the price a customer pays right now.
func (p Product) EffectivePrice() int64 {
	if p.IsDiscounted() {
		return *p.SalePrice
	}
	return p.Price
}

// DiscountPercent is round((price - salePrice) / price * 100), 0 when not discounted.
func (p Product) DiscountPercent() int {
	if !p.IsDiscounted() || p.Price <= 0 {
		return 0
	}
	off := p.Price - *p.SalePrice
	// integer half-up rounding of off*100/price
	return int((off*200 + p.Price) / (2 * p.Price))
}

// Matches reports whether ref names this product by its id or its code alias.
func (p Product) Matches(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	return p.ID == ref || (p.Code != "" && p.Code == ref)
}
