package catalog

import (
	"sort"
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/gosimple/slug"
)

// Page is one page of a projected catalog.
type Page struct {
	Items      []domain.Product `json:"items"`
	TotalCount int              `json:"totalCount"`
	TotalPages int              `json:"totalPages"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
}

// Project filters, sorts and paginates a catalog snapshot. It never mutates
// products and never fails: missing optional fields simply do not match.
func Project(products []domain.Product, f Filter) Page {
	f = f.normalized()

	matched := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if matches(p, f) {
			matched = append(matched, p)
		}
	}
	sortProducts(matched, f.Sort)

	total := len(matched)
	page := Page{
		Items:      []domain.Product{},
		TotalCount: total,
		TotalPages: (total + f.PageSize - 1) / f.PageSize,
		Page:       f.Page,
		PageSize:   f.PageSize,
	}

	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return page
	}
	end := min(start+f.PageSize, total)
	page.Items = append(page.Items, matched[start:end]...)
	return page
}

func matches(p domain.Product, f Filter) bool {
	if !matchesCategory(p, f.CategorySlug) {
		return false
	}
	if !matchesSearch(p, f.SearchText) {
		return false
	}
	if !f.PriceRange.Contains(p.EffectivePrice()) {
		return false
	}
	if !f.DiscountTier.Admits(p.DiscountPercent()) {
		return false
	}
	if f.MinRating != nil && (p.Rating == nil || *p.Rating < *f.MinRating) {
		return false
	}
	return true
}

// matchesCategory accepts a product when any of its category signals agree
// with the requested slug. Upstream data is tagged inconsistently.
func matchesCategory(p domain.Product, categorySlug string) bool {
	requested := strings.ToLower(strings.TrimSpace(categorySlug))
	if requested == "" {
		return true
	}
	resolved := ResolveCategory(requested)

	switch {
	case p.Category != "" && p.Category == requested:
		return true
	case p.Category != "" && p.Category == resolved:
		return true
	case p.CategorySlug != "" && strings.ToLower(p.CategorySlug) == requested:
		return true
	case p.CategoryName != "" && slug.Make(p.CategoryName) == requested:
		return true
	}
	return false
}

func matchesSearch(p domain.Product, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), strings.ToLower(text))
}

// sortProducts is stable so equal keys keep snapshot order.
func sortProducts(products []domain.Product, key SortKey) {
	var less func(a, b domain.Product) bool
	switch key {
	case SortPriceAsc:
		less = func(a, b domain.Product) bool { return a.EffectivePrice() < b.EffectivePrice() }
	case SortPriceDesc:
		less = func(a, b domain.Product) bool { return a.EffectivePrice() > b.EffectivePrice() }
	case SortRatingDesc:
		less = func(a, b domain.Product) bool { return ratingOf(a) > ratingOf(b) }
	case SortPopularity:
		less = func(a, b domain.Product) bool { return reviewsOf(a) > reviewsOf(b) }
	case SortDiscountDesc:
		less = func(a, b domain.Product) bool { return a.DiscountPercent() > b.DiscountPercent() }
	default:
		return
	}
	sort.SliceStable(products, func(i, j int) bool { return less(products[i], products[j]) })
}

func ratingOf(p domain.Product) float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}

func reviewsOf(p domain.Product) int {
	if p.ReviewCount == nil {
		return 0
	}
	return *p.ReviewCount
}
