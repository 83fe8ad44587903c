package catalog

import (
	"fmt"
	"strings"
)

// DefaultPageSize matches the storefront grid.
const DefaultPageSize = 9

type SortKey string

const (
	SortNone         SortKey = ""
	SortPriceAsc     SortKey = "price-asc"
	SortPriceDesc    SortKey = "price-desc"
	SortRatingDesc   SortKey = "rating-desc"
	SortPopularity   SortKey = "popularity"
	SortDiscountDesc SortKey = "discount-desc"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortPriceAsc, SortPriceDesc, SortRatingDesc, SortPopularity, SortDiscountDesc:
		return k, nil
	}
	return SortNone, fmt.Errorf("unknown sort key %q", s)
}

// PriceRange is a closed set of buckets over the effective price.
type PriceRange string

const (
	PriceAny        PriceRange = ""
	PriceUnder300k  PriceRange = "under-300k"
	Price300kTo500k PriceRange = "300k-500k"
	Price500kTo1m   PriceRange = "500k-1m"
	PriceOver1m     PriceRange = "over-1m"
)

const (
	priceBucket300k = 300_000
	priceBucket500k = 500_000
	priceBucket1m   = 1_000_000
)

func ParsePriceRange(s string) (PriceRange, error) {
	switch r := PriceRange(strings.ToLower(strings.TrimSpace(s))); r {
	case PriceAny, PriceUnder300k, Price300kTo500k, Price500kTo1m, PriceOver1m:
		return r, nil
	}
	return PriceAny, fmt.Errorf("unknown price range %q", s)
}

// Contains reports whether price falls in the bucket. Lower edges are inclusive.
func (r PriceRange) Contains(price int64) bool {
	switch r {
	case PriceAny:
		return true
	case PriceUnder300k:
		return price < priceBucket300k
	case Price300kTo500k:
		return price >= priceBucket300k && price < priceBucket500k
	case Price500kTo1m:
		return price >= priceBucket500k && price < priceBucket1m
	case PriceOver1m:
		return price >= priceBucket1m
	}
	return false
}

// DiscountTier is a minimum discount percentage.
type DiscountTier string

const (
	DiscountAny       DiscountTier = ""
	DiscountAtLeast10 DiscountTier = "at-least-10"
	DiscountAtLeast20 DiscountTier = "at-least-20"
	DiscountAtLeast30 DiscountTier = "at-least-30"
	DiscountAtLeast50 DiscountTier = "at-least-50"
)

var discountTierMin = map[DiscountTier]int{
	DiscountAtLeast10: 10,
	DiscountAtLeast20: 20,
	DiscountAtLeast30: 30,
	DiscountAtLeast50: 50,
}

func ParseDiscountTier(s string) (DiscountTier, error) {
	t := DiscountTier(strings.ToLower(strings.TrimSpace(s)))
	if t == DiscountAny {
		return t, nil
	}
	if _, ok := discountTierMin[t]; ok {
		return t, nil
	}
	return DiscountAny, fmt.Errorf("unknown discount tier %q", s)
}

// Admits reports whether a discount percentage qualifies for the tier.
// Products without a positive discount never qualify for a concrete tier.
func (t DiscountTier) Admits(percent int) bool {
	if t == DiscountAny {
		return true
	}
	threshold, ok := discountTierMin[t]
	if !ok || percent <= 0 {
		return false
	}
	return percent >= threshold
}

// Filter describes one catalog query. Zero values mean "no constraint".
type Filter struct {
	CategorySlug string
	SearchText   string
	PriceRange   PriceRange
	DiscountTier DiscountTier
	MinRating    *float64
	Sort         SortKey
	Page         int
	PageSize     int
}

// sameCriteria reports whether two filters select the same products,
// ignoring pagination.
func (f Filter) sameCriteria(o Filter) bool {
	if f.CategorySlug != o.CategorySlug || f.SearchText != o.SearchText ||
		f.PriceRange != o.PriceRange || f.DiscountTier != o.DiscountTier || f.Sort != o.Sort {
		return false
	}
	switch {
	case f.MinRating == nil && o.MinRating == nil:
		return true
	case f.MinRating == nil || o.MinRating == nil:
		return false
	}
	return *f.MinRating == *o.MinRating
}

func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	return f
}
