package catalog

import "strings"

// categoryBySlug maps public URL slugs to the internal category ids stored on products.
var categoryBySlug = map[string]string{
	"hoa-ky-niem":     "ky-niem",
	"hoa-sinh-nhat":   "sinh-nhat",
	"hoa-khai-truong": "khai-truong",
	"hoa-chia-buon":   "chia-buon",
	"hoa-tinh-yeu":    "tinh-yeu",
	"hoa-cuoi":        "cuoi",
	"hoa-chuc-mung":   "chuc-mung",
	"lan-ho-diep":     "lan",
}

// ResolveCategory returns the internal category id for a slug.
// Unknown slugs are returned unchanged.
func ResolveCategory(slug string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if id, ok := categoryBySlug[slug]; ok {
		return id
	}
	return slug
}
