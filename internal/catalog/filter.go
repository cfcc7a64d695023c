package catalog

import (
	"strings"
)

// PriceBucket is a coarse price range. The zero value is the unset sentinel.
type PriceBucket string

const (
	BucketAny  PriceBucket = ""
	BucketLow  PriceBucket = "low"
	BucketMid  PriceBucket = "mid"
	BucketHigh PriceBucket = "high"
)

// Bucket bounds in minor units. Mid includes both bounds.
const (
	MidBucketMin int64 = 20000
	MidBucketMax int64 = 50000
)

// Classify returns the bucket a price falls into.
func Classify(price int64) PriceBucket {
	switch {
	case price < MidBucketMin:
		return BucketLow
	case price <= MidBucketMax:
		return BucketMid
	default:
		return BucketHigh
	}
}

// FilterState carries the independent catalog predicates. Empty fields are
// unset and always pass.
type FilterState struct {
	Merchant string      `json:"merchant,omitempty"`
	Occasion string      `json:"occasion,omitempty"`
	Bucket   PriceBucket `json:"priceBucket,omitempty"`
	Search   string      `json:"search,omitempty"`
}

// ParseFilterState builds a FilterState from raw user input. Malformed
// values are not an error: they fall back to the unset sentinel.
func ParseFilterState(merchant, occasion, bucket, search string) FilterState {
	return FilterState{
		Merchant: strings.TrimSpace(merchant),
		Occasion: strings.TrimSpace(occasion),
		Bucket:   parseBucket(bucket),
		Search:   search,
	}
}

func parseBucket(raw string) PriceBucket {
	switch b := PriceBucket(strings.ToLower(strings.TrimSpace(raw))); b {
	case BucketLow, BucketMid, BucketHigh:
		return b
	default:
		return BucketAny
	}
}

// IsZero reports whether no predicate is set.
func (fs FilterState) IsZero() bool {
	return fs == FilterState{}
}

// Match reports whether p passes every set predicate.
func (fs FilterState) Match(p Product) bool {
	if fs.Merchant != "" && p.Merchant != fs.Merchant {
		return false
	}
	if fs.Occasion != "" && p.Occasion != fs.Occasion {
		return false
	}
	if fs.Bucket != BucketAny && Classify(p.Price) != fs.Bucket {
		return false
	}
	if fs.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(fs.Search)) {
		return false
	}
	return true
}

// Filter returns the products matching fs, preserving input order. It does
// not modify products.
func Filter(products []Product, fs FilterState) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if fs.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Merchants lists the distinct merchant tags in first-seen order.
func Merchants(products []Product) []string {
	return distinct(products, func(p Product) string { return p.Merchant })
}

// Occasions lists the distinct occasion tags in first-seen order.
func Occasions(products []Product) []string {
	return distinct(products, func(p Product) string { return p.Occasion })
}

func distinct(products []Product, key func(Product) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range products {
		k := key(p)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
