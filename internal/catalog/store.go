package catalog

import (
	"fmt"
)

// Store holds the session's catalog. It is built once from a feed and is
// read-only afterwards, so it is safe for concurrent use.
type Store struct {
	products []Product
	byID     map[string]int
}

// NewStore validates the feed contract (unique ids, non-negative prices)
// and returns a store preserving the feed order.
func NewStore(products []Product) (*Store, error) {
	s := &Store{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, p := range products {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, ok := s.byID[p.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProduct, p.ID)
		}
		s.byID[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	return s, nil
}

// List returns the products in catalog order. The slice is a copy.
func (s *Store) List() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Get returns the product with the given id.
func (s *Store) Get(id string) (Product, error) {
	i, ok := s.byID[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return s.products[i], nil
}

// Len returns the number of products in the catalog.
func (s *Store) Len() int {
	return len(s.products)
}

// DefaultProducts is the built-in voucher catalog used when no feed database
// is configured.
func DefaultProducts() []Product {
	return []Product{
		{ID: "1", Name: "Starbucks Gift Card ₩50,000", Merchant: "Starbucks", Occasion: "birthday", Price: 50000, Image: "https://images.unsplash.com/photo-1511920170033-f8396924c348?w=400&h=400&fit=crop"},
		{ID: "2", Name: "CGV Movie Ticket", Merchant: "CGV", Occasion: "date", Price: 15000, Image: "https://images.unsplash.com/photo-1489599849927-2ee91cede3ba?w=400&h=400&fit=crop"},
		{ID: "3", Name: "Coupang Gift Card ₩100,000", Merchant: "Coupang", Occasion: "thanks", Price: 100000, Image: "https://images.unsplash.com/photo-1556742049-0cfed4f6a45d?w=400&h=400&fit=crop"},
		{ID: "4", Name: "Olive Young Gift Card ₩30,000", Merchant: "Olive Young", Occasion: "birthday", Price: 30000, Image: "https://images.unsplash.com/photo-1522338242992-e1a54906a8da?w=400&h=400&fit=crop"},
		{ID: "5", Name: "GS25 Convenience Store Card", Merchant: "GS25", Occasion: "thanks", Price: 20000, Image: "https://images.unsplash.com/photo-1558618666-fcd25c85cd64?w=400&h=400&fit=crop"},
		{ID: "6", Name: "Emart Gift Card ₩50,000", Merchant: "Emart", Occasion: "holiday", Price: 50000, Image: "https://images.unsplash.com/photo-1556740758-90de374c12ad?w=400&h=400&fit=crop"},
		{ID: "7", Name: "Lotte Department Store ₩80,000", Merchant: "Lotte", Occasion: "holiday", Price: 80000, Image: "https://images.unsplash.com/photo-1441986300917-64674bd600d8?w=400&h=400&fit=crop"},
		{ID: "8", Name: "Shinsegae Gift Card ₩60,000", Merchant: "Shinsegae", Occasion: "wedding", Price: 60000, Image: "https://images.unsplash.com/photo-1555529908-3a8c9c4e0d4a?w=400&h=400&fit=crop"},
	}
}
