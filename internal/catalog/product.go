package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound indicates no product with the requested ID is in the catalog.
var ErrProductNotFound = errors.New("product not found")

// ErrDuplicateProduct indicates the feed supplied two products with the same ID.
var ErrDuplicateProduct = errors.New("duplicate product id")

// ErrNegativePrice indicates the feed supplied a product with a price below zero.
var ErrNegativePrice = errors.New("negative product price")

// Product is a purchasable gift voucher. Price is in minor currency units.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Merchant string `json:"merchant"`
	Occasion string `json:"occasion"`
	Price    int64  `json:"price"`
	Image    string `json:"image"`
}

// Currency describes how minor units are rendered for display.
type Currency struct {
	Symbol   string
	Exponent int32 // digits after the decimal point; 0 for KRW
}

// KRW is the won, which has no minor unit in practice.
var KRW = Currency{Symbol: "₩", Exponent: 0}

// FormatPrice renders a minor-unit price, e.g. 50000 -> "₩50,000".
func FormatPrice(price int64, c Currency) string {
	amount := decimal.New(price, -c.Exponent)
	whole := amount.Truncate(0)
	out := c.Symbol + groupThousands(whole.Abs().String())
	if price < 0 {
		out = "-" + out
	}
	if c.Exponent > 0 {
		frac := amount.Sub(whole).Abs().StringFixed(c.Exponent)
		// frac is "0.xx"
		out += frac[1:]
	}
	return out
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	out := make([]byte, 0, n+n/3)
	for i := 0; i < n; i++ {
		if i > 0 && (n-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return string(out)
}

func (p Product) validate() error {
	if p.Price < 0 {
		return fmt.Errorf("%w: %s has price %d", ErrNegativePrice, p.ID, p.Price)
	}
	return nil
}
