package domain

import "github.com/shopspring/decimal"

// Product is an immutable catalog entry. New and Bestseller only decorate the menu.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Image       string
	New         bool
	Bestseller  bool
}
