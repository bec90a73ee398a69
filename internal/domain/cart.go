package domain

import "github.com/shopspring/decimal"

// CartLine pairs a product with a positive quantity.
type CartLine struct {
	Product  Product
	Quantity int
}

// LineTotal is price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is a read-only view of a cart at one point in time.
// Version increases with every change so subscribers can drop stale deliveries.
type Snapshot struct {
	Lines     []CartLine
	ItemCount int
	Version   uint64
}

func (s Snapshot) IsEmpty() bool {
	return s.ItemCount == 0
}

// Line returns the line for productID, if present.
func (s Snapshot) Line(productID string) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.Product.ID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}
