package checkout

import (
	"github.com/fjod/go_cart/cafe-service/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	TaxRate     = decimal.RequireFromString("0.08")
	DeliveryFee = decimal.RequireFromString("2.99")
)

// Totals are the monetary figures shown on the checkout view.
type Totals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	GrandTotal  decimal.Decimal
}

// CalculateTotals derives the checkout totals from a cart snapshot. Tax is
// rounded to the cent before it is added so the grand total matches what is displayed.
func CalculateTotals(snap domain.Snapshot) Totals {
	subtotal := decimal.Zero
	for _, line := range snap.Lines {
		subtotal = subtotal.Add(line.LineTotal())
	}

	tax := subtotal.Mul(TaxRate).Round(2)

	fee := decimal.Zero
	if subtotal.IsPositive() {
		fee = DeliveryFee
	}

	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		GrandTotal:  subtotal.Add(tax).Add(fee),
	}
}

// FormatAmount renders an amount with two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
