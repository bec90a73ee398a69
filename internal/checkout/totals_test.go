package checkout

import (
	"testing"

	"github.com/fjod/go_cart/cafe-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func line(id, price string, qty int) domain.CartLine {
	return domain.CartLine{
		Product:  domain.Product{ID: id, Name: id, Price: decimal.RequireFromString(price), Category: "Coffee"},
		Quantity: qty,
	}
}

func snapshotOf(lines ...domain.CartLine) domain.Snapshot {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return domain.Snapshot{Lines: lines, ItemCount: count}
}

func TestCalculateTotals_Example(t *testing.T) {
	totals := CalculateTotals(snapshotOf(
		line("cappuccino", "4.50", 2),
		line("americano", "3.00", 1),
	))

	assert.Equal(t, "12.00", FormatAmount(totals.Subtotal))
	assert.Equal(t, "0.96", FormatAmount(totals.Tax))
	assert.Equal(t, "2.99", FormatAmount(totals.DeliveryFee))
	assert.Equal(t, "15.95", FormatAmount(totals.GrandTotal))
}

func TestCalculateTotals_EmptyCart(t *testing.T) {
	totals := CalculateTotals(domain.Snapshot{})

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.DeliveryFee.IsZero())
	assert.True(t, totals.GrandTotal.IsZero())
	assert.Equal(t, "0.00", FormatAmount(totals.GrandTotal))
}

func TestCalculateTotals_TaxRounding(t *testing.T) {
	tests := []struct {
		name      string
		lines     []domain.CartLine
		wantTax   string
		wantGrand string
	}{
		// 3.75 * 0.08 = 0.30
		{"exact", []domain.CartLine{line("herbal-tea", "3.75", 1)}, "0.30", "7.04"},
		// 4.75 * 0.08 = 0.38
		{"latte", []domain.CartLine{line("latte", "4.75", 1)}, "0.38", "8.12"},
		// 4.25 * 3 = 12.75, * 0.08 = 1.02
		{"cold brew x3", []domain.CartLine{line("cold-brew", "4.25", 3)}, "1.02", "16.76"},
		// 5.25 + 3.50 = 8.75, * 0.08 = 0.70
		{"mixed", []domain.CartLine{line("maple", "5.25", 1), line("croissant", "3.50", 1)}, "0.70", "12.44"},
		// 0.31 * 0.08 = 0.0248 -> 0.02
		{"rounds down", []domain.CartLine{line("sample", "0.31", 1)}, "0.02", "3.32"},
		// 0.69 * 0.08 = 0.0552 -> 0.06
		{"rounds up", []domain.CartLine{line("sample", "0.69", 1)}, "0.06", "3.74"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := CalculateTotals(snapshotOf(tt.lines...))
			assert.Equal(t, tt.wantTax, FormatAmount(totals.Tax))
			assert.Equal(t, tt.wantGrand, FormatAmount(totals.GrandTotal))
		})
	}
}

func TestCalculateTotals_NoFloatDrift(t *testing.T) {
	// 0.10 added 30 times drifts in binary floating point; decimals must not.
	lines := make([]domain.CartLine, 0, 30)
	for i := 0; i < 30; i++ {
		lines = append(lines, line(string(rune('a'+i)), "0.10", 1))
	}

	totals := CalculateTotals(snapshotOf(lines...))

	assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString("3.00")))
	assert.Equal(t, "0.24", FormatAmount(totals.Tax))
	assert.Equal(t, "6.23", FormatAmount(totals.GrandTotal))
}
