package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func item(q, p, rate float64) LineItem {
	li := LineItem{Quantity: q, UnitPrice: p, TaxRate: rate}
	li.recompute()
	return li
}

func TestComputeLine(t *testing.T) {
	tests := []struct {
		q, p, rate     float64
		tax, lineTotal float64
	}{
		{10, 20, 5, 10, 210},
		{2, 100, 12, 24, 224},
		{0, 50, 18, 0, 0},
		{3, 0, 5, 0, 0},
	}
	for _, tt := range tests {
		tax, total := ComputeLine(tt.q, tt.p, tt.rate)
		assert.Equal(t, tt.tax, tax)
		assert.Equal(t, tt.lineTotal, total)
	}
}

func TestComputeLineKeepsFullPrecision(t *testing.T) {
	q, p, rate := 7.0, 19.99, 18.0
	tax, total := ComputeLine(q, p, rate)

	wantTax := q * p * rate / 100
	assert.Equal(t, wantTax, tax)
	assert.Equal(t, q*p+wantTax, total)
	assert.NotEqual(t, 0.0, total*100-float64(int64(total*100)), "no rounding to paise")
}

func TestComputePerLineTax(t *testing.T) {
	items := []LineItem{item(10, 20, 5), item(2, 100, 12), item(3, 7.25, 18)}

	got := Compute(PerLineTax, items, Adjustments{CommissionPercent: 50, TaxAmount: 99})

	subtotal := 10*20.0 + 2*100.0 + 3*7.25
	tax := items[0].TaxAmount + items[1].TaxAmount + items[2].TaxAmount
	assert.Equal(t, Totals{Subtotal: subtotal, TaxTotal: tax, GrandTotal: subtotal + tax}, got)
}

func TestComputeAggregateCommission(t *testing.T) {
	items := []LineItem{item(12, 2150, 0), item(4.5, 1980, 0)}

	got := Compute(AggregateCommission, items, Adjustments{CommissionPercent: 2.5, TaxAmount: 150})

	subtotal := 12*2150.0 + 4.5*1980.0
	commission := subtotal * 2.5 / 100
	assert.Equal(t, subtotal, got.Subtotal)
	assert.Equal(t, commission, got.Commission)
	assert.Equal(t, 150.0, got.TaxTotal)
	assert.Equal(t, subtotal-commission-150, got.GrandTotal)
}

func TestComputeIsIdempotent(t *testing.T) {
	items := []LineItem{item(0.1, 0.2, 18), item(3, 1.1, 5), item(7, 0.3, 12)}
	for _, model := range []Model{PerLineTax, AggregateCommission} {
		adj := Adjustments{CommissionPercent: 3.3, TaxAmount: 0.7}
		first := Compute(model, items, adj)
		second := Compute(model, items, adj)
		assert.Equal(t, first, second, model.String())
	}
}

func TestComputeEmpty(t *testing.T) {
	assert.Equal(t, Totals{}, Compute(PerLineTax, nil, Adjustments{}))
	assert.Equal(t, Totals{TaxTotal: 20, GrandTotal: -20}, Compute(AggregateCommission, nil, Adjustments{TaxAmount: 20}))
}

func TestModelString(t *testing.T) {
	assert.Equal(t, "per_line_tax", PerLineTax.String())
	assert.Equal(t, "aggregate_commission", AggregateCommission.String())
	assert.Equal(t, "unknown", Model(9).String())
}
