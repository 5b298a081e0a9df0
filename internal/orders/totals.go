package orders

// Model selects how an order's totals are derived from its items.
type Model int

const (
	// PerLineTax sums each line's own tax: grand = subtotal + Σ tax.
	PerLineTax Model = iota
	// AggregateCommission applies a commission percentage and a flat tax to
	// the subtotal: net = subtotal - commission - tax.
	AggregateCommission
)

func (m Model) String() string {
	switch m {
	case PerLineTax:
		return "per_line_tax"
	case AggregateCommission:
		return "aggregate_commission"
	default:
		return "unknown"
	}
}

// Adjustments are the header inputs of the AggregateCommission model.
type Adjustments struct {
	CommissionPercent float64
	TaxAmount         float64
}

// Totals are the derived header amounts.
type Totals struct {
	Subtotal   float64 `json:"subtotal"`
	Commission float64 `json:"commission"`
	TaxTotal   float64 `json:"tax_total"`
	GrandTotal float64 `json:"grand_total"`
}

// ComputeLine derives a line's tax and total. No rounding is applied.
func ComputeLine(quantity, unitPrice, taxRate float64) (taxAmount, lineTotal float64) {
	taxAmount = quantity * unitPrice * taxRate / 100
	lineTotal = quantity*unitPrice + taxAmount
	return
}

// Compute derives totals over items in insertion order.
func Compute(model Model, items []LineItem, adj Adjustments) Totals {
	var subtotal, lineTax float64
	for _, item := range items {
		subtotal += item.Quantity * item.UnitPrice
		lineTax += item.TaxAmount
	}
	return applyModel(model, subtotal, lineTax, adj)
}

func applyModel(model Model, subtotal, lineTax float64, adj Adjustments) Totals {
	switch model {
	case AggregateCommission:
		commission := subtotal * adj.CommissionPercent / 100
		return Totals{
			Subtotal:   subtotal,
			Commission: commission,
			TaxTotal:   adj.TaxAmount,
			GrandTotal: subtotal - commission - adj.TaxAmount,
		}
	default:
		return Totals{
			Subtotal:   subtotal,
			TaxTotal:   lineTax,
			GrandTotal: subtotal + lineTax,
		}
	}
}
