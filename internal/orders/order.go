// Package orders builds store invoices and broker sales from line items and
// persists them as one header row plus ordered item rows.
package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/krishimarket/krishimarket/internal/platform/httpx"
)

// DateLayout is the wire format of document dates.
const DateLayout = "2006-01-02"

var (
	// ErrValidation marks input rejected by a builder operation.
	ErrValidation = httpx.ErrValidation
	// ErrPersist marks a failed submission write.
	ErrPersist = httpx.ErrUpstream
)

// ValidationError is a user-facing validation message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a builder validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// PaymentStatus of an order.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
)

func (s PaymentStatus) valid() bool {
	switch s {
	case PaymentPaid, PaymentPending, PaymentPartial:
		return true
	}
	return false
}

// LineItem is one product, quantity and price row. TaxAmount and LineTotal
// are derived; mutate inputs only through the set methods.
type LineItem struct {
	ProductID *string `json:"product_id,omitempty"`
	Label     string  `json:"label"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	UnitPrice float64 `json:"unit_price"`
	TaxRate   float64 `json:"tax_rate"`
	Grade     string  `json:"grade,omitempty"`
	TaxAmount float64 `json:"tax_amount"`
	LineTotal float64 `json:"line_total"`
}

func (li *LineItem) recompute() {
	li.TaxAmount, li.LineTotal = ComputeLine(li.Quantity, li.UnitPrice, li.TaxRate)
}

func (li *LineItem) setQuantity(v float64) {
	li.Quantity = v
	li.recompute()
}

func (li *LineItem) setUnitPrice(v float64) {
	li.UnitPrice = v
	li.recompute()
}

func (li *LineItem) setTaxRate(v float64) {
	li.TaxRate = v
	li.recompute()
}

func (li LineItem) frozen() LineItem {
	if li.ProductID != nil {
		id := *li.ProductID
		li.ProductID = &id
	}
	return li
}

// Order is a draft or submitted invoice/sale.
type Order struct {
	DocumentNumber      string        `json:"document_number"`
	DocumentDate        time.Time     `json:"document_date"`
	IssuerName          string        `json:"issuer_name,omitempty"`
	CounterpartyID      *string       `json:"counterparty_id,omitempty"`
	CounterpartyName    string        `json:"counterparty_name,omitempty"`
	CounterpartyContact string        `json:"counterparty_contact,omitempty"`
	Items               []LineItem    `json:"items"`
	CommissionPercent   float64       `json:"commission_percent"`
	TaxAmount           float64       `json:"tax_amount"`
	Totals
	PaymentStatus       PaymentStatus `json:"payment_status"`
	PaymentMethod       string        `json:"payment_method"`
	Notes               string        `json:"notes,omitempty"`
}

func (o Order) adjustments() Adjustments {
	return Adjustments{CommissionPercent: o.CommissionPercent, TaxAmount: o.TaxAmount}
}

// Product is a catalog entry selectable into a store invoice line.
type Product struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Unit    string  `json:"unit"`
	Price   float64 `json:"price"`
	GSTRate float64 `json:"gst_rate"`
}

// Summary is one row of the recent history list.
type Summary struct {
	ID               string        `json:"id"`
	DocumentNumber   string        `json:"document_number"`
	DocumentDate     time.Time     `json:"document_date"`
	CounterpartyName string        `json:"counterparty_name,omitempty"`
	Subtotal         float64       `json:"subtotal"`
	GrandTotal       float64       `json:"grand_total"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	CreatedAt        time.Time     `json:"created_at"`
}
