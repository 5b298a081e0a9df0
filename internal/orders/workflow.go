package orders

import (
	"github.com/krishimarket/krishimarket/internal/counterparty"
	"github.com/krishimarket/krishimarket/internal/store"
)

// Workflow parameterises the builder for one kind of document.
type Workflow struct {
	Name   string
	Noun   string
	Prefix string
	Model  Model

	HeaderTable  string
	ItemTable    string
	OwnerColumn  string
	DateColumn   string
	ItemParentFK string

	Counterparty         counterparty.Role
	RequiresCounterparty bool
	RequiresProduct      bool
	RefreshAfterSubmit   bool

	DefaultUnit          string
	DefaultPaymentStatus PaymentStatus
	DefaultPaymentMethod string
}

// StoreInvoice is the store owner billing workflow: per-line GST, optional
// walk-in customer, items picked from the owner's catalog.
var StoreInvoice = Workflow{
	Name:   "billing",
	Noun:   "Invoice",
	Prefix: PrefixInvoice,
	Model:  PerLineTax,

	HeaderTable:  "store_invoices",
	ItemTable:    "store_invoice_items",
	OwnerColumn:  "owner_id",
	DateColumn:   "document_date",
	ItemParentFK: "invoice_id",

	Counterparty:    counterparty.Customer,
	RequiresProduct: true,

	DefaultPaymentStatus: PaymentPaid,
	DefaultPaymentMethod: "cash",
}

// BrokerSale is the broker's sale record: commission and flat tax are
// deducted from the subtotal to give the farmer's net proceeds.
var BrokerSale = Workflow{
	Name:   "broker",
	Noun:   "Sale",
	Prefix: PrefixSale,
	Model:  AggregateCommission,

	HeaderTable:  "broker_sales",
	ItemTable:    "broker_sale_items",
	OwnerColumn:  "broker_id",
	DateColumn:   "sale_date",
	ItemParentFK: "sale_id",

	Counterparty:         counterparty.Farmer,
	RequiresCounterparty: true,
	RefreshAfterSubmit:   true,

	DefaultUnit:          "quintal",
	DefaultPaymentStatus: PaymentPending,
	DefaultPaymentMethod: "bank_transfer",
}

// Tables lists every table the workflows write, plus the product catalog.
func Tables() []string {
	return []string{
		StoreInvoice.HeaderTable, StoreInvoice.ItemTable,
		BrokerSale.HeaderTable, BrokerSale.ItemTable,
		"store_products",
	}
}

func (wf Workflow) headerRow(ownerID string, o Order) store.Row {
	row := store.Row{
		wf.OwnerColumn:    ownerID,
		"document_number": o.DocumentNumber,
		wf.DateColumn:     o.DocumentDate,
		"issuer_name":     nullable(o.IssuerName),
		"subtotal":        o.Subtotal,
		"payment_status":  string(o.PaymentStatus),
		"payment_method":  nullable(o.PaymentMethod),
		"notes":           nullable(o.Notes),
	}
	switch wf.Model {
	case AggregateCommission:
		row["farmer_id"] = o.CounterpartyID
		row["farmer_name"] = o.CounterpartyName
		row["farmer_contact"] = nullable(o.CounterpartyContact)
		row["commission_percent"] = o.CommissionPercent
		row["commission_amount"] = o.Commission
		row["tax_amount"] = o.TaxTotal
		row["net_amount"] = o.GrandTotal
	default:
		row["customer_id"] = o.CounterpartyID
		row["customer_name"] = nullable(o.CounterpartyName)
		row["customer_contact"] = nullable(o.CounterpartyContact)
		row["tax_total"] = o.TaxTotal
		row["grand_total"] = o.GrandTotal
	}
	return row
}

func (wf Workflow) itemRows(headerID string, items []LineItem) []store.Row {
	rows := make([]store.Row, 0, len(items))
	for i, item := range items {
		row := store.Row{
			wf.ItemParentFK: headerID,
			"label":         item.Label,
			"quantity":      item.Quantity,
			"unit":          nullable(item.Unit),
			"unit_price":    item.UnitPrice,
			"line_total":    item.LineTotal,
			"line_order":    i + 1,
		}
		switch wf.Model {
		case AggregateCommission:
			row["grade"] = nullable(item.Grade)
		default:
			row["product_id"] = item.ProductID
			row["tax_rate"] = item.TaxRate
			row["tax_amount"] = item.TaxAmount
		}
		rows = append(rows, row)
	}
	return rows
}

func summaryFromRow(wf Workflow, row store.Row) Summary {
	s := Summary{
		ID:             row.String("id"),
		DocumentNumber: row.String("document_number"),
		DocumentDate:   row.Time(wf.DateColumn),
		Subtotal:       row.Float("subtotal"),
		PaymentStatus:  PaymentStatus(row.String("payment_status")),
		CreatedAt:      row.Time("created_at"),
	}
	switch wf.Model {
	case AggregateCommission:
		s.CounterpartyName = row.String("farmer_name")
		s.GrandTotal = row.Float("net_amount")
	default:
		s.CounterpartyName = row.String("customer_name")
		s.GrandTotal = row.Float("grand_total")
	}
	return s
}

func productFromRow(row store.Row) Product {
	return Product{
		ID:      row.String("id"),
		Name:    row.String("name"),
		Unit:    row.String("unit"),
		Price:   row.Float("price"),
		GSTRate: row.Float("gst_rate"),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
