package orders

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/krishimarket/krishimarket/internal/counterparty"
)

// SearchState is the counterparty search sub-state of a draft.
type SearchState struct {
	Query   string               `json:"query,omitempty"`
	Results []counterparty.Party `json:"results,omitempty"`
}

// State is everything a builder holds between requests.
type State struct {
	Order  Order       `json:"order"`
	Draft  LineItem    `json:"draft_item"`
	Search SearchState `json:"search"`
	Error  string      `json:"error,omitempty"`
	Notice string      `json:"notice,omitempty"`
	Recent []Summary   `json:"recent,omitempty"`
}

// Receipt identifies a persisted order.
type Receipt struct {
	ID             string `json:"id"`
	DocumentNumber string `json:"document_number"`
	Totals
}

// Persister writes a finished order and returns the header id.
type Persister interface {
	Create(ctx context.Context, wf Workflow, ownerID string, o Order) (string, error)
}

// PartySearcher finds counterparties by free text.
type PartySearcher interface {
	Search(ctx context.Context, role counterparty.Role, ownerID, query string) []counterparty.Party
}

// Option customises a Builder.
type Option func(*Builder)

// WithClock overrides the time source used for dates and document numbers.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithRandom overrides the document number suffix source.
func WithRandom(random func() float64) Option {
	return func(b *Builder) { b.random = random }
}

// Builder accumulates one draft order. Validation and persistence failures
// are kept in the state's Error field as well as returned.
type Builder struct {
	wf     Workflow
	now    func() time.Time
	random func() float64
	state  State
}

// NewBuilder starts a fresh draft.
func NewBuilder(wf Workflow, opts ...Option) *Builder {
	b := newBuilder(wf, opts)
	b.Reset()
	return b
}

// Resume continues a previously saved draft.
func Resume(wf Workflow, st State, opts ...Option) *Builder {
	b := newBuilder(wf, opts)
	b.state = st
	if b.state.Order.Items == nil {
		b.state.Order.Items = []LineItem{}
	}
	return b
}

func newBuilder(wf Workflow, opts []Option) *Builder {
	b := &Builder{wf: wf, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Workflow returns the builder's configuration.
func (b *Builder) Workflow() Workflow { return b.wf }

// State returns a copy of the current state.
func (b *Builder) State() State {
	st := b.state
	st.Order.Items = slices.Clone(b.state.Order.Items)
	st.Search.Results = slices.Clone(b.state.Search.Results)
	st.Recent = slices.Clone(b.state.Recent)
	return st
}

// SetIssuer freezes the issuing shop or firm name onto the draft.
func (b *Builder) SetIssuer(name string) {
	b.state.Order.IssuerName = name
}

// SetRecent replaces the recent history shown alongside the draft.
func (b *Builder) SetRecent(recent []Summary) {
	b.state.Recent = recent
}

// Reset discards the draft and starts a new one with a fresh document number.
// The issuer and recent history are kept.
func (b *Builder) Reset() {
	now := b.now()
	b.state.Order = Order{
		DocumentNumber: GenerateDocumentNumber(b.wf.Prefix, now, b.random),
		DocumentDate:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		IssuerName:     b.state.Order.IssuerName,
		Items:          []LineItem{},
		PaymentStatus:  b.wf.DefaultPaymentStatus,
		PaymentMethod:  b.wf.DefaultPaymentMethod,
	}
	b.state.Draft = b.emptyDraft()
	b.state.Search = SearchState{}
	b.state.Error = ""
	b.state.Notice = ""
}

// SetHeaderField updates one header attribute. Commission and tax changes
// recompute totals from the current subtotal.
func (b *Builder) SetHeaderField(field, value string) error {
	b.clearMessages()
	o := &b.state.Order
	switch field {
	case "document_date":
		d, err := time.Parse(DateLayout, strings.TrimSpace(value))
		if err != nil {
			return b.fail(invalid(field, "date must be in YYYY-MM-DD format"))
		}
		o.DocumentDate = d
	case "payment_method":
		o.PaymentMethod = strings.TrimSpace(value)
	case "payment_status":
		status := PaymentStatus(strings.TrimSpace(value))
		if !status.valid() {
			return b.fail(invalid(field, "payment status must be paid, pending or partial"))
		}
		o.PaymentStatus = status
	case "notes":
		o.Notes = value
	case "commission_percent":
		if b.wf.Model != AggregateCommission {
			return b.fail(invalid(field, "%s does not take a commission", strings.ToLower(b.wf.Noun)))
		}
		pct, err := parseAmount(field, value)
		if err != nil {
			return b.fail(err)
		}
		if pct > 100 {
			return b.fail(invalid(field, "commission must be between 0 and 100 percent"))
		}
		o.CommissionPercent = pct
		b.recomputeFromSubtotal()
	case "tax_amount":
		if b.wf.Model != AggregateCommission {
			return b.fail(invalid(field, "tax is set per item on this %s", strings.ToLower(b.wf.Noun)))
		}
		tax, err := parseAmount(field, value)
		if err != nil {
			return b.fail(err)
		}
		o.TaxAmount = tax
		b.recomputeFromSubtotal()
	default:
		return b.fail(invalid(field, "unknown field %q", field))
	}
	return nil
}

// SetDraftItemField updates the item being composed. Quantity, price and rate
// changes re-derive the draft's tax and line total.
func (b *Builder) SetDraftItemField(field, value string) error {
	b.clearMessages()
	d := &b.state.Draft
	switch field {
	case "label":
		d.Label = strings.TrimSpace(value)
	case "unit":
		d.Unit = strings.TrimSpace(value)
	case "grade":
		if b.wf.Model != AggregateCommission {
			return b.fail(invalid(field, "grade is not recorded on this %s", strings.ToLower(b.wf.Noun)))
		}
		d.Grade = strings.TrimSpace(value)
	case "quantity":
		q, err := parseAmount(field, value)
		if err != nil {
			return b.fail(err)
		}
		d.setQuantity(q)
	case "unit_price":
		p, err := parseAmount(field, value)
		if err != nil {
			return b.fail(err)
		}
		d.setUnitPrice(p)
	case "tax_rate":
		if b.wf.Model != PerLineTax {
			return b.fail(invalid(field, "items on this %s carry no tax rate", strings.ToLower(b.wf.Noun)))
		}
		r, err := parseAmount(field, value)
		if err != nil {
			return b.fail(err)
		}
		if r > 100 {
			return b.fail(invalid(field, "tax rate must be between 0 and 100 percent"))
		}
		d.setTaxRate(r)
	default:
		return b.fail(invalid(field, "unknown field %q", field))
	}
	return nil
}

// SelectProduct copies a catalog entry into the draft item.
func (b *Builder) SelectProduct(p Product) error {
	b.clearMessages()
	if !b.wf.RequiresProduct {
		return b.fail(invalid("product_id", "%s items are entered by name", strings.ToLower(b.wf.Noun)))
	}
	id := p.ID
	d := &b.state.Draft
	d.ProductID = &id
	d.Label = p.Name
	d.Unit = p.Unit
	d.UnitPrice = p.Price
	d.TaxRate = p.GSTRate
	d.recompute()
	return nil
}

// AddItem appends the draft item and recomputes totals. On failure nothing
// changes and the draft is kept for correction.
func (b *Builder) AddItem() error {
	b.clearMessages()
	d := b.state.Draft
	if b.wf.RequiresProduct {
		if d.ProductID == nil {
			return b.fail(invalid("product_id", "select a product first"))
		}
		if d.Quantity <= 0 {
			return b.fail(invalid("quantity", "quantity must be greater than zero"))
		}
	} else {
		if d.Label == "" {
			return b.fail(invalid("label", "item name is required"))
		}
		if d.Quantity <= 0 {
			return b.fail(invalid("quantity", "quantity must be greater than zero"))
		}
		if d.UnitPrice <= 0 {
			return b.fail(invalid("unit_price", "price must be greater than zero"))
		}
	}

	d.recompute()
	items := append(slices.Clone(b.state.Order.Items), d.frozen())
	totals := Compute(b.wf.Model, items, b.state.Order.adjustments())
	if !finite(d.TaxAmount, d.LineTotal, totals.Subtotal, totals.Commission, totals.TaxTotal, totals.GrandTotal) {
		return b.fail(invalid("quantity", "line amount is too large"))
	}
	b.state.Order.Items = items
	b.state.Order.Totals = totals
	b.state.Draft = b.emptyDraft()
	return nil
}

// RemoveItem deletes the item at index and recomputes totals.
func (b *Builder) RemoveItem(index int) error {
	b.clearMessages()
	items := b.state.Order.Items
	if index < 0 || index >= len(items) {
		return b.fail(invalid("index", "no item at position %d", index))
	}
	b.state.Order.Items = append(items[:index:index], items[index+1:]...)
	b.recompute()
	return nil
}

// SelectCounterparty freezes the party's name and contact onto the order and
// clears the search.
func (b *Builder) SelectCounterparty(p counterparty.Party) error {
	b.clearMessages()
	if p.Role != b.wf.Counterparty {
		return b.fail(invalid("counterparty", "expected a %s", b.wf.Counterparty))
	}
	id := p.ID
	o := &b.state.Order
	o.CounterpartyID = &id
	o.CounterpartyName = p.Name
	o.CounterpartyContact = p.Contact()
	b.state.Search = SearchState{}
	return nil
}

// ClearCounterparty removes the selected party.
func (b *Builder) ClearCounterparty() {
	o := &b.state.Order
	o.CounterpartyID = nil
	o.CounterpartyName = ""
	o.CounterpartyContact = ""
}

// SearchCounterparty records the query and its results.
func (b *Builder) SearchCounterparty(ctx context.Context, s PartySearcher, ownerID, query string) []counterparty.Party {
	results := s.Search(ctx, b.wf.Counterparty, ownerID, query)
	b.state.Search = SearchState{Query: query, Results: results}
	return results
}

// Submit persists the draft. On success the draft is reset with a new
// document number; on failure it is left untouched for retry.
func (b *Builder) Submit(ctx context.Context, p Persister, ownerID string) (Receipt, error) {
	b.clearMessages()
	o := b.state.Order
	if len(o.Items) == 0 {
		return Receipt{}, b.fail(invalid("items", "add at least one item before saving"))
	}
	if b.wf.RequiresCounterparty && o.CounterpartyID == nil {
		return Receipt{}, b.fail(invalid("counterparty", "select a %s before saving", b.wf.Counterparty))
	}
	if o.DocumentDate.IsZero() {
		return Receipt{}, b.fail(invalid("document_date", "date is required"))
	}

	b.recompute()
	o = b.state.Order
	id, err := p.Create(ctx, b.wf, ownerID, o)
	if err != nil {
		b.state.Error = fmt.Sprintf("Could not save %s. Your entries are kept, please try again.", strings.ToLower(b.wf.Noun))
		return Receipt{}, fmt.Errorf("%w: save %s %s: %w", ErrPersist, b.wf.Name, o.DocumentNumber, err)
	}

	receipt := Receipt{ID: id, DocumentNumber: o.DocumentNumber, Totals: o.Totals}
	b.Reset()
	b.state.Notice = fmt.Sprintf("%s %s saved", b.wf.Noun, o.DocumentNumber)
	return receipt, nil
}

func (b *Builder) recompute() {
	o := &b.state.Order
	o.Totals = Compute(b.wf.Model, o.Items, o.adjustments())
}

func (b *Builder) recomputeFromSubtotal() {
	o := &b.state.Order
	o.Totals = applyModel(b.wf.Model, o.Subtotal, o.TaxTotal, o.adjustments())
}

func (b *Builder) emptyDraft() LineItem {
	return LineItem{Unit: b.wf.DefaultUnit}
}

func (b *Builder) clearMessages() {
	b.state.Error = ""
	b.state.Notice = ""
}

func (b *Builder) fail(err error) error {
	b.state.Error = err.Error()
	return err
}

// Typed amounts are bounded before conversion: a decimal with a huge exponent
// is cheap to parse but expensive to turn into a float.
const (
	maxAmountExponent = 15
	minAmountExponent = -15
	maxAmountDigits   = 30
)

func parseAmount(field, value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	name := strings.ReplaceAll(field, "_", " ")
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, invalid(field, "%s must be a number", name)
	}
	if d.IsNegative() {
		return 0, invalid(field, "%s cannot be negative", name)
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < minAmountExponent || d.NumDigits() > maxAmountDigits {
		return 0, invalid(field, "%s is too large or too precise", name)
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, invalid(field, "%s is too large", name)
	}
	return f, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}
