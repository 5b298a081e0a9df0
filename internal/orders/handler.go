package orders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/krishimarket/krishimarket/internal/counterparty"
	"github.com/krishimarket/krishimarket/internal/identity"
	"github.com/krishimarket/krishimarket/internal/platform/httpx"
	"github.com/krishimarket/krishimarket/internal/shared"
)

// Handler exposes one workflow's builder over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	workflow  Workflow
	identity  identity.Provider
	validator *validator.Validate
}

// NewHandler builds a Handler for wf.
func NewHandler(logger *slog.Logger, service *Service, wf Workflow, provider identity.Provider) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		workflow:  wf,
		identity:  provider,
		validator: validator.New(),
	}
}

// MountRoutes registers the builder routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/draft", h.showDraft)
	r.Delete("/draft", h.discardDraft)
	r.Patch("/draft/header", h.setHeaderField)
	r.Patch("/draft/item", h.setDraftItemField)
	if h.workflow.RequiresProduct {
		r.Get("/products", h.listProducts)
		r.Post("/draft/item/product", h.selectProduct)
	}
	r.Post("/draft/items", h.addItem)
	r.Delete("/draft/items/{index}", h.removeItem)
	r.Get("/counterparties", h.searchCounterparties)
	r.Post("/draft/counterparty", h.selectCounterparty)
	r.Delete("/draft/counterparty", h.clearCounterparty)
	r.Post("/draft/submit", h.submit)
	r.Get("/orders", h.listOrders)
}

// fieldValue accepts JSON strings and numbers.
type fieldValue string

func (v *fieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = fieldValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value must be a string or number")
	}
	*v = fieldValue(n.String())
	return nil
}

type fieldRequest struct {
	Field string     `json:"field" validate:"required"`
	Value fieldValue `json:"value"`
}

type productRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

type counterpartyRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

type display struct {
	Subtotal       string   `json:"subtotal"`
	Commission     string   `json:"commission,omitempty"`
	TaxTotal       string   `json:"tax_total"`
	GrandTotal     string   `json:"grand_total"`
	DraftLineTotal string   `json:"draft_line_total"`
	LineTotals     []string `json:"line_totals"`
}

type draftView struct {
	Workflow string `json:"workflow"`
	State
	Display display `json:"display"`
}

func (h *Handler) view(b *Builder) draftView {
	st := b.State()
	d := display{
		Subtotal:       shared.FormatRupees(st.Order.Subtotal),
		TaxTotal:       shared.FormatRupees(st.Order.TaxTotal),
		GrandTotal:     shared.FormatRupees(st.Order.GrandTotal),
		DraftLineTotal: shared.FormatRupees(st.Draft.LineTotal),
		LineTotals:     make([]string, 0, len(st.Order.Items)),
	}
	if h.workflow.Model == AggregateCommission {
		d.Commission = shared.FormatRupees(st.Order.Commission)
	}
	for _, item := range st.Order.Items {
		d.LineTotals = append(d.LineTotals, shared.FormatRupees(item.LineTotal))
	}
	return draftView{Workflow: h.workflow.Name, State: st, Display: d}
}

func (h *Handler) showDraft(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	b, err := h.service.Draft(r.Context(), h.workflow, user)
	h.respond(w, b, err)
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	b, err := h.service.Discard(r.Context(), h.workflow, user)
	h.respond(w, b, err)
}

func (h *Handler) setHeaderField(w http.ResponseWriter, r *http.Request) {
	h.applyField(w, r, func(b *Builder, field, value string) error {
		return b.SetHeaderField(field, value)
	})
}

func (h *Handler) setDraftItemField(w http.ResponseWriter, r *http.Request) {
	h.applyField(w, r, func(b *Builder, field, value string) error {
		return b.SetDraftItemField(field, value)
	})
}

func (h *Handler) applyField(w http.ResponseWriter, r *http.Request, set func(b *Builder, field, value string) error) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.service.Apply(r.Context(), h.workflow, user, func(b *Builder) error {
		return set(b, req.Field, string(req.Value))
	})
	h.respond(w, b, err)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	products, err := h.service.Products(r.Context(), user)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) selectProduct(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.service.SelectProduct(r.Context(), h.workflow, user, req.ProductID)
	h.respond(w, b, err)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	b, err := h.service.Apply(r.Context(), h.workflow, user, func(b *Builder) error {
		return b.AddItem()
	})
	h.respond(w, b, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "index must be an integer")
		return
	}
	b, err := h.service.Apply(r.Context(), h.workflow, user, func(b *Builder) error {
		return b.RemoveItem(index)
	})
	h.respond(w, b, err)
}

func (h *Handler) searchCounterparties(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	results, err := h.service.Search(r.Context(), h.workflow, user, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("counterparty search", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if results == nil {
		results = []counterparty.Party{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) selectCounterparty(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req counterpartyRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.service.SelectCounterparty(r.Context(), h.workflow, user, req.ID)
	h.respond(w, b, err)
}

func (h *Handler) clearCounterparty(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	b, err := h.service.Apply(r.Context(), h.workflow, user, func(b *Builder) error {
		b.ClearCounterparty()
		return nil
	})
	h.respond(w, b, err)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	b, receipt, err := h.service.Submit(r.Context(), h.workflow, user)
	if err != nil {
		h.respond(w, b, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"receipt": receipt,
		"draft":   h.view(b),
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	recent, err := h.service.Recent(r.Context(), h.workflow, user)
	if err != nil {
		h.logger.Error("list recent orders", slog.String("workflow", h.workflow.Name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": recent})
}

// respond writes the draft view. Validation and persistence failures still
// carry the draft so the client keeps the user's input.
func (h *Handler) respond(w http.ResponseWriter, b *Builder, err error) {
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, h.view(b))
	case b != nil && (errors.Is(err, ErrValidation) || errors.Is(err, ErrPersist)):
		httpx.JSON(w, httpx.StatusFor(err), h.view(b))
	default:
		h.logger.Error("order builder", slog.String("workflow", h.workflow.Name), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	user, err := h.identity.Current(r.Context())
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err))
		return identity.Identity{}, false
	}
	return user, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", strings.Join(msgs, "; "))
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return false
	}
	return true
}
