package orders

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishimarket/krishimarket/internal/identity"
)

type handlerFixture struct {
	*serviceFixture
	router chi.Router
}

func newHandlerFixture(t *testing.T, wf Workflow, user identity.Identity) *handlerFixture {
	t.Helper()
	f := newServiceFixture(t)
	r := chi.NewRouter()
	NewHandler(nil, f.service, wf, identity.Static(user)).MountRoutes(r)
	return &handlerFixture{serviceFixture: f, router: r}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	}
	return rr, decoded
}

func TestHandlerBillingFlow(t *testing.T) {
	f := newHandlerFixture(t, StoreInvoice, storeOwner)

	rr, body := f.do(t, http.MethodGet, "/draft", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "billing", body["workflow"])
	assert.Equal(t, "INV-240309-0042", body["order"].(map[string]any)["document_number"])

	rr, body = f.do(t, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["products"], 2)

	for _, step := range []struct {
		product string
		qty     any
	}{{riceID, 10}, {ureaID, "2"}} {
		rr, _ = f.do(t, http.MethodPost, "/draft/item/product", map[string]string{"product_id": step.product})
		require.Equal(t, http.StatusOK, rr.Code)
		rr, _ = f.do(t, http.MethodPatch, "/draft/item", map[string]any{"field": "quantity", "value": step.qty})
		require.Equal(t, http.StatusOK, rr.Code)
		rr, _ = f.do(t, http.MethodPost, "/draft/items", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr, body = f.do(t, http.MethodGet, "/draft", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	display := body["display"].(map[string]any)
	assert.Equal(t, "₹400.00", display["subtotal"])
	assert.Equal(t, "₹34.00", display["tax_total"])
	assert.Equal(t, "₹434.00", display["grand_total"])
	assert.Equal(t, []any{"₹210.00", "₹224.00"}, display["line_totals"])

	rr, body = f.do(t, http.MethodPost, "/draft/submit", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	receipt := body["receipt"].(map[string]any)
	assert.Equal(t, "INV-240309-0042", receipt["document_number"])
	assert.Equal(t, 434.0, receipt["grand_total"])
	assert.Equal(t, "Invoice INV-240309-0042 saved", body["draft"].(map[string]any)["notice"])

	rr, body = f.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["orders"], 1)
}

func TestHandlerValidationReturnsDraft(t *testing.T) {
	f := newHandlerFixture(t, StoreInvoice, storeOwner)

	rr, body := f.do(t, http.MethodPatch, "/draft/item", map[string]any{"field": "quantity", "value": "ten"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "quantity must be a number", body["error"])
	assert.NotNil(t, body["order"])

	rr, body = f.do(t, http.MethodPost, "/draft/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "add at least one item before saving", body["error"])
	assert.Equal(t, 0, f.db.Calls("insert", "store_invoices"))
}

func TestHandlerPersistFailureReturnsBadGateway(t *testing.T) {
	f := newHandlerFixture(t, StoreInvoice, storeOwner)
	f.db.FailOn("insert", "store_invoices", assert.AnError)

	f.do(t, http.MethodPost, "/draft/item/product", map[string]string{"product_id": riceID})
	f.do(t, http.MethodPatch, "/draft/item", map[string]any{"field": "quantity", "value": 1})
	f.do(t, http.MethodPost, "/draft/items", nil)

	rr, body := f.do(t, http.MethodPost, "/draft/submit", nil)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Len(t, body["order"].(map[string]any)["items"], 1)
	assert.Contains(t, body["error"], "Could not save invoice")
}

func TestHandlerBadRequests(t *testing.T) {
	f := newHandlerFixture(t, StoreInvoice, storeOwner)

	rr, _ := f.do(t, http.MethodDelete, "/draft/items/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, http.MethodPost, "/draft/item/product", map[string]string{"product_id": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, http.MethodPatch, "/draft/header", map[string]any{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, http.MethodPost, "/draft/item/product", map[string]string{"product_id": "5b1f0f5e-3c59-4c1e-9d0a-1f6c2b1a9999"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = f.do(t, http.MethodDelete, "/draft/items/4", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandlerBrokerSearchAndSelect(t *testing.T) {
	f := newHandlerFixture(t, BrokerSale, broker)

	rr, body := f.do(t, http.MethodGet, "/counterparties?q=ra", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, body["results"])
	assert.Equal(t, 0, f.db.Calls("select", "farmers"))

	rr, body = f.do(t, http.MethodGet, "/counterparties?q=ram", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, farmerID, results[0].(map[string]any)["id"])

	rr, body = f.do(t, http.MethodPost, "/draft/counterparty", map[string]string{"id": farmerID})
	require.Equal(t, http.StatusOK, rr.Code)
	order := body["order"].(map[string]any)
	assert.Equal(t, "Ramesh Patil", order["counterparty_name"])
	assert.Equal(t, "9800000001", order["counterparty_contact"])

	rr, _ = f.do(t, http.MethodPost, "/draft/item/product", map[string]string{"product_id": riceID})
	assert.Equal(t, http.StatusNotFound, rr.Code, "broker sales have no catalog")
}

func TestHandlerRejectsAnonymous(t *testing.T) {
	f := newHandlerFixture(t, StoreInvoice, identity.Identity{})

	rr, _ := f.do(t, http.MethodGet, "/draft", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
