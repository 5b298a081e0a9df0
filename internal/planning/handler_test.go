package planning

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishimarket/krishimarket/internal/identity"
)

func newTestRouter(t *testing.T, farmerID string) chi.Router {
	t.Helper()
	s, _ := newTestService(date(2024, time.August, 1))
	r := chi.NewRouter()
	NewHandler(nil, s, identity.Static{UserID: farmerID, Role: identity.Farmer}).MountRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func TestHandlerSoilTestLifecycle(t *testing.T) {
	r := newTestRouter(t, farmerA)

	rr := doJSON(t, r, http.MethodPost, "/soil-tests", map[string]any{
		"field_name": "Canal side",
		"test_date":  "2024-04-02",
		"ph":         5.8,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created SoilTest
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.Equal(t, PHAcidic, created.PHClass)

	rr = doJSON(t, r, http.MethodGet, "/soil-tests/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, http.MethodDelete, "/soil-tests/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, r, http.MethodGet, "/soil-tests/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerValidation(t *testing.T) {
	r := newTestRouter(t, farmerA)

	rr := doJSON(t, r, http.MethodPost, "/soil-tests", map[string]any{"field_name": "x", "test_date": "02-04-2024", "ph": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSON(t, r, http.MethodPost, "/soil-tests", map[string]any{"field_name": "x", "test_date": "2024-04-02", "ph": 15})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSON(t, r, http.MethodPost, "/crop-cycles", map[string]any{"crop_name": "Rice", "field_name": "x", "sowing_date": "2024-06-01", "duration_days": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSON(t, r, http.MethodPost, "/crop-cycles", map[string]any{"crop_name": "Rice", "field_name": "x", "season": "monsoon", "sowing_date": "2024-06-01", "duration_days": 100})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/crop-cycles", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerCropCycleList(t *testing.T) {
	r := newTestRouter(t, farmerA)

	rr := doJSON(t, r, http.MethodPost, "/crop-cycles", map[string]any{
		"crop_name":     "Paddy",
		"field_name":    "Lower field",
		"season":        "kharif",
		"sowing_date":   "2024-07-01",
		"duration_days": 130,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doJSON(t, r, http.MethodGet, "/crop-cycles", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		CropCycles []CropCycle `json:"crop_cycles"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.CropCycles, 1)
	assert.Equal(t, StatusGrowing, body.CropCycles[0].Status)
	assert.True(t, date(2024, time.November, 8).Equal(body.CropCycles[0].ExpectedHarvest))
}
