package planning

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/krishimarket/krishimarket/internal/identity"
	"github.com/krishimarket/krishimarket/internal/platform/httpx"
)

// Handler manages planner endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	identity  identity.Provider
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, provider identity.Provider) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, identity: provider, validator: validator.New()}
}

// MountRoutes registers planner routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/soil-tests", h.listSoilTests)
	r.Post("/soil-tests", h.createSoilTest)
	r.Get("/soil-tests/{id}", h.showSoilTest)
	r.Put("/soil-tests/{id}", h.updateSoilTest)
	r.Delete("/soil-tests/{id}", h.deleteSoilTest)

	r.Get("/crop-cycles", h.listCropCycles)
	r.Post("/crop-cycles", h.createCropCycle)
	r.Get("/crop-cycles/{id}", h.showCropCycle)
	r.Put("/crop-cycles/{id}", h.updateCropCycle)
	r.Delete("/crop-cycles/{id}", h.deleteCropCycle)
}

// ============================================================================
// SOIL TEST HANDLERS
// ============================================================================

func (h *Handler) listSoilTests(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	tests, err := h.service.ListSoilTests(r.Context(), farmer)
	h.write(w, http.StatusOK, map[string]any{"soil_tests": tests}, err)
}

func (h *Handler) createSoilTest(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	var in SoilTestInput
	if !h.decode(w, r, &in) {
		return
	}
	test, err := h.service.CreateSoilTest(r.Context(), farmer, in)
	h.write(w, http.StatusCreated, test, err)
}

func (h *Handler) showSoilTest(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	test, err := h.service.GetSoilTest(r.Context(), farmer, chi.URLParam(r, "id"))
	h.write(w, http.StatusOK, test, err)
}

func (h *Handler) updateSoilTest(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	var in SoilTestInput
	if !h.decode(w, r, &in) {
		return
	}
	test, err := h.service.UpdateSoilTest(r.Context(), farmer, chi.URLParam(r, "id"), in)
	h.write(w, http.StatusOK, test, err)
}

func (h *Handler) deleteSoilTest(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSoilTest(r.Context(), farmer, chi.URLParam(r, "id")); err != nil {
		h.write(w, 0, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// CROP CYCLE HANDLERS
// ============================================================================

func (h *Handler) listCropCycles(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	cycles, err := h.service.ListCropCycles(r.Context(), farmer)
	h.write(w, http.StatusOK, map[string]any{"crop_cycles": cycles}, err)
}

func (h *Handler) createCropCycle(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	var in CropCycleInput
	if !h.decode(w, r, &in) {
		return
	}
	cycle, err := h.service.CreateCropCycle(r.Context(), farmer, in)
	h.write(w, http.StatusCreated, cycle, err)
}

func (h *Handler) showCropCycle(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	cycle, err := h.service.GetCropCycle(r.Context(), farmer, chi.URLParam(r, "id"))
	h.write(w, http.StatusOK, cycle, err)
}

func (h *Handler) updateCropCycle(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	var in CropCycleInput
	if !h.decode(w, r, &in) {
		return
	}
	cycle, err := h.service.UpdateCropCycle(r.Context(), farmer, chi.URLParam(r, "id"), in)
	h.write(w, http.StatusOK, cycle, err)
}

func (h *Handler) deleteCropCycle(w http.ResponseWriter, r *http.Request) {
	farmer, ok := h.currentFarmer(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCropCycle(r.Context(), farmer, chi.URLParam(r, "id")); err != nil {
		h.write(w, 0, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) write(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("planning request", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, status, data)
}

func (h *Handler) currentFarmer(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, err := h.identity.Current(r.Context())
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err))
		return "", false
	}
	return user.UserID, true
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
				msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
			}
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", strings.Join(msgs, "; "))
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return false
	}
	return true
}
