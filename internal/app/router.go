package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/krishimarket/krishimarket/internal/identity"
	"github.com/krishimarket/krishimarket/internal/observability"
	"github.com/krishimarket/krishimarket/internal/orders"
	"github.com/krishimarket/krishimarket/internal/planning"
	"github.com/krishimarket/krishimarket/internal/platform/httpx"
	"github.com/krishimarket/krishimarket/internal/store"
	"github.com/krishimarket/krishimarket/jobs"
)

// ProfileLookup resolves the profile shown by /me.
type ProfileLookup interface {
	Lookup(ctx context.Context, userID string, role identity.Role) (identity.Profile, error)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Authenticator   *identity.Authenticator
	Profiles        ProfileLookup
	BillingHandler  *orders.Handler
	BrokerHandler   *orders.Handler
	PlanningHandler *planning.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with krishimarket defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)

		r.Get("/me", meHandler(params.Profiles, params.Logger))

		if params.BillingHandler != nil {
			r.Route("/billing", func(r chi.Router) {
				r.Use(identity.RequireRole(identity.StoreOwner))
				params.BillingHandler.MountRoutes(r)
			})
		}
		if params.BrokerHandler != nil {
			r.Route("/broker", func(r chi.Router) {
				r.Use(identity.RequireRole(identity.Broker))
				params.BrokerHandler.MountRoutes(r)
			})
		}
		if params.PlanningHandler != nil {
			r.Route("/planning", func(r chi.Router) {
				r.Use(identity.RequireRole(identity.Farmer))
				params.PlanningHandler.MountRoutes(r)
			})
		}
	})

	return r
}

type meResponse struct {
	Identity identity.Identity `json:"identity"`
	Profile  *identity.Profile `json:"profile"`
}

// meHandler returns the caller and their profile. A user who has not
// completed onboarding gets a null profile.
func meHandler(profiles ProfileLookup, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := identity.ContextProvider{}.Current(r.Context())
		if err != nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		resp := meResponse{Identity: user}
		if profiles != nil && user.Role.Valid() {
			profile, err := profiles.Lookup(r.Context(), user.UserID, user.Role)
			switch {
			case err == nil:
				resp.Profile = &profile
			case errors.Is(err, store.ErrNotFound):
			default:
				logger.Error("lookup profile", slog.String("user_id", user.UserID), slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
		}
		httpx.JSON(w, http.StatusOK, resp)
	}
}
