package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishimarket/krishimarket/internal/store"
	"github.com/krishimarket/krishimarket/internal/store/storetest"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(userType string) Claims {
	return Claims{
		Email:        "meena@example.com",
		UserMetadata: UserMetadata{FullName: "Meena Kumari", UserType: userType},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7c9e6679-7425-40de-944b-e07fc1f90ae7",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestVerify(t *testing.T) {
	auth := NewAuthenticator(testSecret, "authenticated", nil)

	id, err := auth.Verify(signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("store_owner")))
	require.NoError(t, err)
	assert.Equal(t, Identity{
		UserID: "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		Email:  "meena@example.com",
		Name:   "Meena Kumari",
		Role:   StoreOwner,
	}, id)
}

func TestVerifyRejects(t *testing.T) {
	auth := NewAuthenticator(testSecret, "authenticated", nil)

	expired := validClaims("broker")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims("broker")
	noExpiry.ExpiresAt = nil

	wrongAudience := validClaims("broker")
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	tests := map[string]string{
		"wrong secret":   signToken(t, "another-secret-another-secret-12", jwt.SigningMethodHS256, validClaims("broker")),
		"wrong method":   signToken(t, testSecret, jwt.SigningMethodHS512, validClaims("broker")),
		"expired":        signToken(t, testSecret, jwt.SigningMethodHS256, expired),
		"no expiry":      signToken(t, testSecret, jwt.SigningMethodHS256, noExpiry),
		"wrong audience": signToken(t, testSecret, jwt.SigningMethodHS256, wrongAudience),
		"unknown role":   signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("admin")),
		"garbage":        "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Verify(token)
			assert.Error(t, err)
		})
	}
}

func TestMiddlewareBindsIdentity(t *testing.T) {
	auth := NewAuthenticator(testSecret, "", nil)
	var got Identity
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		got, err = ContextProvider{}.Current(r.Context())
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("farmer")))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, Farmer, got.Role)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	auth := NewAuthenticator(testSecret, "", nil)
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, header)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(Broker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(ctx context.Context) int {
		req := httptest.NewRequest(http.MethodGet, "/broker/draft", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(context.Background()))
	assert.Equal(t, http.StatusForbidden, serve(WithIdentity(context.Background(), Identity{UserID: "u", Role: Farmer})))
	assert.Equal(t, http.StatusOK, serve(WithIdentity(context.Background(), Identity{UserID: "u", Role: Broker})))
}

func TestStaticProvider(t *testing.T) {
	_, err := Static{}.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)

	id, err := Static{UserID: "u1", Role: Student}.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Student, id.Role)
}

func TestProfilesLookup(t *testing.T) {
	m := storetest.NewMemory()
	m.Seed("store_owners", store.Row{"id": "owner-1", "full_name": "Meena Kumari", "shop_name": "Meena Agro Centre", "gstin": "27ABCDE1234F1Z5"})
	m.Seed("farmers", store.Row{"id": "farmer-1", "full_name": "Ramesh Patil", "farm_location": "Nashik"})
	profiles := NewProfiles(m)

	p, err := profiles.Lookup(context.Background(), "owner-1", StoreOwner)
	require.NoError(t, err)
	assert.Equal(t, "Meena Agro Centre", p.DisplayName())
	assert.Equal(t, "27ABCDE1234F1Z5", p.Details["gstin"])

	p, err = profiles.Lookup(context.Background(), "farmer-1", Farmer)
	require.NoError(t, err)
	assert.Equal(t, "Ramesh Patil", p.DisplayName())
	assert.Equal(t, "Nashik", p.Details["farm_location"])

	_, err = profiles.Lookup(context.Background(), "missing", Broker)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = profiles.Lookup(context.Background(), "owner-1", Role("admin"))
	assert.Error(t, err)
}
