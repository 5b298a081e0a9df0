package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/krishimarket/krishimarket/internal/platform/httpx"
)

// Claims mirrors the access tokens minted by the hosted auth provider.
type Claims struct {
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserMetadata is the profile data captured at sign-up.
type UserMetadata struct {
	FullName string `json:"full_name"`
	UserType string `json:"user_type"`
}

// Authenticator verifies HS256 bearer tokens and binds the Identity to the
// request context.
type Authenticator struct {
	secret   []byte
	audience string
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthenticator constructs an Authenticator. An empty audience disables the
// audience check.
func NewAuthenticator(secret, audience string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{secret: []byte(secret), audience: audience, logger: logger, now: time.Now}
}

// Verify parses a raw token into an Identity.
func (a *Authenticator) Verify(raw string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: verify token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, errors.New("identity: token has no subject")
	}

	role := Role(claims.UserMetadata.UserType)
	if !role.Valid() {
		return Identity{}, fmt.Errorf("identity: unknown user type %q", claims.UserMetadata.UserType)
	}
	return Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.UserMetadata.FullName,
		Role:   role,
	}, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, fmt.Errorf("%w: missing bearer token", httpx.ErrUnauthorized))
			return
		}
		id, err := a.Verify(raw)
		if err != nil {
			a.logger.Debug("rejected bearer token", slog.Any("error", err))
			httpx.RespondError(w, fmt.Errorf("%w: invalid token", httpx.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole allows the request through only for the listed roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				httpx.RespondError(w, fmt.Errorf("%w: %s dashboard", httpx.ErrForbidden, id.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
