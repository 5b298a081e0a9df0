// Package identity resolves the signed-in user issued by the external
// identity provider and their role-specific profile.
package identity

import (
	"context"
	"errors"
)

// ErrNoIdentity indicates a request without a verified identity.
var ErrNoIdentity = errors.New("identity: not authenticated")

// Role is the user type chosen at sign-up.
type Role string

const (
	Farmer     Role = "farmer"
	StoreOwner Role = "store_owner"
	Broker     Role = "broker"
	Student    Role = "student"
	Consumer   Role = "consumer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case Farmer, StoreOwner, Broker, Student, Consumer:
		return true
	}
	return false
}

// Identity is the current authenticated user.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role"`
}

// Provider returns the identity bound to ctx.
type Provider interface {
	Current(ctx context.Context) (Identity, error)
}

type ctxKey struct{}

// WithIdentity binds id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity bound to ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// ContextProvider reads the identity placed in the context by Authenticator.
type ContextProvider struct{}

// Current implements Provider.
func (ContextProvider) Current(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

// Static always returns the same identity. Useful for tests and local tools.
type Static Identity

// Current implements Provider.
func (s Static) Current(context.Context) (Identity, error) {
	if s.UserID == "" {
		return Identity{}, ErrNoIdentity
	}
	return Identity(s), nil
}
