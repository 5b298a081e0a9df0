package identity

import (
	"context"
	"fmt"

	"github.com/krishimarket/krishimarket/internal/store"
)

// Profile holds role-specific attributes of a user.
type Profile struct {
	UserID   string            `json:"user_id"`
	Role     Role              `json:"role"`
	FullName string            `json:"full_name"`
	Phone    string            `json:"phone,omitempty"`
	Business string            `json:"business,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// DisplayName is the name printed on documents the user issues.
func (p Profile) DisplayName() string {
	if p.Business != "" {
		return p.Business
	}
	return p.FullName
}

type profileTable struct {
	table    string
	business string
	details  []string
}

var profileTables = map[Role]profileTable{
	Farmer:     {table: "farmers", details: []string{"email", "farm_location", "farm_size"}},
	StoreOwner: {table: "store_owners", business: "shop_name", details: []string{"gstin", "address"}},
	Broker:     {table: "brokers", business: "firm_name", details: []string{"mandi_name", "license_no"}},
	Student:    {table: "students", details: []string{"institution"}},
	Consumer:   {table: "consumers", details: []string{"address"}},
}

// ProfileTables lists the tables Profiles reads.
func ProfileTables() []string {
	out := make([]string, 0, len(profileTables))
	for _, role := range []Role{Farmer, StoreOwner, Broker, Student, Consumer} {
		out = append(out, profileTables[role].table)
	}
	return out
}

// Profiles looks up role profiles by user id.
type Profiles struct {
	db store.Store
}

// NewProfiles constructs Profiles.
func NewProfiles(db store.Store) *Profiles {
	return &Profiles{db: db}
}

// Lookup returns the profile of userID in role's table.
func (p *Profiles) Lookup(ctx context.Context, userID string, role Role) (Profile, error) {
	t, ok := profileTables[role]
	if !ok {
		return Profile{}, fmt.Errorf("identity: no profile table for role %q", role)
	}
	row, err := p.db.Get(ctx, t.table, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("identity: lookup %s profile: %w", role, err)
	}
	profile := Profile{
		UserID:   userID,
		Role:     role,
		FullName: row.String("full_name"),
		Phone:    row.String("phone"),
	}
	if t.business != "" {
		profile.Business = row.String(t.business)
	}
	for _, col := range t.details {
		if v := row.String(col); v != "" {
			if profile.Details == nil {
				profile.Details = make(map[string]string, len(t.details))
			}
			profile.Details[col] = v
		}
	}
	return profile, nil
}
